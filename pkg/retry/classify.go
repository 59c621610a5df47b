package retry

import (
	"context"
	"errors"
	"strings"
)

// ErrTransient can be wrapped by callers to force a transient classification
var ErrTransient = errors.New("transient remote failure")

// Classifier reports whether err is worth another attempt
type Classifier func(err error) bool

// transientMarkers are matched against the lowercased error text. They cover
// rate limiting, overload and resource exhaustion as reported by model APIs.
var transientMarkers = []string{
	"429",
	"rate limit",
	"ratelimit",
	"too many requests",
	"resource_exhausted",
	"resource exhausted",
	"quota",
	"overloaded",
	"unavailable",
	"503",
	"502",
	"504",
	"bad gateway",
	"try again",
}

// IsTransient is the default classifier. Caller cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
