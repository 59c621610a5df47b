package errors

import (
	"errors"

	"github.com/johnquangdev/meeting-minutes/pkg/retry"
)

// Common errors
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden access")
	ErrNotFound     = errors.New("resource not found")
)

// Pipeline errors
var (
	ErrMissingCredential = errors.New("missing api key")
	ErrTransientRemote   = retry.ErrTransient
	ErrRemoteExhausted   = retry.ErrExhausted
	ErrMalformedResponse = errors.New("malformed model response")
	ErrExtractionFailed  = errors.New("structured extraction failed")
	ErrEmptyAudio        = errors.New("audio payload is empty")
)

// Meeting errors
var (
	ErrMeetingNotFound   = errors.New("meeting not found")
	ErrMeetingBusy       = errors.New("meeting is already being processed")
	ErrInvalidTransition = errors.New("invalid meeting status transition")
	ErrAudioMissing      = errors.New("meeting audio no longer stored")
	ErrNoMinutes         = errors.New("meeting has no minutes yet")
	ErrQueueFull         = errors.New("processing queue is full")
)

// Integration errors
var (
	ErrStorage         = errors.New("object storage failure")
	ErrLockUnavailable = errors.New("lock backend unavailable")
)

// ExtractionError reports a failed final extraction call while keeping the
// transcript accumulated before it
type ExtractionError struct {
	Transcript string
	Err        error
}

func (e *ExtractionError) Error() string {
	return ErrExtractionFailed.Error() + ": " + e.Err.Error()
}

// Unwrap matches both ErrExtractionFailed and the underlying cause
func (e *ExtractionError) Unwrap() []error {
	return []error{ErrExtractionFailed, e.Err}
}

// PartialTranscript returns the transcript carried by an ExtractionError in
// err's chain, if any
func PartialTranscript(err error) (string, bool) {
	var extractionErr *ExtractionError
	if errors.As(err, &extractionErr) {
		return extractionErr.Transcript, true
	}
	return "", false
}
