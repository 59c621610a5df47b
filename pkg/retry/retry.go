// Package retry runs remote calls with bounded exponential backoff.
//
// Errors accepted by the classifier are retried up to MaxAttempts total
// attempts, waiting BaseDelay, BaseDelay*Multiplier, ... (capped at MaxDelay)
// between them. Any other error is returned immediately. When the attempts run
// out the last error is returned wrapped in ErrExhausted.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

// ErrExhausted marks a transient failure that outlived every attempt
var ErrExhausted = errors.New("retries exhausted")

const (
	DefaultMaxAttempts = 6
	DefaultBaseDelay   = 2 * time.Second
	DefaultMultiplier  = 1.5
	DefaultMaxDelay    = 60 * time.Second
)

// Timer lets tests replace the real wait with a recorded one
type Timer = backoff.Timer

// Config controls one retried call
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
	Classifier  Classifier
	Timer       Timer
	// Notify is called before each wait with the attempt that just failed
	Notify func(attempt int, err error, wait time.Duration)
}

// DefaultConfig returns the pipeline defaults
func DefaultConfig() Config {
	return Config{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Multiplier:  DefaultMultiplier,
		MaxDelay:    DefaultMaxDelay,
		Classifier:  IsTransient,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.Multiplier < 1 {
		c.Multiplier = DefaultMultiplier
	}
	if c.MaxDelay < c.BaseDelay {
		c.MaxDelay = c.BaseDelay
	}
	if c.Classifier == nil {
		c.Classifier = IsTransient
	}
	return c
}

func (c Config) backOff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.BaseDelay
	bo.Multiplier = c.Multiplier
	bo.MaxInterval = c.MaxDelay
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.MaxAttempts-1)), ctx)
}

// Do invokes op until it succeeds, fails fatally, or runs out of attempts
func Do[T any](ctx context.Context, cfg Config, op func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	var (
		result   T
		attempts int
		fatal    bool
	)

	operation := func() error {
		attempts++
		v, err := op(ctx)
		if err == nil {
			result = v
			return nil
		}
		if !cfg.Classifier(err) {
			fatal = true
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		if cfg.Notify != nil {
			cfg.Notify(attempts, err, wait)
		}
	}

	err := backoff.RetryNotifyWithTimer(operation, cfg.backOff(ctx), notify, cfg.Timer)
	if err == nil {
		return result, nil
	}

	var zero T
	if !fatal && attempts >= cfg.MaxAttempts {
		return zero, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, err)
	}
	return zero, err
}

// Run is Do for operations without a result
func Run(ctx context.Context, cfg Config, op func(ctx context.Context) error) error {
	_, err := Do(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
