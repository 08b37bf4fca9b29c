// Package retry provides the retry policy used by dialing endpoints.
//
// The tunnel retries dials forever at a fixed interval; [Backoff] keeps
// the general exponential form so the policy stays injectable.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
)

// ── Permanent errors ─────────────────────────────────────────────────

// PermanentError wraps an error to signal that retrying will not help.
// Return [Permanent](err) from the operation function to stop retrying
// immediately.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as non-retryable.  The backoff loop will return
// the inner error immediately without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err has been marked as permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// ── Backoff ──────────────────────────────────────────────────────────

// Backoff implements exponential backoff.  A zero InitialDelay retries
// without waiting.
type Backoff struct {
	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration
	// MaxDelay caps the backoff duration (default 60s).
	MaxDelay time.Duration
	// Multiplier increases the delay each attempt (default 2.0).
	Multiplier float64
	// MaxAttempts is the total number of tries including the first.
	// Set to 0 for unlimited retries (until context cancelled).
	MaxAttempts int

	// Clock drives the sleeps between attempts (default: wall clock).
	Clock clock.Clock
	// OnRetry, if set, is called after a failed attempt once the wait
	// has been scheduled and before the caller is suspended.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// Fixed retries forever, waiting exactly interval between attempts.
func Fixed(interval time.Duration) *Backoff {
	return &Backoff{
		InitialDelay: interval,
		MaxDelay:     interval,
		Multiplier:   1,
	}
}

// WithHook returns a copy of b that reports retries to fn.
func (b *Backoff) WithHook(fn func(attempt int, err error, wait time.Duration)) *Backoff {
	c := *b
	c.OnRetry = fn
	return &c
}

func (b *Backoff) clock() clock.Clock {
	if b.Clock != nil {
		return b.Clock
	}
	return clock.New()
}

// Do executes fn repeatedly until it succeeds, returns a permanent
// error, or the retry budget (attempts / context) is exhausted.
//
// The attempt parameter passed to fn is 1-based.  On success fn should
// return nil.  To abort retrying, wrap the error with [Permanent].
func (b *Backoff) Do(ctx context.Context, fn func(attempt int) error) error {
	delay := b.InitialDelay
	multiplier := b.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	maxDelay := b.MaxDelay
	if maxDelay == 0 {
		maxDelay = 60 * time.Second
	}
	clk := b.clock()

	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}

		// Permanent errors are never retried.
		if IsPermanent(err) {
			return errors.Unwrap(err)
		}

		// Check attempt budget.
		if b.MaxAttempts > 0 && attempt >= b.MaxAttempts {
			return fmt.Errorf("max retries (%d) exceeded: %w", b.MaxAttempts, err)
		}

		if ctx.Err() != nil {
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		}

		wait := delay

		// The timer is armed before OnRetry so an observer that
		// advances a mock clock from the hook cannot miss it.
		timer := clk.Timer(wait)
		if b.OnRetry != nil {
			b.OnRetry(attempt, err, wait)
		}

		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}

		// Increase delay for next iteration.
		delay = time.Duration(float64(delay) * multiplier)
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}
