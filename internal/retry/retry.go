// Package retry runs an operation under a bounded attempt budget with a fixed
// backoff and a predicate deciding which failures are worth another attempt.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is matched by errors.Is on the error returned when every
// attempt failed with a retryable error.
var ErrExhausted = errors.New("retry: attempts exhausted")

// Policy describes how an operation is retried.
type Policy struct {
	// MaxAttempts is the total number of attempts, first one included.
	MaxAttempts int

	// Backoff is slept after a retryable failure, before the next attempt.
	Backoff time.Duration

	// Retryable reports whether err deserves another attempt. A nil
	// predicate retries every error.
	Retryable func(error) bool

	// BeforeAttempt runs right before every attempt; the rate limiter's
	// WaitTurn goes here so retries are paced like first attempts.
	BeforeAttempt func(ctx context.Context) error

	// OnRetry is notified after a retryable failure that will be retried.
	OnRetry func(attempt int, err error)
}

// ExhaustedError carries the final failure of an exhausted Policy.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry: gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrExhausted, e.Last}
}

// Do runs op until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent. Non-retryable errors are returned unchanged.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, p.Backoff); err != nil {
				return zero, err
			}
		}
		if p.BeforeAttempt != nil {
			if err := p.BeforeAttempt(ctx); err != nil {
				return zero, err
			}
		}

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return zero, err
		}
		last = err
		if attempt < attempts && p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
	}
	return zero, &ExhaustedError{Attempts: attempts, Last: last}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
