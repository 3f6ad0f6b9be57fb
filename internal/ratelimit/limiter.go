// Package ratelimit paces outbound calls to the scanning provider so the
// aggregate request rate never exceeds the provider's per-minute quota.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultQuota is the public VirusTotal API allowance in calls per minute.
const DefaultQuota = 4

// Limiter enforces a minimum spacing between consecutive WaitTurn returns.
// It is a single-token bucket and is safe for concurrent use; callers are
// served one at a time.
type Limiter struct {
	interval time.Duration
	bucket   *rate.Limiter

	mu   sync.Mutex
	last time.Time
}

// New returns a Limiter for quota calls per minute.
func New(quota int) (*Limiter, error) {
	if quota <= 0 {
		return nil, fmt.Errorf("ratelimit: quota must be positive, got %d", quota)
	}
	return NewWithInterval(time.Minute / time.Duration(quota)), nil
}

// NewWithInterval returns a Limiter spacing calls by interval.
func NewWithInterval(interval time.Duration) *Limiter {
	if interval <= 0 {
		interval = time.Nanosecond
	}
	return &Limiter{
		interval: interval,
		bucket:   rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Interval is the minimum spacing between calls.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}

// WaitTurn blocks until at least Interval has elapsed since the previous
// WaitTurn returned. It must be called immediately before every outbound
// call, retries included.
func (l *Limiter) WaitTurn(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.bucket.Wait(ctx); err != nil {
		return fmt.Errorf("ratelimit: wait: %w", err)
	}

	// The bucket schedules from its own reservation times; timer slack and
	// float rounding can land a return marginally early.
	if !l.last.IsZero() {
		if remaining := l.interval - time.Since(l.last); remaining > 0 {
			if err := Sleep(ctx, remaining); err != nil {
				return fmt.Errorf("ratelimit: wait: %w", err)
			}
		}
	}
	l.last = time.Now()
	return nil
}

// Pause sleeps for one Interval without consuming a turn. It is used for the
// backoff between retries and the provider processing lag before a poll.
func (l *Limiter) Pause(ctx context.Context) error {
	return Sleep(ctx, l.interval)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
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
