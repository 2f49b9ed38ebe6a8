// package retry runs network operations with bounded attempts and backoff
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/vikify/resolver/internal/shared"
)

const (
	DefaultRetries   = 3
	DefaultBaseDelay = 250 * time.Millisecond
	DefaultMaxDelay  = 2500 * time.Millisecond
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy bounds how often and how patiently an operation is retried.
//
// A zero Policy is not usable; start from [Default] or [Fixed].
type Policy struct {
	Retries   int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Delays replaces exponential backoff with a fixed per-attempt schedule. The last entry repeats.
	Delays []time.Duration
	// IsOnline, when set, is consulted before each attempt. Offline consumes the attempt.
	IsOnline func() bool
	// Permanent, when set, marks errors that end the loop immediately (e.g. not-found).
	Permanent func(error) bool
	Sleep     SleepFunc
	Logger    *log.Logger
}

// Default returns the policy used by catalog and lyrics calls: 3 retries, 250ms doubling up to 2.5s.
func Default() Policy {
	return Policy{
		Retries:   DefaultRetries,
		BaseDelay: DefaultBaseDelay,
		MaxDelay:  DefaultMaxDelay,
	}
}

// Fixed returns a policy with one retry per delay in the schedule.
func Fixed(delays ...time.Duration) Policy {
	return Policy{
		Retries: len(delays),
		Delays:  delays,
	}
}

// Backoff returns the delay to wait after the given failed attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if len(p.Delays) > 0 {
		if attempt > len(p.Delays) {
			return p.Delays[len(p.Delays)-1]
		}
		return p.Delays[attempt-1]
	}

	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Do invokes op until it succeeds or Retries+1 attempts have failed.
//
// The error returned after exhaustion wraps the last attempt's error and is labelled.
// Cancelling ctx while waiting between attempts returns the context error.
func Do[T any](ctx context.Context, p Policy, label string, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	logger := p.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	for attempt := 1; ; attempt++ {
		var (
			result T
			err    error
		)
		if p.IsOnline != nil && !p.IsOnline() {
			err = shared.ErrOffline
		} else {
			result, err = op(ctx)
		}
		if err == nil {
			return result, nil
		}

		if p.Permanent != nil && p.Permanent(err) {
			return zero, fmt.Errorf("%s: %w", label, err)
		}
		if attempt > p.Retries {
			return zero, fmt.Errorf("%s: failed after %d attempts: %w", label, attempt, err)
		}
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return zero, ctx.Err()
		}

		delay := p.Backoff(attempt)
		logger.Warn("attempt failed, retrying", "op", label, "attempt", attempt, "delay", delay, "error", err)

		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
}

// Sleep waits for d using a timer and honors cancellation.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
