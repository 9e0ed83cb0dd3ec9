// Package retry polls an operation with bounded attempts and backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is returned when every attempt ran without the condition being met.
var ErrExhausted = errors.New("RETRY_EXHAUSTED")

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy controls Poll.
type Policy struct {
	Attempts   int
	Delay      time.Duration
	Multiplier float64 // 0 or 1 keeps the delay fixed
	MaxDelay   time.Duration
	Sleep      SleepFunc
}

// Fixed returns a fixed-delay policy.
func Fixed(attempts int, delay time.Duration) Policy {
	return Policy{Attempts: attempts, Delay: delay}
}

// Exponential returns a doubling policy capped at maxDelay.
func Exponential(attempts int, base, maxDelay time.Duration) Policy {
	return Policy{Attempts: attempts, Delay: base, Multiplier: 2, MaxDelay: maxDelay}
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err so Poll stops immediately and returns it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Poll calls fn until it reports done, returns a permanent error, the attempts run out
// or ctx is cancelled. Transient errors from fn are retried; the last one is wrapped in
// the ErrExhausted result.
func Poll(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (bool, error)) error {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = ContextSleep
	}

	delay := p.Delay
	var lastErr error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		done, err := fn(ctx, attempt)
		if err != nil {
			var perm *permanentError
			if errors.As(err, &perm) {
				return perm.err
			}
			lastErr = err
		} else if done {
			return nil
		}

		if attempt == p.Attempts {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			return fmt.Errorf("cancelled after %d attempts: %w", attempt, err)
		}
		delay = p.next(delay)
	}

	if lastErr != nil {
		return fmt.Errorf("%w after %d attempts: %v", ErrExhausted, p.Attempts, lastErr)
	}
	return fmt.Errorf("%w after %d attempts", ErrExhausted, p.Attempts)
}

func (p Policy) next(d time.Duration) time.Duration {
	if p.Multiplier > 1 {
		d = time.Duration(float64(d) * p.Multiplier)
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// ContextSleep is the default SleepFunc.
func ContextSleep(ctx context.Context, d time.Duration) error {
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
