// Package retry runs operations again when they fail with an error marked
// as retryable.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Policy defines how retries should be handled.
type Policy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	Jitter         bool
}

// DefaultPolicy returns the policy used for remote calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         true,
	}
}

// Once retries a single time with no wait, for failures where a fresh read
// resolves the problem (a stale version token, say).
func Once() Policy {
	return Policy{MaxRetries: 1}
}

// Error wraps an error to indicate it should be retried.
type Error struct {
	Err        error
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%v (retry after %v)", e.Err, e.RetryAfter)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err was marked retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var retryable *Error
	return errors.As(err, &retryable)
}

// Do executes fn until it succeeds, returns a non-retryable error, or the
// policy runs out of attempts. The last error is returned unwrapped from its
// retry marker so callers can match on the cause.
func Do(ctx context.Context, policy Policy, fn func(attempt int) error) error {
	var lastErr error

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}

		lastErr = err

		if !IsRetryable(err) {
			return err
		}

		if attempt == policy.MaxRetries {
			break
		}

		backoff := calculateBackoff(policy, attempt)

		var retryErr *Error
		if errors.As(err, &retryErr) && retryErr.RetryAfter > 0 {
			backoff = retryErr.RetryAfter
		}

		if backoff <= 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("retry cancelled: %w", err)
			}
			continue
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	var retryErr *Error
	if errors.As(lastErr, &retryErr) {
		lastErr = retryErr.Err
	}
	return fmt.Errorf("max retries exceeded (%d): %w", policy.MaxRetries, lastErr)
}

func calculateBackoff(policy Policy, attempt int) time.Duration {
	backoff := float64(policy.InitialBackoff) * math.Pow(policy.BackoffFactor, float64(attempt))

	if policy.MaxBackoff > 0 && backoff > float64(policy.MaxBackoff) {
		backoff = float64(policy.MaxBackoff)
	}

	duration := time.Duration(backoff)

	if policy.Jitter {
		// +/-10%
		duration += time.Duration(float64(duration) * 0.1 * (2*rand.Float64() - 1))
	}

	return duration
}

// Mark wraps err as retryable.
func Mark(err error) error {
	return &Error{Err: err}
}

// MarkWithDelay wraps err as retryable after a specific delay.
func MarkWithDelay(err error, delay time.Duration) error {
	return &Error{Err: err, RetryAfter: delay}
}
