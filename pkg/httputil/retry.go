package httputil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"
)

// RetryableError wraps an error to indicate it should trigger a retry.
// Wrap transient failures (network timeouts, 5xx responses) with this type
// so that [Retry] knows to attempt the operation again.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps err as a [RetryableError]. It returns nil for a nil error.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err is wrapped with [RetryableError].
func IsRetryable(err error) bool {
	return errors.As(err, new(*RetryableError))
}

// Policy is a bounded retry schedule.
//
// The delay before attempt n (n >= 1) is Backoff * 2^(n-1), so a policy of
// three attempts with a one second backoff waits 1s then 2s. Statuses lists
// the HTTP status codes that [Policy.Classify] marks as retryable.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
	Statuses    []int
}

// DefaultStatuses are the HTTP statuses retried by [DefaultPolicy].
var DefaultStatuses = []int{
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// DefaultPolicy returns 3 attempts, a 1 second backoff factor and
// [DefaultStatuses].
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Backoff:     time.Second,
		Statuses:    slices.Clone(DefaultStatuses),
	}
}

// Delay returns the wait before the given retry (1-based).
func (p Policy) Delay(retry int) time.Duration {
	if retry < 1 {
		return 0
	}
	return p.Backoff << (retry - 1)
}

// ShouldRetryStatus reports whether the policy retries the status code.
func (p Policy) ShouldRetryStatus(code int) bool {
	return slices.Contains(p.Statuses, code)
}

// Classify converts a non-2xx status into an error, wrapping it as
// retryable when the policy lists the status. It returns nil for 2xx.
func (p Policy) Classify(code int, base error) error {
	if code >= 200 && code < 300 {
		return nil
	}
	err := fmt.Errorf("%w: status %d", base, code)
	if p.ShouldRetryStatus(code) {
		return &RetryableError{Err: err}
	}
	return err
}

// Do runs fn under the policy. See [Retry].
func (p Policy) Do(ctx context.Context, fn func() error) error {
	return Retry(ctx, p.MaxAttempts, p.Backoff, fn)
}

// DoNotify is like [Policy.Do] and calls notify before every retry with the
// retry number (1-based), the error that caused it, and the upcoming delay.
func (p Policy) DoNotify(ctx context.Context, fn func() error, notify func(retry int, err error, wait time.Duration)) error {
	attempt := 0
	return p.Do(ctx, func() error {
		attempt++
		err := fn()
		if err != nil && IsRetryable(err) && attempt < max(p.MaxAttempts, 1) && notify != nil {
			notify(attempt, err, p.Delay(attempt))
		}
		return err
	})
}

// Retry executes fn up to attempts times with exponential backoff.
// It only retries errors wrapped with [RetryableError]; other errors are
// returned immediately. The delay doubles after each failed attempt.
// Returns the last error if all attempts fail, or ctx.Err() if cancelled.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	attempts = max(attempts, 1)
	var lastErr error

	for i := range attempts {
		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; !IsRetryable(err) {
			return err
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return lastErr
}

// RetryWithBackoff is a convenience wrapper around [Retry] with sensible
// defaults: 3 attempts with 1 second initial delay (doubling each retry).
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	return Retry(ctx, 3, time.Second, fn)
}
