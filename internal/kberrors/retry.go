package kberrors

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig configures a bounded fixed-delay retry loop. The core's
// default policy for BackendUnavailable failures is one retry after a
// fixed 100ms delay; callers needing different behavior build their own
// RetryConfig.
type RetryConfig struct {
	MaxRetries int
	Delay      time.Duration
}

// DefaultRetryConfig is "retry once, 100ms linear backoff", the policy
// applied to transient backend errors.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 1, Delay: 100 * time.Millisecond}
}

// Retry runs fn, retrying on error up to cfg.MaxRetries additional times
// with a fixed delay between attempts. It stops early if ctx is canceled
// or if the error is not retryable.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		attempts++
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt >= cfg.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.Delay):
		}
	}
	return fmt.Errorf("failed after %d attempt(s): %w", attempts, lastErr)
}

// RetryWithResult is Retry for functions that also produce a value.
func RetryWithResult[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var (
		result   T
		lastErr  error
		attempts int
	)
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		var err error
		result, err = fn()
		attempts++
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt >= cfg.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(cfg.Delay):
		}
	}
	var zero T
	return zero, fmt.Errorf("failed after %d attempt(s): %w", attempts, lastErr)
}
