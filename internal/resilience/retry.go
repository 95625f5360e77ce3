// Package resilience provides retry with pluggable backoff and transient
// error classification for the crawler's outbound HTTP calls.
package resilience

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
)

// BackoffFunc computes the sleep before retry number attempt+1. The first
// retry passes attempt=0.
type BackoffFunc func(attempt int) time.Duration

// RetryConfig controls retry behavior.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first try.
	// A value of 1 means no retries. Default: 3.
	MaxAttempts int

	// Backoff computes the delay between attempts. Default: exponential
	// starting at 500ms, doubling, capped at 30s.
	Backoff BackoffFunc

	// ShouldRetry overrides the default transient-error check. If nil,
	// IsTransient is used.
	ShouldRetry func(err error) bool

	// OnRetry is called before each retry sleep with attempt number and error.
	OnRetry func(attempt int, err error)
}

// LinearBackoff returns a backoff of step, 2·step, 3·step, ... The fetcher
// uses this between attempts so retry timing stays deterministic.
func LinearBackoff(step time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		return time.Duration(attempt+1) * step
	}
}

// ExponentialBackoff returns initial·multiplier^attempt capped at max.
func ExponentialBackoff(initial, max time.Duration, multiplier float64) BackoffFunc {
	return func(attempt int) time.Duration {
		d := float64(initial) * math.Pow(multiplier, float64(attempt))
		if d > float64(max) {
			d = float64(max)
		}
		return time.Duration(d)
	}
}

// DefaultRetryConfig returns a sensible configuration for network calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		Backoff:     ExponentialBackoff(500*time.Millisecond, 30*time.Second, 2.0),
	}
}

// Do executes fn with retry logic according to cfg. It retries only on
// errors deemed transient (via ShouldRetry or the default IsTransient
// check). Context cancellation stops retries immediately.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal executes fn returning a value with retry logic. Same semantics as
// Do but preserves the return value from the successful call.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = applyDefaults(cfg)

	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		// Don't retry on context cancellation.
		if ctx.Err() != nil {
			return zero, lastErr
		}

		if !shouldRetry(lastErr) {
			return zero, lastErr
		}

		// Don't sleep after the last attempt.
		if attempt >= cfg.MaxAttempts-1 {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, lastErr)
		}

		timer := time.NewTimer(cfg.Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}

	return zero, lastErr
}

func applyDefaults(cfg RetryConfig) RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff == nil {
		cfg.Backoff = ExponentialBackoff(500*time.Millisecond, 30*time.Second, 2.0)
	}
	return cfg
}

// RetryLogger returns an OnRetry callback that logs each retry attempt.
func RetryLogger(component, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("component", component),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
