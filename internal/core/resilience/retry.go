package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

// RetryPolicy configures exponential backoff with jitter (spec §4.2).
//
// The first retry waits BaseDelay; each later wait is the previous one times
// Multiplier, capped at MaxDelay. When Jitter is set, every wait after the
// first gets a random extra of up to 50%, still capped at MaxDelay.
type RetryPolicy struct {
	MaxRetries   int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
	ErrorChecker RetryableErrorChecker
	Logger       *slog.Logger
}

// DefaultRetryPolicy matches spec §4.2's default of 3 retries with capped
// exponential backoff and jitter.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  200 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

// WithRetry runs operation under policy, retrying while ShouldRetry-eligible
// errors occur, and honors context cancellation during backoff waits.
func WithRetry(ctx context.Context, policy *RetryPolicy, operation func() error) error {
	_, err := WithRetryFunc(ctx, policy, func() (struct{}, error) {
		return struct{}{}, operation()
	})
	return err
}

// WithRetryFunc is the generic form of WithRetry for operations producing a
// result, adapted from the teacher's resilience.WithRetryFunc.
func WithRetryFunc[T any](ctx context.Context, policy *RetryPolicy, operation func() (T, error)) (T, error) {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}
	logger := policy.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var lastResult T
	var lastErr error
	delay := policy.BaseDelay

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		result, err := operation()
		if err == nil {
			return result, nil
		}
		lastResult, lastErr = result, err

		if !shouldRetryWith(err, policy.ErrorChecker) {
			return lastResult, lastErr
		}
		if attempt >= policy.MaxRetries {
			logger.Warn("retry attempts exhausted", "attempts", attempt+1, "error", err)
			break
		}

		logger.Debug("retrying after failure", "attempt", attempt+1, "delay", delay, "error", err)
		if !waitWithContext(ctx, delay) {
			var zero T
			return zero, ctx.Err()
		}
		delay = calculateNextDelay(delay, policy)
	}

	return lastResult, fmt.Errorf("operation failed after %d attempts: %w", policy.MaxRetries+1, lastErr)
}

func shouldRetryWith(err error, checker RetryableErrorChecker) bool {
	if err == nil {
		return false
	}
	if checker != nil {
		return checker.IsRetryable(err)
	}
	return DefaultErrorChecker{}.IsRetryable(err)
}

func waitWithContext(ctx context.Context, delay time.Duration) bool {
	select {
	case <-time.After(delay):
		return true
	case <-ctx.Done():
		return false
	}
}

func calculateNextDelay(currentDelay time.Duration, policy *RetryPolicy) time.Duration {
	next := time.Duration(float64(currentDelay) * policy.Multiplier)
	if next > policy.MaxDelay {
		next = policy.MaxDelay
	}
	if policy.Jitter {
		next += time.Duration(float64(next) * 0.5 * rand.Float64())
		if next > policy.MaxDelay && policy.MaxDelay > 0 {
			next = policy.MaxDelay
		}
	}
	return next
}
