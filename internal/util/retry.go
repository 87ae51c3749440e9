package util

import (
	"context"
	"errors"
	"time"
)

// RetryableFunc reports whether an error is worth another attempt.
// A nil classifier treats every error as retryable.
type RetryableFunc func(error) bool

// RetryBackoff calls fn up to maxTries times, doubling the pause between
// attempts starting from baseDelay. It returns the result, the number of
// attempts actually made, and the last error.
//
// The loop stops early when the context is done or when the classifier
// rejects an error. Context errors returned by fn itself also stop the loop,
// so per-attempt deadlines must be translated by fn before returning (see
// pkg/schedule). If maxTries <= 0, it defaults to 1.
func RetryBackoff[T any](
	ctx context.Context,
	maxTries int,
	baseDelay time.Duration,
	retryable RetryableFunc,
	fn func(context.Context) (T, error),
) (T, int, error) {
	if maxTries <= 0 {
		maxTries = 1
	}
	var zero T
	var lastErr error
	delay := baseDelay
	for attempt := 1; attempt <= maxTries; attempt++ {
		if ctx.Err() != nil {
			return zero, attempt - 1, ctx.Err()
		}
		result, err := fn(ctx)
		if err == nil {
			return result, attempt, nil
		}
		lastErr = err
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, attempt, err
		}
		if retryable != nil && !retryable(err) {
			return zero, attempt, err
		}
		if attempt < maxTries {
			if sleepErr := SleepContext(ctx, delay); sleepErr != nil {
				return zero, attempt, sleepErr
			}
			delay *= 2
		}
	}
	return zero, maxTries, lastErr
}

// SleepContext blocks for d or until ctx is done, whichever comes first.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
