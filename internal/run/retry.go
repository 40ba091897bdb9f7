package run

import (
	"context"
	"log/slog"
	"time"

	llmerrors "commit-message-refiner/internal/llm/errors"
)

// Retrier re-invokes a provider call on transient failures with
// exponential backoff. Permanent errors, oversized prompts, and malformed
// payloads are returned immediately.
type Retrier struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Do runs call until it succeeds, fails permanently, or the attempt
// budget is spent. It returns the call result, the number of attempts
// actually made, and the final error.
func (r Retrier) Do(ctx context.Context, name string, call func(context.Context) (string, error)) (string, int, error) {
	maxAttempts := r.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := call(ctx)
		if err == nil {
			return result, attempt, nil
		}
		lastErr = err

		if !llmerrors.IsTransient(err) {
			return "", attempt, err
		}
		if attempt == maxAttempts {
			break
		}

		delay := r.backoff(attempt)
		slog.Warn("Transient failure, retrying",
			"unit", name, "attempt", attempt, "max_attempts", maxAttempts,
			"delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return "", attempt, ctx.Err()
		case <-time.After(delay):
		}
	}

	return "", maxAttempts, lastErr
}

// backoff doubles the base delay for each completed attempt.
func (r Retrier) backoff(attempt int) time.Duration {
	delay := r.BaseDelay
	if delay <= 0 {
		delay = time.Second
	}
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}
