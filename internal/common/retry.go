package common

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/calwatch/warchest/internal/service"
)

// WithRetry runs op until it succeeds or the attempt budget runs out,
// backing off exponentially between attempts. The expected caller is a
// batch write hitting a busy SQLite connection.
func WithRetry(ctx context.Context, op func() error, opts service.RetryOptions) error {
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			wait := backoff(opts, attempt-1)
			slog.Warn("Retrying after failure",
				"attempt", attempt,
				"max_attempts", attempts,
				"wait", wait,
				"error", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if lastErr = op(); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", attempts, lastErr)
}

// backoff returns the delay before the given retry, counted from 1.
func backoff(opts service.RetryOptions, retry int) time.Duration {
	initial := opts.InitialDelay
	if initial <= 0 {
		initial = 100 * time.Millisecond
	}
	ceiling := opts.MaxDelay
	if ceiling <= 0 {
		ceiling = 30 * time.Second
	}
	multiplier := opts.Multiplier
	if multiplier <= 0 {
		multiplier = 2
	}

	wait := time.Duration(float64(initial) * math.Pow(multiplier, float64(retry-1)))
	if wait > ceiling {
		wait = ceiling
	}
	return wait
}
