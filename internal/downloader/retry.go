package downloader

import (
	"context"
	"time"

	"github.com/iconidentify/coursegrab/internal/config"
)

// RetryConfig holds retry configuration.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// RetryConfigFrom builds the transfer retry policy. MaxAttempts of 1 means
// a single attempt with no retry.
func RetryConfigFrom(cfg config.DownloadConfig) RetryConfig {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return RetryConfig{
		MaxAttempts:   attempts,
		InitialDelay:  cfg.RetryDelay,
		MaxDelay:      cfg.MaxRetryDelay,
		BackoffFactor: 2.0,
	}
}

// RetryWithCheck executes fn with exponential backoff while shouldRetry
// accepts the returned error.
func RetryWithCheck[T any](
	ctx context.Context,
	cfg RetryConfig,
	fn func() (T, error),
	shouldRetry func(error) bool,
) (T, error) {
	var lastErr error
	var zero T

	delay := cfg.InitialDelay

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}

		lastErr = err

		if !shouldRetry(err) || attempt == cfg.MaxAttempts-1 {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * cfg.BackoffFactor)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return zero, lastErr
}
