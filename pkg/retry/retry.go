package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "membitnode/pkg/errors"
	"membitnode/pkg/logger"
)

// Operation is a function that may need retrying.
type Operation func() error

// Config holds retry behaviour.
type Config struct {
	// MaxAttempts is the total number of attempts (0 means a single try).
	MaxAttempts int
	// Backoff computes per-attempt delays.
	Backoff BackoffStrategy
	// RetryIf decides whether an error is worth retrying.
	RetryIf func(error) bool
	// Context cancels waits between attempts.
	Context context.Context
	// Logger receives retry warnings.
	Logger logger.Logger
}

// DefaultConfig returns a retry configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Backoff:     DefaultExponentialBackoff(),
		RetryIf:     DefaultRetryIf,
		Context:     context.Background(),
	}
}

// DefaultRetryIf retries typed network/server errors and skips everything
// else, including context cancellation.
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		return errs.IsRetryable(apiErr.Type)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// Do runs op, retrying per cfg.
func Do(op Operation, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}

	var lastErr error
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err

		if !retryIf(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		delay := cfg.Backoff.NextDelay(attempt)
		if cfg.Logger != nil {
			cfg.Logger.WarnWithFields("retrying operation", map[string]interface{}{
				"attempt":  attempt,
				"delay_ms": delay.Milliseconds(),
				"error":    err.Error(),
			})
		}
		if err := Wait(ctx, delay); err != nil {
			return err
		}
	}

	return fmt.Errorf("max retry attempts (%d) exceeded: %w", attempts, lastErr)
}

// Wait sleeps for the given delay, returning early if ctx is cancelled.
func Wait(ctx context.Context, delay time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}
