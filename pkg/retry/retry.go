package retry

import (
	"context"
	"fmt"
	"time"
)

// Option configures a retry run.
type Option func(*config)

type config struct {
	attempts  int
	baseDelay time.Duration
	retryable func(error) bool
	onRetry   func(attempt int, delay time.Duration, err error)
}

// WithAttempts sets the maximum number of attempts (including the first).
func WithAttempts(n int) Option {
	return func(c *config) {
		c.attempts = n
	}
}

// WithBaseDelay sets the delay before the second attempt.
// Subsequent delays double: base, 2*base, 4*base, ...
func WithBaseDelay(d time.Duration) Option {
	return func(c *config) {
		c.baseDelay = d
	}
}

// WithRetryIf sets a predicate deciding whether an error is retryable.
// Non-retryable errors abort immediately.
func WithRetryIf(pred func(error) bool) Option {
	return func(c *config) {
		c.retryable = pred
	}
}

// WithOnRetry sets a callback invoked before each backoff sleep.
func WithOnRetry(fn func(attempt int, delay time.Duration, err error)) Option {
	return func(c *config) {
		c.onRetry = fn
	}
}

// Do runs op with exponential backoff until it succeeds, the attempts are
// exhausted, a non-retryable error occurs, or ctx is cancelled.
func Do(ctx context.Context, op func(ctx context.Context) error, opts ...Option) error {
	cfg := &config{
		attempts:  3,
		baseDelay: time.Second,
		retryable: func(error) bool { return true },
	}
	for _, opt := range opts {
		opt(cfg)
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !cfg.retryable(lastErr) {
			return lastErr
		}
		if attempt == cfg.attempts {
			break
		}

		delay := cfg.baseDelay << (attempt - 1)
		if cfg.onRetry != nil {
			cfg.onRetry(attempt, delay, lastErr)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("after %d attempts: %w", cfg.attempts, lastErr)
}
