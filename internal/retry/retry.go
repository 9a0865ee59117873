// Package retry implements exponential backoff for transient failures,
// used by scraper HTTP fetches and the job stream resubscribe loop.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	// ErrMaxAttemptsExceeded is returned once every attempt has failed.
	ErrMaxAttemptsExceeded = errors.New("max retry attempts exceeded")
	// ErrContextCancelled is returned when the context ends mid-retry.
	ErrContextCancelled = errors.New("context cancelled during retry")
)

// Config controls the backoff schedule.
type Config struct {
	// MaxAttempts bounds the total number of calls, initial one included.
	// Zero or negative means unbounded.
	MaxAttempts int
	// InitialDelay is the pause before the first retry.
	InitialDelay time.Duration
	// MaxDelay caps the exponential growth.
	MaxDelay time.Duration
	// Multiplier is the per-attempt growth factor.
	Multiplier float64
	// IsRetryable decides whether an error is worth another attempt.
	// Nil means DefaultIsRetryable.
	IsRetryable func(error) bool
}

// DefaultConfig is tuned for short HTTP fetches.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		IsRetryable:  DefaultIsRetryable,
	}
}

// StreamConfig is tuned for reattaching a dropped event stream: patient
// initial delay, unbounded attempts, capped at ten seconds.
func StreamConfig() Config {
	return Config{
		MaxAttempts:  0,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		IsRetryable:  func(error) bool { return true },
	}
}

// DefaultIsRetryable treats network-shaped failures as transient.
func DefaultIsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"timeout",
		"deadline exceeded",
		"connection refused",
		"connection reset",
		"no such host",
		"temporary failure",
		"network is unreachable",
		"i/o timeout",
		"unexpected eof",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// Delay returns the backoff delay preceding the given retry attempt
// (attempt 1 is the first retry).
func (c Config) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := c.InitialDelay
	if initial <= 0 {
		initial = 100 * time.Millisecond
	}
	mult := c.Multiplier
	if mult <= 0 {
		mult = 2.0
	}
	max := c.MaxDelay
	if max <= 0 {
		max = 30 * time.Second
	}

	d := time.Duration(float64(initial) * math.Pow(mult, float64(attempt-1)))
	if d > max || d <= 0 {
		d = max
	}
	return d
}

// Do runs fn until it succeeds, returns a non-retryable error, exhausts
// MaxAttempts, or the context ends.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	isRetryable := cfg.IsRetryable
	if isRetryable == nil {
		isRetryable = DefaultIsRetryable
	}

	var lastErr error
	for attempt := 1; cfg.MaxAttempts <= 0 || attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrContextCancelled, err)
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(cfg.Delay(attempt)):
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrMaxAttemptsExceeded, cfg.MaxAttempts, lastErr)
}
