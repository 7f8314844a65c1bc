// pkg/retry/retry.go - functions for retrying actions with backoff.

package retry

import (
	"errors"
	"fmt"
	"time"

	"github.com/MSUDenverSystemsEngineering/AutoCAD2020/pkg/logging"
)

// NonRetryableError interface for errors that should not be retried
type NonRetryableError interface {
	error
	Unwrap() error
}

// RetryConfig defines the configuration for retry attempts
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	Multiplier      float64
}

// Retry retries a given function with exponential backoff
func Retry(config RetryConfig, action func() error) error {
	interval := config.InitialInterval

	var lastErr error
	for attempt := 1; attempt <= config.MaxRetries; attempt++ {
		err := action()
		if err == nil {
			return nil
		}
		lastErr = err

		// Check if this is a non-retryable error
		var nonRetryableErr NonRetryableError
		if errors.As(err, &nonRetryableErr) {
			logging.Warn("Non-retryable error encountered",
				"error", err.Error(), "attempt", attempt)
			return err
		}

		if attempt < config.MaxRetries {
			logging.Debug(fmt.Sprintf("Attempt %d/%d failed: %s. Retrying in %s...",
				attempt, config.MaxRetries, err.Error(), interval.String()))
		} else {
			logging.Warn(fmt.Sprintf("Attempt %d/%d failed: %s. No more retries.",
				attempt, config.MaxRetries, err.Error()))
		}

		time.Sleep(interval)
		interval = time.Duration(float64(interval) * config.Multiplier)
	}

	return fmt.Errorf("action failed after %d attempts: %w", config.MaxRetries, lastErr)
}
