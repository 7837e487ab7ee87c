// Package retry provides bounded retry with backoff for outbound calls.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Itoktsnhc/stat.itok/internal/logging"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts  int           // Maximum number of attempts, including the first
	InitialDelay time.Duration // Delay after the first failed attempt
	Increment    time.Duration // Added per completed attempt (linear backoff)
	Multiplier   float64       // >1 switches to exponential backoff
	MaxDelay     time.Duration // Cap on any single delay
}

// DefaultRetryConfig returns the standard outbound-call policy:
// 3 attempts, delays 3s then 4s.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 3 * time.Second,
		Increment:    time.Second,
		MaxDelay:     30 * time.Second,
	}
}

// RetryResult contains information about the retry operation
type RetryResult struct {
	Attempts      int           `json:"attempts"`
	Success       bool          `json:"success"`
	TotalDuration time.Duration `json:"totalDuration"`
	LastError     error         `json:"lastError,omitempty"`
}

// RetryFunc is a function that can be retried
type RetryFunc func(ctx context.Context, attempt int) error

// WithBackoff executes a function under the given retry policy.
// Exhaustion surfaces the last error in the result; it is never
// escalated further here.
func WithBackoff(ctx context.Context, config *RetryConfig, fn RetryFunc) *RetryResult {
	logger := logging.FromContext(ctx)
	startTime := time.Now()

	result := &RetryResult{}

	var lastErr error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		result.Attempts = attempt

		err := fn(ctx, attempt)
		if err == nil {
			result.Success = true
			result.TotalDuration = time.Since(startTime)

			if attempt > 1 {
				logger.WithFields(map[string]interface{}{
					"attempts":      attempt,
					"totalDuration": result.TotalDuration,
				}).Info("Operation succeeded after retry")
			}

			return result
		}

		lastErr = err
		result.LastError = err

		if attempt >= config.MaxAttempts {
			logger.WithFields(map[string]interface{}{
				"attempts":      attempt,
				"totalDuration": time.Since(startTime),
				"error":         err.Error(),
			}).Error("Operation failed after max retry attempts")
			break
		}

		if ctx.Err() != nil {
			result.LastError = ctx.Err()
			break
		}

		delay := calculateDelay(config, attempt)

		logger.WithFields(map[string]interface{}{
			"attempt":     attempt,
			"maxAttempts": config.MaxAttempts,
			"delay":       delay,
			"error":       err.Error(),
		}).Warn("Operation failed, retrying")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			result.LastError = ctx.Err()
			result.TotalDuration = time.Since(startTime)
			return result
		}
	}

	result.TotalDuration = time.Since(startTime)
	result.LastError = lastErr
	return result
}

// calculateDelay calculates the delay after the given failed attempt
// (1-based). Linear unless a multiplier is configured.
func calculateDelay(config *RetryConfig, attempt int) time.Duration {
	var delay time.Duration
	if config.Multiplier > 1 {
		delay = time.Duration(float64(config.InitialDelay) * math.Pow(config.Multiplier, float64(attempt-1)))
	} else {
		delay = config.InitialDelay + time.Duration(attempt-1)*config.Increment
	}

	if config.MaxDelay > 0 && delay > config.MaxDelay {
		delay = config.MaxDelay
	}

	return delay
}

// Do is the common entry point: runs fn under the standard policy and
// returns the last error on exhaustion.
func Do(ctx context.Context, fn RetryFunc) error {
	return DoWithConfig(ctx, DefaultRetryConfig(), fn)
}

// DoWithConfig runs fn under a custom policy and returns the last error
// on exhaustion.
func DoWithConfig(ctx context.Context, config *RetryConfig, fn RetryFunc) error {
	result := WithBackoff(ctx, config, fn)
	if !result.Success {
		return fmt.Errorf("operation failed after %d attempts: %w", result.Attempts, result.LastError)
	}
	return nil
}
