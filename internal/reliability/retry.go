package reliability

import (
	"context"
	"errors"
	"math"
	"slices"
	"time"

	"github.com/aashari/go-onemin-gateway/internal/logger"
)

// DefaultRetryableStatuses are the transient upstream statuses worth
// another attempt.
var DefaultRetryableStatuses = []int{429, 500, 502, 503, 504}

// RetryConfig defines configuration for retry behavior
type RetryConfig struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	// RetryableStatuses lists the HTTP statuses that may be retried.
	RetryableStatuses []int
}

// DefaultRetryConfig retries three times with 0.5s, 1s, 2s between attempts.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          8 * time.Second,
		BackoffFactor:     2.0,
		RetryableStatuses: DefaultRetryableStatuses,
	}
}

// RetryableError is implemented by errors that know whether a retry may help.
type RetryableError interface {
	error
	IsRetriable() bool
}

// RetryAfterError is implemented by errors carrying a server-provided delay.
type RetryAfterError interface {
	error
	RetryAfter() time.Duration
}

// RetryExecutor handles retry logic with exponential backoff
type RetryExecutor struct {
	config RetryConfig
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetryExecutor creates a new retry executor with the given configuration
func NewRetryExecutor(config RetryConfig) *RetryExecutor {
	if config.BackoffFactor <= 0 {
		config.BackoffFactor = 2.0
	}
	if config.RetryableStatuses == nil {
		config.RetryableStatuses = DefaultRetryableStatuses
	}
	return &RetryExecutor{config: config, sleep: sleepCtx}
}

// IsRetryableStatus reports whether status is in the configured set.
func (r *RetryExecutor) IsRetryableStatus(status int) bool {
	return slices.Contains(r.config.RetryableStatuses, status)
}

// ExecuteWithRetry runs operation until it succeeds, returns an error that
// is not a retriable RetryableError, or runs out of retries. The last error
// is returned unchanged.
func (r *RetryExecutor) ExecuteWithRetry(ctx context.Context, operation func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = operation()
		if err == nil {
			if attempt > 0 {
				logger.InfoCtx(ctx, "Operation succeeded after retry",
					"attempt", attempt+1,
					"stage", logger.LogStages.Retry)
			}
			return nil
		}

		var retryable RetryableError
		if !errors.As(err, &retryable) || !retryable.IsRetriable() {
			return err
		}
		if attempt >= r.config.MaxRetries {
			logger.WarnCtx(ctx, "Max retry attempts reached",
				"attempts", attempt+1,
				"error", err,
				"stage", logger.LogStages.Retry)
			return err
		}

		delay := r.calculateBackoff(attempt + 1)
		var withDelay RetryAfterError
		if errors.As(err, &withDelay) {
			if d := withDelay.RetryAfter(); d > 0 && d <= r.config.MaxDelay {
				delay = d
			}
		}

		logger.WarnCtx(ctx, "Upstream call failed, retrying",
			"attempt", attempt+1,
			"max_retries", r.config.MaxRetries,
			"delay_ms", delay.Milliseconds(),
			"error", err,
			"stage", logger.LogStages.Retry)

		if sleepErr := r.sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
	}
}

// calculateBackoff returns InitialDelay * BackoffFactor^(retry-1), capped at
// MaxDelay. retry starts at 1.
func (r *RetryExecutor) calculateBackoff(retry int) time.Duration {
	delay := float64(r.config.InitialDelay) * math.Pow(r.config.BackoffFactor, float64(retry-1))
	if r.config.MaxDelay > 0 && time.Duration(delay) > r.config.MaxDelay {
		return r.config.MaxDelay
	}
	return time.Duration(delay)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
