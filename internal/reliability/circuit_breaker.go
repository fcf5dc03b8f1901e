package reliability

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aashari/go-onemin-gateway/internal/logger"
)

// ErrCircuitOpen is returned without any network attempt while the breaker
// is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreakerConfig defines configuration for circuit breaker behavior
type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold int
	Timeout          time.Duration
	// OnStateChange is called outside the lock after every transition.
	OnStateChange func(name string, from, to CircuitState)
	// IsFailure decides whether an error returned to Execute says something
	// about upstream health. nil counts every error.
	IsFailure func(err error) bool
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// DefaultCircuitBreakerConfig opens after 5 failures and probes again after
// 60 seconds.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		Timeout:          60 * time.Second,
	}
}

// CircuitBreaker guards an upstream. One instance is shared by every request
// to the same upstream, so failureCount and openedAt only change under mu.
//
// Open means openedAt is set and less than Timeout has elapsed. The first
// check after Timeout clears both fields and lets exactly one trial call
// through (half-open); a failed trial re-opens immediately.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	now    func() time.Time

	mu            sync.Mutex
	failureCount  int
	openedAt      time.Time
	halfOpen      bool
	trialInFlight bool
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}
	return &CircuitBreaker{config: config, now: now}
}

// Name returns the configured breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.config.Name
}

// IsOpen reports whether calls are currently rejected. Once Timeout has
// passed since opening it resets the failure count and returns false.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	open, transition := cb.checkLocked()
	cb.mu.Unlock()
	cb.notify(transition)
	return open
}

// checkLocked must be called with mu held.
func (cb *CircuitBreaker) checkLocked() (bool, *stateChange) {
	if cb.openedAt.IsZero() {
		return false, nil
	}
	if cb.now().Sub(cb.openedAt) >= cb.config.Timeout {
		cb.failureCount = 0
		cb.openedAt = time.Time{}
		cb.halfOpen = true
		cb.trialInFlight = false
		return false, &stateChange{from: StateOpen, to: StateHalfOpen}
	}
	return true, nil
}

// Allow claims permission for one call. While half-open only the first
// caller is let through until it reports its outcome.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	open, transition := cb.checkLocked()
	if !open && cb.halfOpen {
		if cb.trialInFlight {
			open = true
		} else {
			cb.trialInFlight = true
		}
	}
	cb.mu.Unlock()
	cb.notify(transition)

	if open {
		return ErrCircuitOpen
	}
	return nil
}

// RecordSuccess closes the breaker from any state.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	from := cb.stateLocked()
	cb.failureCount = 0
	cb.openedAt = time.Time{}
	cb.halfOpen = false
	cb.trialInFlight = false
	cb.mu.Unlock()

	if from != StateClosed {
		cb.notify(&stateChange{from: from, to: StateClosed})
	}
}

// RecordFailure counts a failed call and opens the breaker at the threshold,
// or immediately when the failed call was the half-open trial.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	from := cb.stateLocked()
	cb.failureCount++
	if cb.halfOpen || cb.failureCount >= cb.config.FailureThreshold {
		cb.openedAt = cb.now()
		cb.halfOpen = false
		cb.trialInFlight = false
	}
	to := cb.stateLocked()
	failures := cb.failureCount
	cb.mu.Unlock()

	if from != to {
		logger.Warn("Circuit breaker opened",
			"circuit_name", cb.config.Name,
			"failure_count", failures,
			"timeout_seconds", cb.config.Timeout.Seconds(),
			"stage", logger.LogStages.CircuitBreaker)
		cb.notify(&stateChange{from: from, to: to})
	}
}

// Execute runs operation if the breaker allows it and records the outcome.
// Neither a context cancelled by the caller nor an error rejected by
// IsFailure touches the counters; both only free the half-open trial slot.
func (cb *CircuitBreaker) Execute(ctx context.Context, operation func() error) error {
	if err := cb.Allow(); err != nil {
		logger.WarnCtx(ctx, "Circuit breaker rejected call",
			"circuit_name", cb.config.Name,
			"stage", logger.LogStages.CircuitBreaker)
		return err
	}

	err := operation()
	switch {
	case err == nil:
		cb.RecordSuccess()
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		cb.release()
	case cb.config.IsFailure != nil && !cb.config.IsFailure(err):
		cb.release()
	default:
		cb.RecordFailure()
	}
	return err
}

// release gives back a half-open trial slot without judging the upstream.
func (cb *CircuitBreaker) release() {
	cb.mu.Lock()
	cb.trialInFlight = false
	cb.mu.Unlock()
}

// State reports the current state without triggering the timeout reset.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stateLocked()
}

func (cb *CircuitBreaker) stateLocked() CircuitState {
	switch {
	case !cb.openedAt.IsZero():
		return StateOpen
	case cb.halfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Stats returns a snapshot for health reporting.
func (cb *CircuitBreaker) Stats() map[string]any {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	stats := map[string]any{
		"name":              cb.config.Name,
		"state":             cb.stateLocked().String(),
		"failure_count":     cb.failureCount,
		"failure_threshold": cb.config.FailureThreshold,
		"timeout_seconds":   cb.config.Timeout.Seconds(),
	}
	if !cb.openedAt.IsZero() {
		stats["opened_at"] = cb.openedAt.UTC().Format(time.RFC3339)
	}
	return stats
}

type stateChange struct {
	from, to CircuitState
}

func (cb *CircuitBreaker) notify(change *stateChange) {
	if change == nil || cb.config.OnStateChange == nil {
		return
	}
	cb.config.OnStateChange(cb.config.Name, change.from, change.to)
}
