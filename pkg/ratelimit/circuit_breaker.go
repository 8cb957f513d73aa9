package ratelimit

import (
	"log/slog"
	"sync"
	"time"
)

// CircuitState is the breaker's position.
type CircuitState int

const (
	// StateClosed is normal operation.
	StateClosed CircuitState = iota

	// StateOpen means the store kept failing. While open the breaker
	// fails open: requests pass without a rate limit check, because
	// dropping traffic over a broken limiter store is worse than briefly
	// not limiting.
	StateOpen

	// StateHalfOpen lets one check through to see whether the store has
	// recovered.
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures one breaker. Zero values fall back to a
// threshold of 10 failures, a 30s recovery timeout, SystemClock and
// NoOpMetrics.
type CircuitBreakerConfig struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
	Clock            Clock
	Metrics          RateLimitMetrics

	// LimiterType names the limiter this breaker protects, "ip" or "user".
	LimiterType string
}

// CircuitBreaker shields request handling from a failing rate limit store.
// Closed runs checks normally; after FailureThreshold consecutive failures
// it opens and skips checks entirely; after RecoveryTimeout it goes
// half-open and retries one check. Fail-open trades strict limiting for
// availability.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu            sync.RWMutex
	state         CircuitState
	failureStreak int
	lastFailure   time.Time
	changedAt     time.Time
}

func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 10
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 30 * time.Second
	}
	if config.Clock == nil {
		config.Clock = &SystemClock{}
	}
	if config.Metrics == nil {
		config.Metrics = &NoOpMetrics{}
	}

	cb := &CircuitBreaker{
		config:    config,
		state:     StateClosed,
		changedAt: config.Clock.Now(),
	}

	config.Metrics.RecordCircuitState(config.LimiterType, cb.state.String())

	return cb
}

// Execute runs operation under breaker control. Open circuits return nil
// without invoking the operation at all; half-open circuits use the call to
// decide between reopening and closing.
func (cb *CircuitBreaker) Execute(operation func() error) error {
	cb.attemptRecovery()

	switch cb.State() {
	case StateOpen:
		return nil
	case StateHalfOpen:
		return cb.runHalfOpen(operation)
	default:
		return cb.runClosed(operation)
	}
}

func (cb *CircuitBreaker) runClosed(operation func() error) error {
	if err := operation(); err != nil {
		cb.RecordFailure()
		return err
	}

	cb.RecordSuccess()
	return nil
}

func (cb *CircuitBreaker) runHalfOpen(operation func() error) error {
	if err := operation(); err != nil {
		// Recovery attempt failed, back to open.
		cb.mu.Lock()
		cb.failureStreak++
		cb.lastFailure = cb.config.Clock.Now()
		cb.transition(StateOpen)
		cb.mu.Unlock()
		return err
	}

	cb.mu.Lock()
	cb.failureStreak = 0
	cb.transition(StateClosed)
	cb.mu.Unlock()
	return nil
}

// transition moves the breaker to a new state, records the metric, and logs
// the change. Caller holds the write lock.
func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	cb.state = to
	cb.changedAt = cb.config.Clock.Now()

	cb.config.Metrics.RecordCircuitState(cb.config.LimiterType, to.String())

	slog.Warn("circuit breaker state changed",
		slog.String("limiter_type", cb.config.LimiterType),
		slog.String("previous_state", from.String()),
		slog.String("new_state", to.String()),
		slog.Int("consecutive_failures", cb.failureStreak),
		slog.Duration("recovery_timeout", cb.config.RecoveryTimeout))
}

// Allow always returns true. Every state admits the request; the states
// only differ in whether the rate limit check runs.
func (cb *CircuitBreaker) Allow() bool {
	cb.attemptRecovery()
	return true
}

// RecordSuccess clears the failure streak.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureStreak = 0
}

// RecordFailure counts one failure and opens the circuit once the threshold
// is hit.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureStreak++
	cb.lastFailure = cb.config.Clock.Now()

	if cb.failureStreak >= cb.config.FailureThreshold && cb.state == StateClosed {
		cb.transition(StateOpen)
	}
}

func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

func (cb *CircuitBreaker) IsOpen() bool {
	return cb.State() == StateOpen
}

func (cb *CircuitBreaker) IsClosed() bool {
	return cb.State() == StateClosed
}

func (cb *CircuitBreaker) IsHalfOpen() bool {
	return cb.State() == StateHalfOpen
}

// Reset forces the breaker closed. Used by tests and manual intervention.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failureStreak = 0
	cb.lastFailure = time.Time{}
	cb.changedAt = cb.config.Clock.Now()

	cb.config.Metrics.RecordCircuitState(cb.config.LimiterType, StateClosed.String())
}

// attemptRecovery moves an open circuit to half-open once the recovery
// timeout has elapsed.
func (cb *CircuitBreaker) attemptRecovery() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return
	}

	now := cb.config.Clock.Now()
	if now.Sub(cb.changedAt) >= cb.config.RecoveryTimeout {
		cb.state = StateHalfOpen
		cb.changedAt = now
		cb.config.Metrics.RecordCircuitState(cb.config.LimiterType, StateHalfOpen.String())
	}
}

// CircuitBreakerStats is a snapshot for monitoring.
type CircuitBreakerStats struct {
	State               CircuitState
	ConsecutiveFailures int
	LastFailureTime     time.Time
	LastStateChange     time.Time
	TimeSinceLastChange time.Duration
}

func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	now := cb.config.Clock.Now()
	return CircuitBreakerStats{
		State:               cb.state,
		ConsecutiveFailures: cb.failureStreak,
		LastFailureTime:     cb.lastFailure,
		LastStateChange:     cb.changedAt,
		TimeSinceLastChange: now.Sub(cb.changedAt),
	}
}
