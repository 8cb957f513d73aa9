// Package circuitbreaker provides per-dependency circuit breakers for external service calls.
// It uses the github.com/sony/gobreaker library to prevent cascading failures.
//
// Every outbound dependency (LLM provider, video-platform API, KV store) gets its own
// breaker instance. A breaker opens after a configured number of consecutive failures,
// rejects calls immediately while open, and after the recovery timeout allows exactly
// one trial call to decide between closing and reopening.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// ErrDependencyUnavailable is returned when a call is rejected because the
// breaker is open. Callers match it with errors.Is and produce a degraded
// response without attempting the network call.
var ErrDependencyUnavailable = errors.New("dependency unavailable: circuit breaker open")

// DependencyError wraps ErrDependencyUnavailable with the dependency name for logs.
type DependencyError struct {
	Dependency string
}

// Error implements the error interface.
func (e *DependencyError) Error() string {
	return fmt.Sprintf("dependency %q unavailable: circuit breaker open", e.Dependency)
}

// Unwrap lets errors.Is(err, ErrDependencyUnavailable) match.
func (e *DependencyError) Unwrap() error { return ErrDependencyUnavailable }

// Config holds the configuration for a circuit breaker.
type Config struct {
	// Name is the dependency name used for logging and metrics.
	Name string

	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold uint32

	// RecoveryTimeout is how long to wait in open state before allowing a trial call.
	RecoveryTimeout time.Duration

	// CallTimeout bounds each call made through the breaker. A call that exceeds
	// it counts as a failure. Zero disables the per-call timeout.
	CallTimeout time.Duration
}

// DefaultConfig returns a default configuration for circuit breakers.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		CallTimeout:      10 * time.Second,
	}
}

// LLMProviderConfig returns configuration for LLM provider calls.
// Stricter threshold than other dependencies: every failed call still costs money.
func LLMProviderConfig() Config {
	return Config{
		Name:             "llm-provider",
		FailureThreshold: 3,
		RecoveryTimeout:  60 * time.Second,
		CallTimeout:      30 * time.Second,
	}
}

// VideoAPIConfig returns configuration for video-platform data API calls.
// Looser than the LLM breaker: the API is cheap and transient 5xx bursts are common.
func VideoAPIConfig() Config {
	return Config{
		Name:             "video-api",
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		CallTimeout:      10 * time.Second,
	}
}

// KVStoreConfig returns configuration for shared key-value store calls.
// Fast recovery so a cache blip degrades briefly rather than for minutes.
func KVStoreConfig() Config {
	return Config{
		Name:             "kv-store",
		FailureThreshold: 5,
		RecoveryTimeout:  15 * time.Second,
		CallTimeout:      2 * time.Second,
	}
}

// CircuitBreaker wraps gobreaker.CircuitBreaker with per-call timeouts and a
// distinguishable open-state error.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	name    string
	timeout time.Duration
}

// New creates a new circuit breaker with the given configuration.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.RecoveryTimeout == 0 {
		cfg.RecoveryTimeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name: cfg.Name,
		// Exactly one trial call is allowed in half-open state; its outcome
		// decides whether the circuit closes or reopens.
		MaxRequests: 1,
		Timeout:     cfg.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				slog.String("dependency", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			recordStateChange(name, to)
		},
	}

	return &CircuitBreaker{
		breaker: gobreaker.NewCircuitBreaker(settings),
		name:    cfg.Name,
		timeout: cfg.CallTimeout,
	}
}

// Execute runs the given function through the circuit breaker, bounded by the
// configured per-call timeout. While the circuit is open it fails fast with a
// *DependencyError wrapping ErrDependencyUnavailable.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	result, err := cb.breaker.Execute(func() (any, error) {
		callCtx := ctx
		if cb.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, cb.timeout)
			defer cancel()
		}
		return fn(callCtx)
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &DependencyError{Dependency: cb.name}
		}
		return nil, err
	}
	return result, nil
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.breaker.State()
}

// Name returns the dependency name of the circuit breaker.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// IsOpen returns true if the circuit breaker is in the open state.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.breaker.State() == gobreaker.StateOpen
}
