package ratelimit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(clock Clock) *CircuitBreaker {
	return NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  30 * time.Second,
		Clock:            clock,
		LimiterType:      "ip",
	})
}

func TestCircuitBreaker_DefaultsApplied(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{LimiterType: "user"})

	assert.Equal(t, 10, cb.config.FailureThreshold)
	assert.Equal(t, 30*time.Second, cb.config.RecoveryTimeout)
	assert.NotNil(t, cb.config.Clock)
	assert.NotNil(t, cb.config.Metrics)
	assert.True(t, cb.IsClosed())
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	cb := newTestBreaker(clock)
	limiterDown := errors.New("limiter store unavailable")

	for i := 0; i < 2; i++ {
		err := cb.Execute(func() error { return limiterDown })
		require.Error(t, err)
		assert.True(t, cb.IsClosed(), "below threshold after %d failures", i+1)
	}

	err := cb.Execute(func() error { return limiterDown })
	require.Error(t, err)
	assert.True(t, cb.IsOpen())
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	cb := newTestBreaker(clock)
	limiterDown := errors.New("limiter store unavailable")

	_ = cb.Execute(func() error { return limiterDown })
	_ = cb.Execute(func() error { return limiterDown })
	require.NoError(t, cb.Execute(func() error { return nil }))

	// The counter restarted, so two more failures stay under the threshold.
	_ = cb.Execute(func() error { return limiterDown })
	_ = cb.Execute(func() error { return limiterDown })
	assert.True(t, cb.IsClosed())
}

func TestCircuitBreaker_OpenFailsOpen(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	cb := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errors.New("down") })
	}
	require.True(t, cb.IsOpen())

	// Open circuit skips the limiter entirely and lets the request through.
	executed := false
	err := cb.Execute(func() error {
		executed = true
		return nil
	})
	assert.NoError(t, err)
	assert.False(t, executed, "operation must not run while open")
	assert.True(t, cb.Allow())
}

func TestCircuitBreaker_HalfOpenAfterRecoveryTimeout(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	cb := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errors.New("down") })
	}
	require.True(t, cb.IsOpen())

	clock.Advance(31 * time.Second)
	cb.Allow()

	assert.True(t, cb.IsHalfOpen())
}

func TestCircuitBreaker_HalfOpenSuccessCloses(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	cb := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errors.New("down") })
	}
	clock.Advance(31 * time.Second)

	require.NoError(t, cb.Execute(func() error { return nil }))

	assert.True(t, cb.IsClosed())
	assert.Zero(t, cb.Stats().ConsecutiveFailures)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	cb := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errors.New("down") })
	}
	clock.Advance(31 * time.Second)

	err := cb.Execute(func() error { return errors.New("still down") })

	require.Error(t, err)
	assert.True(t, cb.IsOpen())
}

func TestCircuitBreaker_Reset(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	cb := newTestBreaker(clock)

	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errors.New("down") })
	}
	require.True(t, cb.IsOpen())

	cb.Reset()

	assert.True(t, cb.IsClosed())
	stats := cb.Stats()
	assert.Zero(t, stats.ConsecutiveFailures)
	assert.True(t, stats.LastFailureTime.IsZero())
}

func TestCircuitBreaker_StateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(99).String())
}

func TestCircuitBreaker_StatsTracksTiming(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	cb := newTestBreaker(clock)

	clock.Advance(10 * time.Second)
	stats := cb.Stats()

	assert.Equal(t, StateClosed, stats.State)
	assert.Equal(t, 10*time.Second, stats.TimeSinceLastChange)
}
