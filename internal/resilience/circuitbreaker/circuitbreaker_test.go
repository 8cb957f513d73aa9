package circuitbreaker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream failure")

func failingCall(ctx context.Context) (any, error) { return nil, errUpstream }

func okCall(ctx context.Context) (any, error) { return "ok", nil }

func TestExecute_Success(t *testing.T) {
	cb := New(DefaultConfig("test-dep"))

	result, err := cb.Execute(context.Background(), okCall)

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestExecute_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := New(Config{
		Name:             "flaky",
		FailureThreshold: 5,
		RecoveryTimeout:  time.Minute,
	})

	for i := 0; i < 5; i++ {
		_, err := cb.Execute(context.Background(), failingCall)
		require.ErrorIs(t, err, errUpstream)
	}

	assert.True(t, cb.IsOpen())
}

func TestExecute_FailsFastWhileOpen(t *testing.T) {
	cb := New(Config{
		Name:             "flaky",
		FailureThreshold: 3,
		RecoveryTimeout:  time.Minute,
	})

	for i := 0; i < 3; i++ {
		_, _ = cb.Execute(context.Background(), failingCall)
	}
	require.True(t, cb.IsOpen())

	// While open the underlying call must not be attempted.
	var calls int32
	_, err := cb.Execute(context.Background(), func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, nil
	})

	require.ErrorIs(t, err, ErrDependencyUnavailable)
	var depErr *DependencyError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, "flaky", depErr.Dependency)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestExecute_SuccessResetsFailureCount(t *testing.T) {
	cb := New(Config{
		Name:             "flaky",
		FailureThreshold: 3,
		RecoveryTimeout:  time.Minute,
	})

	// Two failures, a success, then two more failures: never reaches three consecutive.
	_, _ = cb.Execute(context.Background(), failingCall)
	_, _ = cb.Execute(context.Background(), failingCall)
	_, err := cb.Execute(context.Background(), okCall)
	require.NoError(t, err)
	_, _ = cb.Execute(context.Background(), failingCall)
	_, _ = cb.Execute(context.Background(), failingCall)

	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestExecute_HalfOpenTrialSuccessCloses(t *testing.T) {
	cb := New(Config{
		Name:             "recovering",
		FailureThreshold: 2,
		RecoveryTimeout:  50 * time.Millisecond,
	})

	_, _ = cb.Execute(context.Background(), failingCall)
	_, _ = cb.Execute(context.Background(), failingCall)
	require.True(t, cb.IsOpen())

	time.Sleep(80 * time.Millisecond)

	_, err := cb.Execute(context.Background(), okCall)
	require.NoError(t, err)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestExecute_HalfOpenTrialFailureReopens(t *testing.T) {
	cb := New(Config{
		Name:             "still-broken",
		FailureThreshold: 2,
		RecoveryTimeout:  50 * time.Millisecond,
	})

	_, _ = cb.Execute(context.Background(), failingCall)
	_, _ = cb.Execute(context.Background(), failingCall)
	require.True(t, cb.IsOpen())

	time.Sleep(80 * time.Millisecond)

	_, err := cb.Execute(context.Background(), failingCall)
	require.ErrorIs(t, err, errUpstream)
	assert.True(t, cb.IsOpen())
}

func TestExecute_CallTimeoutCountsAsFailure(t *testing.T) {
	cb := New(Config{
		Name:             "slow",
		FailureThreshold: 2,
		RecoveryTimeout:  time.Minute,
		CallTimeout:      20 * time.Millisecond,
	})

	slow := func(ctx context.Context) (any, error) {
		select {
		case <-time.After(500 * time.Millisecond):
			return "late", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	_, err := cb.Execute(context.Background(), slow)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = cb.Execute(context.Background(), slow)
	require.Error(t, err)

	assert.True(t, cb.IsOpen())
}

func TestNew_AppliesDefaults(t *testing.T) {
	cb := New(Config{Name: "bare"})

	assert.Equal(t, "bare", cb.Name())
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestPresetConfigs(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"llm", LLMProviderConfig()},
		{"video", VideoAPIConfig()},
		{"kv", KVStoreConfig()},
		{"default", DefaultConfig("x")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEmpty(t, tt.cfg.Name)
			assert.Positive(t, tt.cfg.FailureThreshold)
			assert.Positive(t, tt.cfg.RecoveryTimeout)
		})
	}

	// The LLM breaker trips sooner than the video API breaker.
	assert.Less(t, LLMProviderConfig().FailureThreshold, VideoAPIConfig().FailureThreshold)
}
