package retry

import (
	"context"
	"errors"
	"net/http"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   time.Millisecond,
		MaxDelay:       5 * time.Millisecond,
		Multiplier:     2.0,
		JitterFraction: 0,
	}
}

func TestWithBackoff_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := WithBackoff(context.Background(), fastConfig(), func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithBackoff_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := WithBackoff(context.Background(), fastConfig(), func() error {
		calls++
		if calls < 3 {
			return &HTTPError{StatusCode: http.StatusServiceUnavailable, Message: "down"}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithBackoff_ExhaustsAttempts(t *testing.T) {
	calls := 0
	upstream := &HTTPError{StatusCode: http.StatusBadGateway, Message: "bad gateway"}

	err := WithBackoff(context.Background(), fastConfig(), func() error {
		calls++
		return upstream
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, upstream)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "max retry attempts")
}

func TestWithBackoff_NonRetryableAbortsImmediately(t *testing.T) {
	calls := 0
	badRequest := &HTTPError{StatusCode: http.StatusBadRequest, Message: "bad request"}

	err := WithBackoff(context.Background(), fastConfig(), func() error {
		calls++
		return badRequest
	})

	require.ErrorIs(t, err, badRequest)
	assert.Equal(t, 1, calls)
}

func TestWithBackoff_ContextCancelledDuringWait(t *testing.T) {
	cfg := fastConfig()
	cfg.InitialDelay = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := WithBackoff(ctx, cfg, func() error {
		calls++
		return &HTTPError{StatusCode: http.StatusInternalServerError, Message: "boom"}
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"context canceled", context.Canceled, false},
		{"deadline exceeded", context.DeadlineExceeded, false},
		{"connection refused", syscall.ECONNREFUSED, true},
		{"connection reset", syscall.ECONNRESET, true},
		{"http 500", &HTTPError{StatusCode: 500, Message: "x"}, true},
		{"http 503", &HTTPError{StatusCode: 503, Message: "x"}, true},
		{"http 429", &HTTPError{StatusCode: 429, Message: "x"}, true},
		{"http 408", &HTTPError{StatusCode: 408, Message: "x"}, true},
		{"http 400", &HTTPError{StatusCode: 400, Message: "x"}, false},
		{"http 404", &HTTPError{StatusCode: 404, Message: "x"}, false},
		{"plain error", errors.New("nope"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestHTTPError_Error(t *testing.T) {
	err := &HTTPError{StatusCode: 502, Message: "bad gateway"}
	assert.Equal(t, "HTTP 502: bad gateway", err.Error())
}

func TestAddJitter_Bounds(t *testing.T) {
	base := 100 * time.Millisecond

	assert.Equal(t, base, addJitter(base, 0))

	for i := 0; i < 20; i++ {
		jittered := addJitter(base, 0.5)
		assert.GreaterOrEqual(t, jittered, base)
		assert.LessOrEqual(t, jittered, base+base/2)
	}
}

func TestProfileConfigs(t *testing.T) {
	for _, cfg := range []Config{DefaultConfig(), LLMAPIConfig(), VideoAPIConfig(), KVStoreConfig(), TaskConfig()} {
		assert.Positive(t, cfg.MaxAttempts)
		assert.Positive(t, cfg.InitialDelay)
		assert.GreaterOrEqual(t, cfg.MaxDelay, cfg.InitialDelay)
	}
}
