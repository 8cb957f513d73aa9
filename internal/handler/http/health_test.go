package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creator-insights/internal/cache"
	"creator-insights/internal/infra/kvstore"
	"creator-insights/internal/taskqueue"
)

// failingStore simulates an unreachable backing store.
type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection refused")
}

func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}

func (failingStore) Delete(context.Context, string) error {
	return errors.New("connection refused")
}

func (failingStore) Expire(context.Context, string, time.Duration) error {
	return errors.New("connection refused")
}

func (failingStore) PurgeExpired(context.Context) (int, error) {
	return 0, errors.New("connection refused")
}

func TestHealthHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		kv             kvstore.Store
		expectedStatus int
		expectStatus   string
		expectKVStatus string
	}{
		{
			name:           "healthy store",
			kv:             kvstore.NewMemoryStore(),
			expectedStatus: http.StatusOK,
			expectStatus:   "healthy",
			expectKVStatus: "healthy",
		},
		{
			name:           "unreachable store reported as degraded",
			kv:             failingStore{},
			expectedStatus: http.StatusOK,
			expectStatus:   "healthy",
			expectKVStatus: "degraded",
		},
		{
			name:           "no store configured",
			kv:             nil,
			expectedStatus: http.StatusServiceUnavailable,
			expectStatus:   "unhealthy",
			expectKVStatus: "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := &HealthHandler{KV: tt.kv, Version: "test"}

			req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)

			var resp HealthResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, tt.expectStatus, resp.Status)
			assert.Equal(t, tt.expectKVStatus, resp.Checks["kvstore"].Status)
			assert.Equal(t, "test", resp.Version)
		})
	}
}

func TestHealthHandler_IncludesCacheAndQueueDetails(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	resultCache := cache.New(kv, cache.Config{Capacity: 10})
	queue := taskqueue.New(taskqueue.Config{Workers: 1, DefaultTimeout: time.Second})

	handler := &HealthHandler{KV: kv, Cache: resultCache, Queue: queue, Version: "test"}

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	cacheCheck, ok := resp.Checks["cache"]
	require.True(t, ok)
	assert.Equal(t, "healthy", cacheCheck.Status)
	assert.Contains(t, cacheCheck.Details, "hit_rate")

	queueCheck, ok := resp.Checks["task_queue"]
	require.True(t, ok)
	assert.EqualValues(t, 0, queueCheck.Details["depth"])
}

func TestHealthHandler_CacheControl(t *testing.T) {
	handler := &HealthHandler{KV: kvstore.NewMemoryStore(), Version: "test"}

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, "no-cache, no-store, must-revalidate", rr.Header().Get("Cache-Control"))
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
}

func TestReadyHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		kv             kvstore.Store
		expectedStatus int
	}{
		{
			name:           "store ready",
			kv:             kvstore.NewMemoryStore(),
			expectedStatus: http.StatusOK,
		},
		{
			name:           "store unreachable",
			kv:             failingStore{},
			expectedStatus: http.StatusServiceUnavailable,
		},
		{
			name:           "no store configured",
			kv:             nil,
			expectedStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := &ReadyHandler{KV: tt.kv}

			req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
		})
	}
}

func TestLiveHandler_ServeHTTP(t *testing.T) {
	handler := &LiveHandler{}

	req := httptest.NewRequest(http.MethodGet, "/api/live", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "alive", rr.Body.String())
}
