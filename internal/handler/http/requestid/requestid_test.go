package requestid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-7f3a")
	assert.Equal(t, "req-7f3a", FromContext(ctx))

	assert.Empty(t, FromContext(context.Background()))
}

func TestMiddleware_PropagatesCallerID(t *testing.T) {
	var seen string
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", nil)
	req.Header.Set(RequestIDHeader, "req-from-gateway")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-from-gateway", seen)
	assert.Equal(t, "req-from-gateway", rec.Header().Get(RequestIDHeader))
}

func TestMiddleware_GeneratesUUIDWhenMissing(t *testing.T) {
	var seen string
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/analyze", nil))

	require.NotEmpty(t, seen)
	_, err := uuid.Parse(seen)
	assert.NoError(t, err, "generated ID must be a UUID")
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader), "context and header must agree")
}

func TestMiddleware_DistinctIDsPerRequest(t *testing.T) {
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	ids := make(map[string]bool)
	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		ids[rec.Header().Get(RequestIDHeader)] = true
	}

	assert.Len(t, ids, 10)
}
