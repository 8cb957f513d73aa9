package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loginRequest(remoteAddr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/auth/token", nil)
	req.RemoteAddr = remoteAddr
	return req
}

func TestRateLimiter_AllowsWithinLimit(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute, &RemoteAddrExtractor{})
	next := &okHandler{}
	handler := limiter.Middleware(next)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, loginRequest("203.0.113.7:41000"))
		assert.Equal(t, http.StatusOK, rec.Code, "attempt %d", i+1)
	}
	assert.Equal(t, 3, next.calls)
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	limiter := NewRateLimiter(2, time.Minute, &RemoteAddrExtractor{})
	next := &okHandler{}
	handler := limiter.Middleware(next)

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), loginRequest("203.0.113.7:41000"))
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("203.0.113.7:41000"))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 2, next.calls, "blocked login must not reach the handler")
}

func TestRateLimiter_IPsAreIndependent(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute, &RemoteAddrExtractor{})
	handler := limiter.Middleware(&okHandler{})

	handler.ServeHTTP(httptest.NewRecorder(), loginRequest("203.0.113.7:41000"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("203.0.113.7:41000"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("198.51.100.9:52000"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter_WindowExpires(t *testing.T) {
	limiter := NewRateLimiter(1, 50*time.Millisecond, &RemoteAddrExtractor{})
	handler := limiter.Middleware(&okHandler{})

	handler.ServeHTTP(httptest.NewRecorder(), loginRequest("203.0.113.7:41000"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("203.0.113.7:41000"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	time.Sleep(60 * time.Millisecond)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("203.0.113.7:41000"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter_BadAddressRejected(t *testing.T) {
	limiter := NewRateLimiter(5, time.Minute, &RemoteAddrExtractor{})
	handler := limiter.Middleware(&okHandler{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("garbage"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRateLimiter_CleanupExpiredDropsIdleIPs(t *testing.T) {
	limiter := NewRateLimiter(5, 10*time.Millisecond, &RemoteAddrExtractor{})
	handler := limiter.Middleware(&okHandler{})

	handler.ServeHTTP(httptest.NewRecorder(), loginRequest("203.0.113.7:41000"))
	handler.ServeHTTP(httptest.NewRecorder(), loginRequest("198.51.100.9:52000"))
	require.Len(t, limiter.hits, 2)

	time.Sleep(20 * time.Millisecond)
	limiter.CleanupExpired()

	assert.Empty(t, limiter.hits)
}
