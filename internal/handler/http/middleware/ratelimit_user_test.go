package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creator-insights/pkg/ratelimit"
)

type ctxKey string

const userKey ctxKey = "user"

func authedRequest(userID string) *http.Request {
	req := analyzeRequest("203.0.113.7:41000")
	return req.WithContext(context.WithValue(req.Context(), userKey, userID))
}

func TestJWTUserExtractor_ExtractUser(t *testing.T) {
	extractor := NewJWTUserExtractor(userKey, nil)

	userID, tier, ok := extractor.ExtractUser(authedRequest("creator-42@studio.example").Context())
	require.True(t, ok)
	assert.Equal(t, "creator-42@studio.example", userID)
	assert.Equal(t, ratelimit.TierBasic, tier, "nil provider defaults everyone to basic")

	_, _, ok = extractor.ExtractUser(context.Background())
	assert.False(t, ok)

	empty := context.WithValue(context.Background(), userKey, "")
	_, _, ok = extractor.ExtractUser(empty)
	assert.False(t, ok, "empty user ID is not an identity")
}

type fixedTierProvider struct {
	tier ratelimit.UserTier
}

func (p *fixedTierProvider) GetUserTier(ctx context.Context, userID string) ratelimit.UserTier {
	return p.tier
}

func TestJWTUserExtractor_UsesTierProvider(t *testing.T) {
	extractor := NewJWTUserExtractor(userKey, &fixedTierProvider{tier: ratelimit.TierPremium})

	_, tier, ok := extractor.ExtractUser(authedRequest("creator-42@studio.example").Context())

	require.True(t, ok)
	assert.Equal(t, ratelimit.TierPremium, tier)
}

func TestUserRateLimiter_EnforcesTierQuota(t *testing.T) {
	clock := newTestClock()
	config := newUserLimiterConfig(clock, &staticUserExtractor{
		userID: "creator-42@studio.example",
		tier:   ratelimit.TierViewer,
	})
	config.TierLimits = map[ratelimit.UserTier]TierLimit{
		ratelimit.TierViewer: {Limit: 2, Window: time.Hour},
	}
	handler := NewUserRateLimiter(config).Middleware()(&okHandler{})

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authedRequest("creator-42@studio.example"))
		assert.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest("creator-42@studio.example"))

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")
}

func TestUserRateLimiter_SetsHeaders(t *testing.T) {
	clock := newTestClock()
	config := newUserLimiterConfig(clock, &staticUserExtractor{
		userID: "creator-42@studio.example",
		tier:   ratelimit.TierPremium,
	})
	handler := NewUserRateLimiter(config).Middleware()(&okHandler{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest("creator-42@studio.example"))

	assert.Equal(t, "5000", rec.Header().Get("X-RateLimit-Limit"), "premium tier quota")
	assert.Equal(t, "4999", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "user", rec.Header().Get("X-RateLimit-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
}

func TestUserRateLimiter_UnknownTierFallsBackToDefault(t *testing.T) {
	clock := newTestClock()
	config := newUserLimiterConfig(clock, &staticUserExtractor{
		userID: "creator-42@studio.example",
		tier:   ratelimit.UserTier("legacy"),
	})
	config.TierLimits = nil
	config.DefaultLimit = 7
	config.DefaultWindow = time.Hour
	handler := NewUserRateLimiter(config).Middleware()(&okHandler{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest("creator-42@studio.example"))

	assert.Equal(t, "7", rec.Header().Get("X-RateLimit-Limit"))
}

func TestUserRateLimiter_SkipsUnauthenticated(t *testing.T) {
	clock := newTestClock()
	config := newUserLimiterConfig(clock, &staticUserExtractor{})
	config.SkipUnauthenticated = true
	next := &okHandler{}
	handler := NewUserRateLimiter(config).Middleware()(next)

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, analyzeRequest("203.0.113.7:41000"))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"), "skipped requests carry no limiter headers")
	}
	assert.Equal(t, 5, next.calls)
}

func TestUserRateLimiter_LimitsAnonymousWhenNotSkipping(t *testing.T) {
	clock := newTestClock()
	config := newUserLimiterConfig(clock, &staticUserExtractor{})
	config.SkipUnauthenticated = false
	config.TierLimits = map[ratelimit.UserTier]TierLimit{
		ratelimit.TierBasic: {Limit: 1, Window: time.Hour},
	}
	handler := NewUserRateLimiter(config).Middleware()(&okHandler{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, analyzeRequest("203.0.113.7:41000"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, analyzeRequest("198.51.100.9:52000"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code,
		"anonymous requests share one quota regardless of source IP")
}

func TestUserRateLimiter_UsersAreIsolated(t *testing.T) {
	clock := newTestClock()
	extractor := &staticUserExtractor{userID: "creator-42@studio.example", tier: ratelimit.TierViewer}
	config := newUserLimiterConfig(clock, extractor)
	config.TierLimits = map[ratelimit.UserTier]TierLimit{
		ratelimit.TierViewer: {Limit: 1, Window: time.Hour},
	}
	handler := NewUserRateLimiter(config).Middleware()(&okHandler{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest("creator-42@studio.example"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest("creator-42@studio.example"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	// A different creator has a fresh window.
	extractor.userID = "creator-99@studio.example"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest("creator-99@studio.example"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUserRateLimiter_FailsOpenOnStoreError(t *testing.T) {
	clock := newTestClock()
	config := newUserLimiterConfig(clock, &staticUserExtractor{
		userID: "creator-42@studio.example",
		tier:   ratelimit.TierBasic,
	})
	config.Store = &failingStore{}
	next := &okHandler{}
	handler := NewUserRateLimiter(config).Middleware()(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest("creator-42@studio.example"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, next.calls)
}

func TestUserRateLimiter_OpenBreakerFailsOpen(t *testing.T) {
	clock := newTestClock()
	config := newUserLimiterConfig(clock, &staticUserExtractor{
		userID: "creator-42@studio.example",
		tier:   ratelimit.TierBasic,
	})
	config.Store = &failingStore{}
	config.CircuitBreaker = ratelimit.NewCircuitBreaker(ratelimit.CircuitBreakerConfig{
		FailureThreshold: 2,
		RecoveryTimeout:  30 * time.Second,
		Clock:            clock,
		LimiterType:      "user",
	})
	next := &okHandler{}
	handler := NewUserRateLimiter(config).Middleware()(next)

	for i := 0; i < 4; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authedRequest("creator-42@studio.example"))
		assert.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}
	assert.True(t, config.CircuitBreaker.IsOpen())
	assert.Equal(t, 4, next.calls)
}

func TestUserRateLimiter_HashesUserKeys(t *testing.T) {
	hash := hashUserID("creator-42@studio.example")

	assert.Len(t, hash, 64)
	assert.NotContains(t, hash, "creator-42")
	assert.Equal(t, hash, hashUserID("creator-42@studio.example"), "hash must be deterministic")
	assert.NotEqual(t, hash, hashUserID("creator-99@studio.example"))
}

func TestNewDefaultTierLimits(t *testing.T) {
	limits := NewDefaultTierLimits()

	assert.Equal(t, 10000, limits[ratelimit.TierAdmin].Limit)
	assert.Equal(t, 5000, limits[ratelimit.TierPremium].Limit)
	assert.Equal(t, 1000, limits[ratelimit.TierBasic].Limit)
	assert.Equal(t, 500, limits[ratelimit.TierViewer].Limit)
	for tier, limit := range limits {
		assert.Equal(t, time.Hour, limit.Window, "tier %s", tier)
	}
}

func TestNewUserRateLimiter_Defaults(t *testing.T) {
	limiter := NewUserRateLimiter(UserRateLimiterConfig{})

	assert.Equal(t, 1000, limiter.config.DefaultLimit)
	assert.Equal(t, time.Hour, limiter.config.DefaultWindow)
	assert.NotNil(t, limiter.config.Clock)
}
