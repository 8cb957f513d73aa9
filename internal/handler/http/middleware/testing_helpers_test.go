package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"creator-insights/pkg/ratelimit"
)

// testClock is a manually advanced clock shared by the limiter tests.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// okHandler answers 200 and records that it ran.
type okHandler struct {
	calls int
}

func (h *okHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.calls++
	w.WriteHeader(http.StatusOK)
}

// analyzeRequest builds a GET against the analysis endpoint from the given
// client address.
func analyzeRequest(remoteAddr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyze", nil)
	req.RemoteAddr = remoteAddr
	return req
}

// failingStore errors on every operation, for breaker and fail-open tests.
type failingStore struct{}

func (s *failingStore) AddRequest(ctx context.Context, key string, timestamp time.Time) error {
	return errStoreDown
}

func (s *failingStore) GetRequests(ctx context.Context, key string, cutoff time.Time) ([]time.Time, error) {
	return nil, errStoreDown
}

func (s *failingStore) GetRequestCount(ctx context.Context, key string, cutoff time.Time) (int, error) {
	return 0, errStoreDown
}

func (s *failingStore) Cleanup(ctx context.Context, cutoff time.Time) error {
	return errStoreDown
}

func (s *failingStore) KeyCount(ctx context.Context) (int, error) {
	return 0, errStoreDown
}

func (s *failingStore) MemoryUsage(ctx context.Context) (int64, error) {
	return 0, errStoreDown
}

var errStoreDown = &storeDownError{}

type storeDownError struct{}

func (e *storeDownError) Error() string { return "rate limit store unavailable" }

// staticUserExtractor returns a fixed identity, or no identity when userID
// is empty.
type staticUserExtractor struct {
	userID string
	tier   ratelimit.UserTier
}

func (e *staticUserExtractor) ExtractUser(ctx context.Context) (string, ratelimit.UserTier, bool) {
	if e.userID == "" {
		return "", "", false
	}
	return e.userID, e.tier, true
}

// newIPLimiterParts builds a limiter stack backed by an in-memory store and
// the shared test clock.
func newIPLimiterParts(clock *testClock, limit int, window time.Duration) (*IPRateLimiter, *ratelimit.InMemoryRateLimitStore) {
	store := ratelimit.NewInMemoryRateLimitStore(ratelimit.InMemoryStoreConfig{
		MaxKeys: 100,
		Clock:   clock,
	})
	limiter := NewIPRateLimiter(
		IPRateLimiterConfig{Limit: limit, Window: window, Enabled: true},
		&RemoteAddrExtractor{},
		store,
		ratelimit.NewSlidingWindowAlgorithm(clock),
		&ratelimit.NoOpMetrics{},
		ratelimit.NewCircuitBreaker(ratelimit.CircuitBreakerConfig{
			FailureThreshold: 3,
			RecoveryTimeout:  30 * time.Second,
			Clock:            clock,
			LimiterType:      "ip",
		}),
	)
	return limiter, store
}

func newUserLimiterConfig(clock *testClock, extractor UserExtractor) UserRateLimiterConfig {
	return UserRateLimiterConfig{
		Store: ratelimit.NewInMemoryRateLimitStore(ratelimit.InMemoryStoreConfig{
			MaxKeys: 100,
			Clock:   clock,
		}),
		Algorithm: ratelimit.NewSlidingWindowAlgorithm(clock),
		Metrics:   &ratelimit.NoOpMetrics{},
		CircuitBreaker: ratelimit.NewCircuitBreaker(ratelimit.CircuitBreakerConfig{
			FailureThreshold: 3,
			RecoveryTimeout:  30 * time.Second,
			Clock:            clock,
			LimiterType:      "user",
		}),
		UserExtractor:       extractor,
		TierLimits:          NewDefaultTierLimits(),
		SkipUnauthenticated: true,
		Clock:               clock,
	}
}
