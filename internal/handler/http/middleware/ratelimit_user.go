package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"creator-insights/pkg/ratelimit"
)

// UserExtractor resolves the authenticated user from the request context.
// Keeping it an interface decouples the limiter from the session middleware.
type UserExtractor interface {
	// ExtractUser returns the user identifier and tier, with ok=false when
	// no authenticated user is present.
	ExtractUser(ctx context.Context) (userID string, tier ratelimit.UserTier, ok bool)
}

// JWTUserExtractor reads the identity the auth middleware stored on the
// context after token validation.
type JWTUserExtractor struct {
	contextKey   interface{}
	tierProvider UserTierProvider
}

// UserTierProvider looks up a user's service tier. Implementations return
// TierBasic when the tier cannot be determined.
type UserTierProvider interface {
	GetUserTier(ctx context.Context, userID string) ratelimit.UserTier
}

// DefaultTierProvider assigns every user TierBasic.
type DefaultTierProvider struct{}

func (p *DefaultTierProvider) GetUserTier(ctx context.Context, userID string) ratelimit.UserTier {
	return ratelimit.TierBasic
}

// NewJWTUserExtractor builds an extractor for the given context key. A nil
// tierProvider means everyone is TierBasic.
func NewJWTUserExtractor(contextKey interface{}, tierProvider UserTierProvider) *JWTUserExtractor {
	if tierProvider == nil {
		tierProvider = &DefaultTierProvider{}
	}
	return &JWTUserExtractor{
		contextKey:   contextKey,
		tierProvider: tierProvider,
	}
}

func (e *JWTUserExtractor) ExtractUser(ctx context.Context) (userID string, tier ratelimit.UserTier, ok bool) {
	userValue := ctx.Value(e.contextKey)
	if userValue == nil {
		return "", "", false
	}
	userID, ok = userValue.(string)
	if !ok || userID == "" {
		return "", "", false
	}
	return userID, e.tierProvider.GetUserTier(ctx, userID), true
}

// UserRateLimiterConfig configures per-user, tier-aware rate limiting.
type UserRateLimiterConfig struct {
	Store          ratelimit.RateLimitStore
	Algorithm      ratelimit.RateLimitAlgorithm
	Metrics        ratelimit.RateLimitMetrics
	CircuitBreaker *ratelimit.CircuitBreaker
	UserExtractor  UserExtractor

	// TierLimits maps tiers to their quota. Tiers missing from the map use
	// DefaultLimit/DefaultWindow.
	TierLimits    map[ratelimit.UserTier]TierLimit
	DefaultLimit  int
	DefaultWindow time.Duration

	// SkipUnauthenticated skips the limiter when no user is on the context.
	// When false, anonymous requests are limited under a shared key at the
	// basic tier.
	SkipUnauthenticated bool

	Clock ratelimit.Clock
}

// TierLimit is the quota for one user tier.
type TierLimit struct {
	Limit  int
	Window time.Duration
}

// UserRateLimiter limits requests per authenticated user, with quotas by
// service tier. User IDs are hashed before they are used as limiter keys so
// plaintext identities never sit in the store.
type UserRateLimiter struct {
	config UserRateLimiterConfig
}

// NewUserRateLimiter applies defaults (1000 requests per hour, system clock)
// and returns the limiter.
func NewUserRateLimiter(config UserRateLimiterConfig) *UserRateLimiter {
	if config.DefaultLimit == 0 {
		config.DefaultLimit = 1000
	}
	if config.DefaultWindow == 0 {
		config.DefaultWindow = 1 * time.Hour
	}
	if config.Clock == nil {
		config.Clock = &ratelimit.SystemClock{}
	}
	return &UserRateLimiter{config: config}
}

// Middleware returns the wrapping handler. All checked responses carry
// X-RateLimit-* headers; denials answer 429 with Retry-After. Breaker-open
// and check errors fail open.
func (rl *UserRateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, tier, authed := rl.config.UserExtractor.ExtractUser(r.Context())
			if !authed {
				if rl.config.SkipUnauthenticated {
					slog.Debug("user rate limit skipped, no authenticated user",
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method))
					next.ServeHTTP(w, r)
					return
				}
				// Anonymous traffic shares one basic-tier budget.
				userID = "anonymous"
				tier = ratelimit.TierBasic
			}

			limit, window := rl.getTierLimit(tier)
			userKey := hashUserID(userID)

			checkStart := rl.config.Clock.Now()
			decision, execErr := rl.runCheck(r.Context(), userKey, limit, window)
			rl.config.Metrics.RecordCheckDuration("user", rl.config.Clock.Now().Sub(checkStart))

			if rl.config.CircuitBreaker.IsOpen() {
				slog.Warn("user rate limit bypassed, circuit breaker open",
					slog.String("user_key", userKey[:16]),
					slog.String("tier", tier.String()),
					slog.String("path", r.URL.Path))
				next.ServeHTTP(w, r)
				return
			}

			if execErr != nil || decision == nil {
				// A broken limiter must not take the API down with it.
				attrs := []any{
					slog.String("user_key", userKey[:16]),
					slog.String("tier", tier.String()),
				}
				if execErr != nil {
					attrs = append(attrs, slog.String("error", execErr.Error()))
				}
				slog.Error("user rate limit check failed, allowing request", attrs...)
				next.ServeHTTP(w, r)
				return
			}

			decision.LimiterType = "user"

			slog.Debug("user rate limit evaluated",
				slog.String("user_key", userKey[:16]),
				slog.String("tier", tier.String()),
				slog.Int("used", decision.Limit-decision.Remaining),
				slog.Int("limit", decision.Limit),
				slog.Duration("window", window),
				slog.Bool("allowed", decision.Allowed),
				slog.String("path", r.URL.Path))

			rl.setRateLimitHeaders(w, decision)

			if !decision.Allowed {
				rl.config.Metrics.RecordDenied("user", r.URL.Path)
				slog.Warn("user over rate limit",
					slog.String("user_key", userKey[:16]),
					slog.String("tier", tier.String()),
					slog.Int("used", decision.Limit-decision.Remaining),
					slog.Int("limit", decision.Limit),
					slog.Int64("retry_after", decision.RetryAfterSeconds()),
					slog.String("path", r.URL.Path),
					slog.String("method", r.Method))
				rl.writeRateLimitError(w, decision)
				return
			}

			rl.config.Metrics.RecordAllowed("user", r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}
}

// runCheck runs the sliding-window check through the circuit breaker. A nil
// decision with a nil error means the breaker swallowed the call.
func (rl *UserRateLimiter) runCheck(ctx context.Context, userKey string, limit int, window time.Duration) (*ratelimit.RateLimitDecision, error) {
	var decision *ratelimit.RateLimitDecision
	err := rl.config.CircuitBreaker.Execute(func() error {
		var checkErr error
		decision, checkErr = rl.config.Algorithm.IsAllowed(ctx, userKey, rl.config.Store, limit, window)
		return checkErr
	})
	return decision, err
}

func (rl *UserRateLimiter) getTierLimit(tier ratelimit.UserTier) (int, time.Duration) {
	if quota, ok := rl.config.TierLimits[tier]; ok {
		return quota.Limit, quota.Window
	}
	return rl.config.DefaultLimit, rl.config.DefaultWindow
}

func (rl *UserRateLimiter) setRateLimitHeaders(w http.ResponseWriter, decision *ratelimit.RateLimitDecision) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", fmt.Sprintf("%d", decision.Limit))
	h.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", decision.Remaining))
	h.Set("X-RateLimit-Reset", fmt.Sprintf("%d", decision.ResetAtUnix()))
	h.Set("X-RateLimit-Type", decision.LimiterType)
}

func (rl *UserRateLimiter) writeRateLimitError(w http.ResponseWriter, decision *ratelimit.RateLimitDecision) {
	w.Header().Set("Retry-After", fmt.Sprintf("%d", decision.RetryAfterSeconds()))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	body := fmt.Sprintf(`{
  "error": "rate limit exceeded",
  "message": "You have exceeded your hourly request quota. Please try again in %d seconds.",
  "retry_after_seconds": %d,
  "limit": %d,
  "window": "%s"
}`,
		decision.RetryAfterSeconds(),
		decision.RetryAfterSeconds(),
		decision.Limit,
		rl.config.DefaultWindow.String(),
	)
	if _, err := w.Write([]byte(body)); err != nil {
		slog.Error("user rate limit error response write failed",
			slog.String("error", err.Error()))
	}
}

// hashUserID hashes the identity with SHA-256 so limiter keys carry no
// plaintext user IDs.
func hashUserID(userID string) string {
	hash := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(hash[:])
}

// NewDefaultTierLimits returns the stock hourly quotas per tier.
func NewDefaultTierLimits() map[ratelimit.UserTier]TierLimit {
	return map[ratelimit.UserTier]TierLimit{
		ratelimit.TierAdmin:   {Limit: 10000, Window: 1 * time.Hour},
		ratelimit.TierPremium: {Limit: 5000, Window: 1 * time.Hour},
		ratelimit.TierBasic:   {Limit: 1000, Window: 1 * time.Hour},
		ratelimit.TierViewer:  {Limit: 500, Window: 1 * time.Hour},
	}
}
