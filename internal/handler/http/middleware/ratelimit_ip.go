package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"creator-insights/pkg/ratelimit"
)

// IPRateLimiterConfig configures the per-IP limiter applied to the analysis
// API surface.
type IPRateLimiterConfig struct {
	// Limit is the maximum number of requests per IP within Window.
	Limit int

	// Window is the sliding-window duration.
	Window time.Duration

	// Enabled turns the middleware into a pass-through when false.
	Enabled bool
}

// DefaultIPRateLimiterConfig returns 100 requests per minute.
func DefaultIPRateLimiterConfig() IPRateLimiterConfig {
	return IPRateLimiterConfig{
		Limit:   100,
		Window:  1 * time.Minute,
		Enabled: true,
	}
}

// IPRateLimiter is the HTTP adapter over pkg/ratelimit for per-IP limiting.
// It extracts the client IP, runs the sliding-window check behind the circuit
// breaker, sets X-RateLimit-* headers, and answers 429 when the window is
// exhausted. Limiter failures fail open so an unhealthy limiter never takes
// the analysis API down with it.
type IPRateLimiter struct {
	config         IPRateLimiterConfig
	ipExtractor    IPExtractor
	store          ratelimit.RateLimitStore
	algorithm      ratelimit.RateLimitAlgorithm
	metrics        ratelimit.RateLimitMetrics
	circuitBreaker *ratelimit.CircuitBreaker
}

// NewIPRateLimiter wires the limiter from its parts. Zero Limit or Window
// fall back to the defaults.
func NewIPRateLimiter(
	config IPRateLimiterConfig,
	ipExtractor IPExtractor,
	store ratelimit.RateLimitStore,
	algorithm ratelimit.RateLimitAlgorithm,
	metrics ratelimit.RateLimitMetrics,
	circuitBreaker *ratelimit.CircuitBreaker,
) *IPRateLimiter {
	if config.Limit <= 0 {
		config.Limit = 100
	}
	if config.Window <= 0 {
		config.Window = 1 * time.Minute
	}

	return &IPRateLimiter{
		config:         config,
		ipExtractor:    ipExtractor,
		store:          store,
		algorithm:      algorithm,
		metrics:        metrics,
		circuitBreaker: circuitBreaker,
	}
}

// Middleware returns the wrapping handler. Responses carry
// X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset and
// X-RateLimit-Type; denied requests additionally get Retry-After and a JSON
// body.
func (rl *IPRateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.config.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			checkStart := time.Now()

			ip, err := rl.ipExtractor.ExtractIP(r)
			if err != nil {
				slog.Error("ip rate limit: client address unresolvable, allowing request",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
					slog.String("path", r.URL.Path))
				next.ServeHTTP(w, r)
				return
			}

			if rl.circuitBreaker != nil && rl.circuitBreaker.IsOpen() {
				slog.Warn("ip rate limit bypassed, circuit breaker open",
					slog.String("ip", ip),
					slog.String("path", r.URL.Path))
				next.ServeHTTP(w, r)
				return
			}

			decision, err := rl.checkRateLimit(context.Background(), ip)

			if rl.metrics != nil {
				rl.metrics.RecordCheckDuration("ip", time.Since(checkStart))
			}

			if err != nil {
				rl.handleRateLimitError(w, r, ip, err)
				return
			}

			slog.Debug("ip rate limit evaluated",
				slog.String("ip", ip),
				slog.Int("used", decision.Limit-decision.Remaining),
				slog.Int("limit", decision.Limit),
				slog.Duration("window", rl.config.Window),
				slog.Bool("allowed", decision.Allowed),
				slog.String("path", r.URL.Path))

			rl.setRateLimitHeaders(w, decision)

			if decision.IsDenied() {
				rl.writeRateLimitError(w, r, decision)
				return
			}

			if rl.metrics != nil {
				rl.metrics.RecordAllowed("ip", r.URL.Path)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// checkRateLimit runs the window check through the circuit breaker when one
// is configured, so repeated store failures open the circuit.
func (rl *IPRateLimiter) checkRateLimit(ctx context.Context, ip string) (*ratelimit.RateLimitDecision, error) {
	var decision *ratelimit.RateLimitDecision

	check := func() error {
		var checkErr error
		decision, checkErr = rl.algorithm.IsAllowed(ctx, ip, rl.store, rl.config.Limit, rl.config.Window)
		return checkErr
	}

	if rl.circuitBreaker != nil {
		if err := rl.circuitBreaker.Execute(check); err != nil {
			return nil, err
		}
	} else if err := check(); err != nil {
		return nil, err
	}

	if decision != nil {
		decision.LimiterType = "ip"
	}
	return decision, nil
}

func (rl *IPRateLimiter) setRateLimitHeaders(w http.ResponseWriter, decision *ratelimit.RateLimitDecision) {
	if decision == nil {
		return
	}
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAtUnix(), 10))
	h.Set("X-RateLimit-Type", "ip")
}

func (rl *IPRateLimiter) writeRateLimitError(w http.ResponseWriter, r *http.Request, decision *ratelimit.RateLimitDecision) {
	retryAfter := decision.RetryAfterSeconds()
	w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	response := map[string]interface{}{
		"error":       "rate_limit_exceeded",
		"message":     "Too many requests from this IP address",
		"retry_after": retryAfter,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("ip rate limit error response write failed",
			slog.String("error", err.Error()))
	}

	if rl.metrics != nil {
		rl.metrics.RecordDenied("ip", r.URL.Path)
	}

	slog.Warn("ip over rate limit",
		slog.String("ip", decision.Key),
		slog.Int("used", decision.Limit-decision.Remaining),
		slog.Int("limit", decision.Limit),
		slog.Int64("retry_after", retryAfter),
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method))
}

// handleRateLimitError fails open: a broken limiter must not block analysis
// traffic.
func (rl *IPRateLimiter) handleRateLimitError(w http.ResponseWriter, r *http.Request, ip string, err error) {
	slog.Error("ip rate limit check failed, allowing request",
		slog.String("error", err.Error()),
		slog.String("ip", ip),
		slog.String("path", r.URL.Path))
	w.WriteHeader(http.StatusOK)
}
