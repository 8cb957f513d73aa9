// Package http provides HTTP handlers and middleware for the analytics API.
// It includes the analyze endpoints, health checks, metrics collection, and
// various middleware components.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"creator-insights/internal/cache"
	"creator-insights/internal/infra/kvstore"
	"creator-insights/internal/taskqueue"
	"creator-insights/pkg/ratelimit"
)

// HealthResponse is the body of GET /health: an overall status plus one
// entry per probed subsystem.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
	Version   string                 `json:"version"`
}

// CheckStatus is one subsystem's line in the health response.
type CheckStatus struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// RateLimiterHealthInfo reports one limiter's footprint and breaker state.
type RateLimiterHealthInfo struct {
	ActiveKeys     int    `json:"active_keys"`
	MemoryBytes    int64  `json:"memory_bytes"`
	CircuitBreaker string `json:"circuit_breaker"`
}

// HealthHandler handles health check endpoint requests.
// It probes the shared key-value store and reports cache, task queue, and
// rate limiter status for operational monitoring.
type HealthHandler struct {
	KV      kvstore.Store
	Cache   *cache.Cache
	Queue   *taskqueue.Queue
	Version string

	// Rate limiter components (optional)
	IPRateLimiterStore   ratelimit.RateLimitStore
	UserRateLimiterStore ratelimit.RateLimitStore
	IPCircuitBreaker     *ratelimit.CircuitBreaker
	UserCircuitBreaker   *ratelimit.CircuitBreaker
	RateLimiterEnabled   bool
}

// ServeHTTP performs health checks and returns the application health status.
// A KV store outage is reported as degraded rather than unhealthy: the
// pipeline still answers requests in cache-bypass mode.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]CheckStatus)
	allHealthy := true

	if h.KV != nil {
		checks["kvstore"] = h.checkKVStore(ctx)
	} else {
		checks["kvstore"] = CheckStatus{
			Status:  "unhealthy",
			Message: "not configured",
		}
		allHealthy = false
	}

	if h.Cache != nil {
		checks["cache"] = h.checkCache()
	}

	if h.Queue != nil {
		checks["task_queue"] = CheckStatus{
			Status: "healthy",
			Details: map[string]interface{}{
				"depth": h.Queue.Depth(),
			},
		}
	}

	if h.RateLimiterEnabled {
		checks["rate_limiter"] = h.checkRateLimiter(ctx)
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Version:   h.Version,
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("health response write failed", slog.Any("error", err))
	}
}

// checkKVStore probes the backing store with a read. A missing probe key is a
// healthy outcome; only transport errors mark the store degraded.
func (h *HealthHandler) checkKVStore(ctx context.Context) CheckStatus {
	_, err := h.KV.Get(ctx, "health:probe")
	if err != nil && !errors.Is(err, kvstore.ErrKeyNotFound) {
		return CheckStatus{
			Status:  "degraded",
			Message: "store unreachable, cache running in bypass mode: " + err.Error(),
		}
	}
	return CheckStatus{Status: "healthy"}
}

// checkCache reports result cache effectiveness.
func (h *HealthHandler) checkCache() CheckStatus {
	stats := h.Cache.Stats()
	return CheckStatus{
		Status: "healthy",
		Details: map[string]interface{}{
			"size":     stats.Size,
			"hits":     stats.Hits,
			"misses":   stats.Misses,
			"hit_rate": stats.HitRate,
		},
	}
}

// checkRateLimiter checks the health of rate limiter components.
// Rate limiter health is always reported as "healthy": an open circuit
// breaker means fail-open behavior, which is operational, not a failure.
func (h *HealthHandler) checkRateLimiter(ctx context.Context) CheckStatus {
	details := make(map[string]interface{})

	if h.IPRateLimiterStore != nil {
		details["ip"] = h.limiterInfo(ctx, h.IPRateLimiterStore, h.IPCircuitBreaker)
	}
	if h.UserRateLimiterStore != nil {
		details["user"] = h.limiterInfo(ctx, h.UserRateLimiterStore, h.UserCircuitBreaker)
	}

	return CheckStatus{
		Status:  "healthy",
		Details: details,
	}
}

func (h *HealthHandler) limiterInfo(ctx context.Context, store ratelimit.RateLimitStore, breaker *ratelimit.CircuitBreaker) RateLimiterHealthInfo {
	info := RateLimiterHealthInfo{CircuitBreaker: "not_configured"}
	if keyCount, err := store.KeyCount(ctx); err == nil {
		info.ActiveKeys = keyCount
	}
	if memUsage, err := store.MemoryUsage(ctx); err == nil {
		info.MemoryBytes = memUsage
	}
	if breaker != nil {
		info.CircuitBreaker = breaker.State().String()
	}
	return info
}

// ReadyHandler handles Kubernetes readiness probe requests.
// It checks if the key-value store is reachable and ready to accept traffic.
type ReadyHandler struct {
	KV kvstore.Store
}

// ServeHTTP performs readiness checks and returns 200 OK if ready,
// or 503 Service Unavailable if the store is not reachable.
func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.KV == nil {
		http.Error(w, "kvstore not configured", http.StatusServiceUnavailable)
		return
	}

	if _, err := h.KV.Get(ctx, "health:probe"); err != nil && !errors.Is(err, kvstore.ErrKeyNotFound) {
		http.Error(w, "kvstore not ready: "+err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ready")); err != nil {
		slog.Error("readiness response write failed", slog.Any("error", err))
	}
}

// LiveHandler handles Kubernetes liveness probe requests.
// It performs a lightweight check to verify the application is responsive.
type LiveHandler struct{}

// ServeHTTP performs a simple liveness check and always returns 200 OK
// if the application is running and able to respond.
func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("alive")); err != nil {
		slog.Error("liveness response write failed", slog.Any("error", err))
	}
}
