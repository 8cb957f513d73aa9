package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// RateLimiter is a small self-contained sliding-window limiter used for the
// login endpoint, where a fixed tight limit is enough and the full
// store/algorithm/breaker stack would be overkill.
type RateLimiter struct {
	limit       int
	window      time.Duration
	ipExtractor IPExtractor

	mu   sync.RWMutex
	hits map[string][]time.Time
}

// NewRateLimiter returns a limiter allowing `limit` requests per IP within
// `window`.
func NewRateLimiter(limit int, window time.Duration, ipExtractor IPExtractor) *RateLimiter {
	return &RateLimiter{
		limit:       limit,
		window:      window,
		ipExtractor: ipExtractor,
		hits:        make(map[string][]time.Time),
	}
}

// resolveIP tries the configured extractor first and falls back to the bare
// RemoteAddr, so a bad proxy header alone cannot break the login path.
func (rl *RateLimiter) resolveIP(r *http.Request) (string, error) {
	ip, err := rl.ipExtractor.ExtractIP(r)
	if err == nil {
		return ip, nil
	}
	slog.Warn("login limiter could not extract client IP, trying RemoteAddr",
		slog.String("error", err.Error()),
		slog.String("remote_addr", r.RemoteAddr))
	return extractIPFromAddr(r.RemoteAddr)
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, err := rl.resolveIP(r)
		if err != nil {
			slog.Error("login limiter has no usable client address",
				slog.String("error", err.Error()),
				slog.String("remote_addr", r.RemoteAddr))
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		if !rl.allow(ip) {
			slog.Warn("login attempts over limit",
				slog.String("ip", ip),
				slog.String("path", r.URL.Path),
				slog.Int("limit", rl.limit),
				slog.Duration("window", rl.window))
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// inWindow keeps only timestamps newer than cutoff.
func inWindow(stamps []time.Time, cutoff time.Time) []time.Time {
	var live []time.Time
	for _, ts := range stamps {
		if ts.After(cutoff) {
			live = append(live, ts)
		}
	}
	return live
}

// allow drops timestamps that fell out of the window, then admits the
// request if the count is still under the limit.
func (rl *RateLimiter) allow(ip string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	live := inWindow(rl.hits[ip], now.Add(-rl.window))
	if len(live) >= rl.limit {
		rl.hits[ip] = live
		return false
	}
	rl.hits[ip] = append(live, now)
	return true
}

// CleanupExpired drops idle IPs. Call it periodically so the map does not
// grow with every client that ever hit the login endpoint.
func (rl *RateLimiter) CleanupExpired() {
	cutoff := time.Now().Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for ip, stamps := range rl.hits {
		if live := inWindow(stamps, cutoff); len(live) == 0 {
			delete(rl.hits, ip)
		} else {
			rl.hits[ip] = live
		}
	}

	slog.Debug("login limiter swept idle addresses",
		slog.Int("active_ips", len(rl.hits)))
}
