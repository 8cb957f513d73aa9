package http

import (
	"context"
	"log/slog"
	"time"

	"creator-insights/internal/handler/http/middleware"
	"creator-insights/pkg/config"
	"creator-insights/pkg/ratelimit"
)

// StartRateLimitCleanupLegacy periodically prunes the simple login limiter.
// Runs until ctx is canceled.
func StartRateLimitCleanupLegacy(
	ctx context.Context,
	limiter *middleware.RateLimiter,
	interval time.Duration,
	limiterType string,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("legacy rate limit sweep running",
		slog.String("limiter_type", limiterType),
		slog.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			slog.Info("legacy rate limit sweep stopped",
				slog.String("limiter_type", limiterType))
			return
		case <-ticker.C:
			limiter.CleanupExpired()
			slog.Debug("legacy rate limit sweep pass done",
				slog.String("limiter_type", limiterType))
		}
	}
}

// StartRateLimitCleanup periodically sweeps stale timestamps out of a rate
// limit store so idle IPs and users stop consuming memory. Entries are kept
// for twice the window, leaving slack for clock skew and requests in
// flight. Runs until ctx is canceled.
func StartRateLimitCleanup(
	ctx context.Context,
	store *ratelimit.InMemoryRateLimitStore,
	interval time.Duration,
	windowDuration time.Duration,
	limiterType string,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("rate limit sweep running",
		slog.String("limiter_type", limiterType),
		slog.Duration("interval", interval),
		slog.Duration("window_duration", windowDuration))

	for {
		select {
		case <-ctx.Done():
			slog.Info("rate limit sweep stopped",
				slog.String("limiter_type", limiterType))
			return
		case <-ticker.C:
			sweepStore(ctx, store, windowDuration, limiterType)
		}
	}
}

// storeFootprint is a point-in-time reading of a store's size.
type storeFootprint struct {
	keys  int
	bytes int64
}

func readFootprint(ctx context.Context, store *ratelimit.InMemoryRateLimitStore) (storeFootprint, error) {
	keys, err := store.KeyCount(ctx)
	if err != nil {
		return storeFootprint{}, err
	}
	bytes, err := store.MemoryUsage(ctx)
	if err != nil {
		return storeFootprint{}, err
	}
	return storeFootprint{keys: keys, bytes: bytes}, nil
}

// sweepStore runs one cleanup pass and logs how much it reclaimed. A failed
// pass is logged and skipped; the next tick retries.
func sweepStore(ctx context.Context, store *ratelimit.InMemoryRateLimitStore, windowDuration time.Duration, limiterType string) {
	cutoff := time.Now().Add(-2 * windowDuration)

	before, err := readFootprint(ctx, store)
	if err != nil {
		slog.Error("rate limit sweep could not read store size",
			slog.String("limiter_type", limiterType),
			slog.Any("error", err))
		return
	}

	if err := store.Cleanup(ctx, cutoff); err != nil {
		slog.Error("rate limit sweep failed",
			slog.String("limiter_type", limiterType),
			slog.Any("error", err))
		return
	}

	after, err := readFootprint(ctx, store)
	if err != nil {
		slog.Error("rate limit sweep could not read store size",
			slog.String("limiter_type", limiterType),
			slog.Any("error", err))
		return
	}

	freed := before.bytes - after.bytes
	slog.Debug("rate limit sweep pass done",
		slog.String("limiter_type", limiterType),
		slog.Int("active_keys_before", before.keys),
		slog.Int("active_keys_after", after.keys),
		slog.Int("keys_removed", before.keys-after.keys),
		slog.Int64("memory_freed_bytes", freed),
		slog.Float64("memory_freed_mb", float64(freed)/(1024*1024)),
		slog.Time("cutoff_time", cutoff))

	// Sustained usage near the threshold means MaxActiveKeys is set too
	// high for the available memory.
	const warnAboveMB = 80
	if residentMB := float64(after.bytes) / (1024 * 1024); residentMB > warnAboveMB {
		slog.Warn("rate limit store memory usage is high",
			slog.String("limiter_type", limiterType),
			slog.Float64("memory_usage_mb", residentMB),
			slog.Int("active_keys", after.keys))
	}
}

// CleanupConfig configures the background sweeps.
type CleanupConfig struct {
	Interval time.Duration

	// WindowDuration is the rate limit window; the sweep keeps entries
	// for twice this long.
	WindowDuration time.Duration

	LimiterType string
}

const DefaultCleanupInterval = 5 * time.Minute

// LoadCleanupConfigFromEnv reads RATELIMIT_CLEANUP_INTERVAL, falling back
// to the 5 minute default on bad input.
func LoadCleanupConfigFromEnv() CleanupConfig {
	return CleanupConfig{
		Interval: config.GetEnvDuration("RATELIMIT_CLEANUP_INTERVAL", DefaultCleanupInterval),
	}
}
