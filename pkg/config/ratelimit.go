package config

import (
	"log/slog"
	"time"

	"creator-insights/pkg/ratelimit"
)

// LoadRateLimitConfig assembles the limiter configuration from RATELIMIT_*
// environment variables:
//
//	RATELIMIT_ENABLED                (default true)
//	RATELIMIT_IP_LIMIT / _IP_WINDOW  (default 100 per 1m)
//	RATELIMIT_USER_LIMIT / _USER_WINDOW (default 1000 per 1h)
//	RATELIMIT_TIER_{ADMIN,PREMIUM,BASIC,VIEWER} (hourly quotas)
//	RATELIMIT_MAX_KEYS               (default 10000)
//	RATELIMIT_CLEANUP_INTERVAL       (default 5m)
//	RATELIMIT_CB_FAILURE_THRESHOLD / _CB_RECOVERY_TIMEOUT (default 10 / 30s)
//
// Invalid values warn and fall back per field; the error return stays nil so
// callers can treat config loading as infallible.
func LoadRateLimitConfig() (*ratelimit.RateLimitConfig, error) {
	config := &ratelimit.RateLimitConfig{
		Enabled:                        GetEnvBool("RATELIMIT_ENABLED", true),
		DefaultIPLimit:                 nonNegativeInt("RATELIMIT_IP_LIMIT", 100),
		DefaultIPWindow:                positiveDuration("RATELIMIT_IP_WINDOW", 1*time.Minute),
		DefaultUserLimit:               nonNegativeInt("RATELIMIT_USER_LIMIT", 1000),
		DefaultUserWindow:              positiveDuration("RATELIMIT_USER_WINDOW", 1*time.Hour),
		TierLimits:                     loadTierLimits(),
		MaxActiveKeys:                  nonNegativeInt("RATELIMIT_MAX_KEYS", 10000),
		CleanupInterval:                positiveDuration("RATELIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		CircuitBreakerFailureThreshold: nonNegativeInt("RATELIMIT_CB_FAILURE_THRESHOLD", 10),
		CircuitBreakerResetTimeout:     positiveDuration("RATELIMIT_CB_RECOVERY_TIMEOUT", 30*time.Second),

		// Not exposed as an env var; idle keys older than this are swept.
		CleanupMaxAge: 1 * time.Hour,
	}

	if err := config.Validate(); err != nil {
		slog.Warn("rate limit configuration validation failed, applying defaults",
			slog.String("error", err.Error()))
		config.ApplyDefaults()
	}

	return config, nil
}

// nonNegativeInt reads an integer variable, warning and falling back to the
// default when the value is negative.
func nonNegativeInt(key string, defaultValue int) int {
	value := GetEnvInt(key, defaultValue)
	if value < 0 {
		slog.Warn("negative value for rate limit variable, using default",
			slog.String("key", key),
			slog.Int("value", value),
			slog.Int("default", defaultValue))
		return defaultValue
	}
	return value
}

// positiveDuration reads a duration variable, warning and falling back to
// the default when the value is zero or negative.
func positiveDuration(key string, defaultValue time.Duration) time.Duration {
	value := GetEnvDuration(key, defaultValue)
	if err := ValidatePositiveDuration(value); err != nil {
		slog.Warn("non-positive duration for rate limit variable, using default",
			slog.String("key", key),
			slog.String("value", value.String()),
			slog.String("default", defaultValue.String()),
			slog.String("error", err.Error()))
		return defaultValue
	}
	return value
}

// loadTierLimits reads the per-tier hourly quotas. Every tier gets an entry
// so the user limiter never falls back for a known tier.
func loadTierLimits() []ratelimit.TierRateLimitConfig {
	tiers := []struct {
		tier   ratelimit.UserTier
		envKey string
		limit  int
	}{
		{ratelimit.TierAdmin, "RATELIMIT_TIER_ADMIN", 10000},
		{ratelimit.TierPremium, "RATELIMIT_TIER_PREMIUM", 5000},
		{ratelimit.TierBasic, "RATELIMIT_TIER_BASIC", 1000},
		{ratelimit.TierViewer, "RATELIMIT_TIER_VIEWER", 500},
	}

	quotas := make([]ratelimit.TierRateLimitConfig, 0, len(tiers))
	for _, t := range tiers {
		quotas = append(quotas, ratelimit.TierRateLimitConfig{
			Tier:   t.tier,
			Limit:  nonNegativeInt(t.envKey, t.limit),
			Window: 1 * time.Hour,
		})
	}
	return quotas
}
