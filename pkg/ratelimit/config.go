package ratelimit

import (
	"fmt"
	"time"
)

// RateLimitConfig carries every knob for the limiters: global IP and user
// defaults, per-endpoint overrides, tier quotas, store eviction and circuit
// breaker settings.
type RateLimitConfig struct {
	// IP-based defaults, applied when no endpoint override matches.
	DefaultIPLimit  int
	DefaultIPWindow time.Duration

	// User-based defaults.
	DefaultUserLimit  int
	DefaultUserWindow time.Duration

	// EndpointOverrides tighten or loosen limits for specific paths, such
	// as /auth/token.
	EndpointOverrides []EndpointRateLimitConfig

	// TierLimits give each subscription tier its own quota.
	TierLimits []TierRateLimitConfig

	// MaxActiveKeys bounds how many IPs and users the store tracks.
	MaxActiveKeys int

	// CleanupInterval and CleanupMaxAge govern the background sweep of
	// stale timestamps.
	CleanupInterval time.Duration
	CleanupMaxAge   time.Duration

	// Circuit breaker: open after N consecutive store failures, probe
	// again after the reset timeout.
	CircuitBreakerFailureThreshold int
	CircuitBreakerResetTimeout     time.Duration

	// Enabled switches rate limiting off entirely when false.
	Enabled bool
}

// EndpointRateLimitConfig overrides the global limits for one path pattern.
type EndpointRateLimitConfig struct {
	// PathPattern matches the request path, wildcards like "/api/v1/*"
	// included.
	PathPattern string

	IPLimit  int
	IPWindow time.Duration

	UserLimit  int
	UserWindow time.Duration
}

// TierRateLimitConfig binds a quota to one subscription tier.
type TierRateLimitConfig struct {
	Tier   UserTier
	Limit  int
	Window time.Duration
}

// UserTier is a subscription level carried in the auth token.
type UserTier string

const (
	TierAdmin   UserTier = "admin"
	TierPremium UserTier = "premium"
	TierBasic   UserTier = "basic"
	TierViewer  UserTier = "viewer"
)

func (t UserTier) String() string {
	return string(t)
}

func (t UserTier) IsValid() bool {
	switch t {
	case TierAdmin, TierPremium, TierBasic, TierViewer:
		return true
	default:
		return false
	}
}

// requireNonNegative rejects negative counts.
func requireNonNegative(field string, value int) error {
	if value < 0 {
		return fmt.Errorf("%s must not be negative, got %d", field, value)
	}
	return nil
}

// requireNonNegativeWindow rejects negative durations.
func requireNonNegativeWindow(field string, value time.Duration) error {
	if value < 0 {
		return fmt.Errorf("%s must not be negative, got %s", field, value)
	}
	return nil
}

// Validate rejects negative limits and windows, empty path patterns and
// unknown tiers.
func (c *RateLimitConfig) Validate() error {
	counts := map[string]int{
		"DefaultIPLimit":                 c.DefaultIPLimit,
		"DefaultUserLimit":               c.DefaultUserLimit,
		"MaxActiveKeys":                  c.MaxActiveKeys,
		"CircuitBreakerFailureThreshold": c.CircuitBreakerFailureThreshold,
	}
	for field, value := range counts {
		if err := requireNonNegative(field, value); err != nil {
			return err
		}
	}

	windows := map[string]time.Duration{
		"DefaultIPWindow":            c.DefaultIPWindow,
		"DefaultUserWindow":          c.DefaultUserWindow,
		"CleanupInterval":            c.CleanupInterval,
		"CleanupMaxAge":              c.CleanupMaxAge,
		"CircuitBreakerResetTimeout": c.CircuitBreakerResetTimeout,
	}
	for field, value := range windows {
		if err := requireNonNegativeWindow(field, value); err != nil {
			return err
		}
	}

	for i, override := range c.EndpointOverrides {
		if err := override.validate(i); err != nil {
			return err
		}
	}
	for i, quota := range c.TierLimits {
		if err := quota.validate(i); err != nil {
			return err
		}
	}
	return nil
}

func (o EndpointRateLimitConfig) validate(i int) error {
	if o.PathPattern == "" {
		return fmt.Errorf("EndpointOverrides[%d].PathPattern cannot be empty", i)
	}
	checks := []error{
		requireNonNegative(fmt.Sprintf("EndpointOverrides[%d].IPLimit", i), o.IPLimit),
		requireNonNegativeWindow(fmt.Sprintf("EndpointOverrides[%d].IPWindow", i), o.IPWindow),
		requireNonNegative(fmt.Sprintf("EndpointOverrides[%d].UserLimit", i), o.UserLimit),
		requireNonNegativeWindow(fmt.Sprintf("EndpointOverrides[%d].UserWindow", i), o.UserWindow),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}

func (q TierRateLimitConfig) validate(i int) error {
	if !q.Tier.IsValid() {
		return fmt.Errorf("TierLimits[%d].Tier has unknown value %q", i, q.Tier)
	}
	if err := requireNonNegative(fmt.Sprintf("TierLimits[%d].Limit", i), q.Limit); err != nil {
		return err
	}
	return requireNonNegativeWindow(fmt.Sprintf("TierLimits[%d].Window", i), q.Window)
}

// ApplyDefaults fills zero values so a partially populated config still
// produces a working limiter.
func (c *RateLimitConfig) ApplyDefaults() {
	fillInt(&c.DefaultIPLimit, 100)
	fillDuration(&c.DefaultIPWindow, 1*time.Minute)

	fillInt(&c.DefaultUserLimit, 1000)
	fillDuration(&c.DefaultUserWindow, 1*time.Hour)

	fillInt(&c.MaxActiveKeys, 10000)
	fillDuration(&c.CleanupInterval, 5*time.Minute)
	fillDuration(&c.CleanupMaxAge, 1*time.Hour)

	fillInt(&c.CircuitBreakerFailureThreshold, 10)
	fillDuration(&c.CircuitBreakerResetTimeout, 30*time.Second)

	c.Enabled = true
}

func fillInt(field *int, value int) {
	if *field == 0 {
		*field = value
	}
}

func fillDuration(field *time.Duration, value time.Duration) {
	if *field == 0 {
		*field = value
	}
}

// GetTierLimit returns the quota for tier, falling back to the user
// defaults when the tier has no explicit entry.
func (c *RateLimitConfig) GetTierLimit(tier UserTier) (limit int, window time.Duration) {
	for _, quota := range c.TierLimits {
		if quota.Tier == tier {
			return quota.Limit, quota.Window
		}
	}
	return c.DefaultUserLimit, c.DefaultUserWindow
}

// GetEndpointLimit returns the IP and user limits for pathPattern, falling
// back to the global defaults when no override matches.
func (c *RateLimitConfig) GetEndpointLimit(pathPattern string) (ipLimit int, ipWindow time.Duration, userLimit int, userWindow time.Duration) {
	for _, override := range c.EndpointOverrides {
		if override.PathPattern == pathPattern {
			return override.IPLimit, override.IPWindow, override.UserLimit, override.UserWindow
		}
	}
	return c.DefaultIPLimit, c.DefaultIPWindow, c.DefaultUserLimit, c.DefaultUserWindow
}

// DefaultConfig is ApplyDefaults on an empty config.
func DefaultConfig() *RateLimitConfig {
	config := &RateLimitConfig{}
	config.ApplyDefaults()
	return config
}
