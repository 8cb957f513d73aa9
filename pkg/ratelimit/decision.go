package ratelimit

import (
	"fmt"
	"time"
)

// RateLimitDecision is the outcome of one rate limit check, with the
// metadata the middleware needs for X-RateLimit-* and Retry-After headers.
type RateLimitDecision struct {
	// Key is the identifier the check ran against (IP or hashed user ID).
	Key string

	// Allowed reports whether the request fits in the current window.
	Allowed bool

	// Limit is the maximum number of requests per window.
	Limit int

	// Remaining is how many requests are left in the window. Zero means
	// the limit is reached.
	Remaining int

	// ResetAt is when the window opens again.
	ResetAt time.Time

	// RetryAfter is how long the client should wait, ResetAt minus now.
	RetryAfter time.Duration

	// LimiterType names the limiter that decided, "ip" or "user".
	LimiterType string
}

func (d *RateLimitDecision) String() string {
	if d.Allowed {
		return fmt.Sprintf(
			"RateLimitDecision{Allowed: true, Key: %s, Type: %s, Remaining: %d/%d, ResetAt: %s}",
			d.Key,
			d.LimiterType,
			d.Remaining,
			d.Limit,
			d.ResetAt.Format(time.RFC3339),
		)
	}

	return fmt.Sprintf(
		"RateLimitDecision{Allowed: false, Key: %s, Type: %s, Limit: %d, RetryAfter: %s, ResetAt: %s}",
		d.Key,
		d.LimiterType,
		d.Limit,
		d.RetryAfter.String(),
		d.ResetAt.Format(time.RFC3339),
	)
}

func (d *RateLimitDecision) IsAllowed() bool {
	return d.Allowed
}

func (d *RateLimitDecision) IsDenied() bool {
	return !d.Allowed
}

func (d *RateLimitDecision) HasRemaining() bool {
	return d.Remaining > 0
}

// ResetAtUnix is the reset time as a Unix timestamp, ready for the
// X-RateLimit-Reset header.
func (d *RateLimitDecision) ResetAtUnix() int64 {
	return d.ResetAt.Unix()
}

// RetryAfterSeconds is the retry delay in whole seconds, clamped at zero,
// ready for the Retry-After header.
func (d *RateLimitDecision) RetryAfterSeconds() int64 {
	seconds := int64(d.RetryAfter.Seconds())
	if seconds < 0 {
		return 0
	}
	return seconds
}

// NewAllowedDecision builds a decision for an admitted request.
func NewAllowedDecision(key, limiterType string, limit, remaining int, resetAt time.Time) *RateLimitDecision {
	return &RateLimitDecision{
		Key:         key,
		Allowed:     true,
		Limit:       limit,
		Remaining:   remaining,
		ResetAt:     resetAt,
		RetryAfter:  untilReset(resetAt),
		LimiterType: limiterType,
	}
}

// NewDeniedDecision builds a decision for a rejected request, with
// Remaining pinned to zero.
func NewDeniedDecision(key, limiterType string, limit int, resetAt time.Time) *RateLimitDecision {
	return &RateLimitDecision{
		Key:         key,
		Allowed:     false,
		Limit:       limit,
		ResetAt:     resetAt,
		RetryAfter:  untilReset(resetAt),
		LimiterType: limiterType,
	}
}

// untilReset is the wait until resetAt, clamped at zero for windows that
// already reopened.
func untilReset(resetAt time.Time) time.Duration {
	if wait := time.Until(resetAt); wait > 0 {
		return wait
	}
	return 0
}
