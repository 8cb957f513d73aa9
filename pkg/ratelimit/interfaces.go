// Package ratelimit implements sliding-window rate limiting with pluggable
// stores, algorithms and metrics. The HTTP middleware builds on it, but
// nothing here knows about HTTP.
package ratelimit

import (
	"context"
	"time"
)

// RateLimitStore keeps request timestamps per key. Keys are whatever the
// caller limits on, an IP or a hashed user ID. Implementations must be safe
// for concurrent use.
type RateLimitStore interface {
	// AddRequest records one request at the given timestamp.
	AddRequest(ctx context.Context, key string, timestamp time.Time) error

	// GetRequests returns the timestamps for key newer than cutoff.
	GetRequests(ctx context.Context, key string, cutoff time.Time) ([]time.Time, error)

	// GetRequestCount counts the timestamps for key newer than cutoff.
	// Cheaper than GetRequests when only the count matters.
	GetRequestCount(ctx context.Context, key string, cutoff time.Time) (int, error)

	// Cleanup drops timestamps older than cutoff across all keys.
	Cleanup(ctx context.Context, cutoff time.Time) error

	// KeyCount reports how many keys currently hold state.
	KeyCount(ctx context.Context) (int, error)

	// MemoryUsage estimates the store's footprint in bytes.
	MemoryUsage(ctx context.Context) (int64, error)
}

// AtomicRateLimitStore adds a combined check-and-record operation. The check
// and the add happen under one lock, so two concurrent requests cannot both
// squeeze through the last slot of a window.
type AtomicRateLimitStore interface {
	RateLimitStore

	// CheckAndAddRequest records the request only when the count of
	// timestamps newer than cutoff is below limit. It returns whether the
	// request was admitted and the count after the call.
	CheckAndAddRequest(ctx context.Context, key string, timestamp time.Time, cutoff time.Time, limit int) (allowed bool, count int, err error)
}

// RateLimitAlgorithm decides whether a request fits within limit requests
// per window for a key.
type RateLimitAlgorithm interface {
	IsAllowed(ctx context.Context, key string, store RateLimitStore, limit int, window time.Duration) (*RateLimitDecision, error)

	// GetWindowDuration reports the window the algorithm evaluates against.
	GetWindowDuration() time.Duration
}

// RateLimitMetrics receives counters from the limiters. limiterType is "ip"
// or "user"; endpoint is the normalized request path.
type RateLimitMetrics interface {
	RecordRequest(limiterType, endpoint string)
	RecordDenied(limiterType, endpoint string)
	RecordAllowed(limiterType, endpoint string)
	RecordCheckDuration(limiterType string, duration time.Duration)
	SetActiveKeys(limiterType string, count int)
	RecordCircuitState(limiterType, state string)
	// RecordDegradationLevel reports fail-open depth: 0 normal, 3 disabled.
	RecordDegradationLevel(limiterType string, level int)
	RecordEviction(limiterType string, count int)
}

// Clock abstracts time.Now so window math can be tested with a fake clock.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (c *SystemClock) Now() time.Time {
	return time.Now()
}
