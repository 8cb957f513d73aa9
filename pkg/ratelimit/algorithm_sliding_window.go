package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SlidingWindowAlgorithm counts individual request timestamps inside a
// moving window, so quotas drain smoothly instead of resetting in bursts at
// fixed boundaries. It also guards against the system clock stepping
// backwards: per key it remembers the last timestamp it handed out and never
// goes below it, otherwise an NTP correction could reopen a closed window.
type SlidingWindowAlgorithm struct {
	clock Clock

	// mu protects lastIssued.
	mu         sync.RWMutex
	lastIssued map[string]time.Time

	// windowDuration is the window from the most recent IsAllowed call,
	// reported by GetWindowDuration.
	windowDuration time.Duration
}

// NewSlidingWindowAlgorithm builds the algorithm. A nil clock means
// SystemClock.
func NewSlidingWindowAlgorithm(clock Clock) *SlidingWindowAlgorithm {
	if clock == nil {
		clock = &SystemClock{}
	}

	return &SlidingWindowAlgorithm{
		clock:      clock,
		lastIssued: make(map[string]time.Time),
	}
}

// IsAllowed checks whether key has budget left for one more request within
// the window. When the store implements AtomicRateLimitStore the check and
// the record happen under one lock; otherwise it falls back to a
// check-then-add sequence.
func (a *SlidingWindowAlgorithm) IsAllowed(
	ctx context.Context,
	key string,
	store RateLimitStore,
	limit int,
	window time.Duration,
) (*RateLimitDecision, error) {
	a.windowDuration = window

	now := a.monotonicNow(key)
	cutoff := now.Add(-window)
	resetAt := now.Add(window)

	if atomicStore, ok := store.(AtomicRateLimitStore); ok {
		return a.decideAtomic(ctx, key, atomicStore, limit, cutoff, now, resetAt)
	}

	return a.decideTwoStep(ctx, key, store, limit, cutoff, now, resetAt)
}

func (a *SlidingWindowAlgorithm) decideAtomic(
	ctx context.Context,
	key string,
	store AtomicRateLimitStore,
	limit int,
	cutoff time.Time,
	now time.Time,
	resetAt time.Time,
) (*RateLimitDecision, error) {
	admitted, count, err := store.CheckAndAddRequest(ctx, key, now, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to check and add request: %w", err)
	}

	if admitted {
		// count already includes the request just recorded.
		return NewAllowedDecision(key, "unknown", limit, limit-count, resetAt), nil
	}

	return denied(key, limit, now, resetAt), nil
}

// decideTwoStep checks then adds in two store calls. Two concurrent
// requests can both pass the check for the final slot, so prefer an
// AtomicRateLimitStore.
func (a *SlidingWindowAlgorithm) decideTwoStep(
	ctx context.Context,
	key string,
	store RateLimitStore,
	limit int,
	cutoff time.Time,
	now time.Time,
	resetAt time.Time,
) (*RateLimitDecision, error) {
	count, err := store.GetRequestCount(ctx, key, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to get request count: %w", err)
	}

	if count >= limit {
		return denied(key, limit, now, resetAt), nil
	}

	if err := store.AddRequest(ctx, key, now); err != nil {
		return nil, fmt.Errorf("failed to add request: %w", err)
	}

	return NewAllowedDecision(key, "unknown", limit, limit-count-1, resetAt), nil
}

func denied(key string, limit int, now, resetAt time.Time) *RateLimitDecision {
	decision := NewDeniedDecision(key, "unknown", limit, resetAt)
	decision.RetryAfter = resetAt.Sub(now)
	return decision
}

// GetWindowDuration reports the window last passed to IsAllowed.
func (a *SlidingWindowAlgorithm) GetWindowDuration() time.Duration {
	return a.windowDuration
}

// monotonicNow returns the clock's current time, clamped so it never runs
// backwards for a key.
func (a *SlidingWindowAlgorithm) monotonicNow(key string) time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()
	if issued, seen := a.lastIssued[key]; seen && now.Before(issued) {
		slog.Warn("clock skew detected, using last valid timestamp",
			slog.String("key", key),
			slog.Time("now", now),
			slog.Time("last_seen", issued),
			slog.Duration("skew", issued.Sub(now)))
		return issued
	}

	a.lastIssued[key] = now
	return now
}

// CleanupExpiredTimestamps drops skew-tracking entries older than maxAge so
// idle keys do not accumulate forever. Returns how many were removed.
func (a *SlidingWindowAlgorithm) CleanupExpiredTimestamps(maxAge time.Duration) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := a.clock.Now().Add(-maxAge)
	removed := 0

	for key, issued := range a.lastIssued {
		if issued.Before(cutoff) {
			delete(a.lastIssued, key)
			removed++
		}
	}

	if removed > 0 {
		slog.Debug("cleaned up expired timestamp entries",
			slog.Int("removed", removed),
			slog.Int("remaining", len(a.lastIssued)))
	}

	return removed
}

// GetTrackedKeysCount reports how many keys the skew guard is tracking.
func (a *SlidingWindowAlgorithm) GetTrackedKeysCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return len(a.lastIssued)
}
