// Package kvstore abstracts the shared key-value store used by the cache and the
// session store. Two implementations are provided: an in-memory store for tests
// and single-node deployments, and a Postgres-backed store for shared state.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by Get when the key does not exist or has expired.
var ErrKeyNotFound = errors.New("key not found")

// Store is the minimal contract both backing implementations satisfy:
// get/set/delete plus TTL semantics. Values are opaque bytes; callers own the
// encoding.
type Store interface {
	// Get returns the value for key, or ErrKeyNotFound if absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. A zero ttl stores the entry without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the entry for key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Expire resets the entry's TTL without touching its value.
	// Returns ErrKeyNotFound if the key is absent.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// PurgeExpired removes entries whose TTL has elapsed and returns how many
	// were removed. Implementations may also purge lazily on Get.
	PurgeExpired(ctx context.Context) (int, error)
}
