// Package cache provides the shared result cache for analysis work. It layers
// an in-process LRU index with single-flight de-duplication on top of the
// shared key-value store, so concurrent requests for the same fingerprint
// trigger exactly one computation.
package cache

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"creator-insights/internal/infra/kvstore"
)

// ErrCacheUnavailable marks a degraded-mode computation: the backing store was
// unreachable, so the value was computed directly and not cached.
var ErrCacheUnavailable = errors.New("cache store unavailable")

// ComputeFunc produces the value for a key on a cache miss.
type ComputeFunc func(ctx context.Context) ([]byte, error)

// Info describes how a value was obtained.
type Info struct {
	Hit          bool          `json:"cache_hit"`
	TTLRemaining time.Duration `json:"ttl_remaining"`
	Degraded     bool          `json:"degraded,omitempty"`
}

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	Size    int     `json:"size"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// indexEntry is the in-process bookkeeping for one cached key.
// The value itself lives in the KV store.
type indexEntry struct {
	key       string
	category  Category
	createdAt time.Time
	expiresAt time.Time
	hitCount  int64
}

// Config holds cache tuning parameters.
type Config struct {
	// Capacity is the maximum number of tracked entries before LRU eviction.
	Capacity int

	// TTLs overrides the default category TTL table. Nil keeps the defaults.
	TTLs map[Category]time.Duration
}

// Cache is the result cache. One instance is shared across all concurrent
// requests; all index mutations happen under an internal mutex.
type Cache struct {
	store kvstore.Store
	group singleflight.Group
	ttls  map[Category]time.Duration
	now   func() time.Time

	mu       sync.Mutex
	index    map[string]*list.Element
	lru      *list.List // front = most recently used
	capacity int

	hits   int64
	misses int64
}

// New creates a cache over the given backing store.
func New(store kvstore.Store, cfg Config) *Cache {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 10000
	}
	ttls := DefaultTTLs()
	for cat, ttl := range cfg.TTLs {
		ttls[cat] = ttl
	}
	return &Cache{
		store:    store,
		ttls:     ttls,
		now:      time.Now,
		index:    make(map[string]*list.Element),
		lru:      list.New(),
		capacity: cfg.Capacity,
	}
}

// GetOrCompute returns the cached value for key, computing and storing it on a
// miss. Concurrent callers for the same key share one in-flight computation.
// When the backing store is unreachable the value is computed directly and the
// returned Info is marked degraded.
func (c *Cache) GetOrCompute(ctx context.Context, key string, category Category, fn ComputeFunc) ([]byte, Info, error) {
	if value, info, ok := c.lookup(ctx, key); ok {
		return value, info, nil
	}

	type flightResult struct {
		value []byte
		info  Info
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		// Re-check after winning the flight: a concurrent caller may have
		// stored the value between our miss and this closure running.
		if value, info, ok := c.lookup(ctx, key); ok {
			return flightResult{value: value, info: info}, nil
		}

		value, err := fn(ctx)
		if err != nil {
			return nil, err
		}

		info := c.storeValue(ctx, key, category, value)
		return flightResult{value: value, info: info}, nil
	})
	if err != nil {
		return nil, Info{}, err
	}

	fr := result.(flightResult)
	return fr.value, fr.info, nil
}

// Lookup returns the cached value for key without computing anything on a
// miss. Callers that only learn the TTL category after computing (such as the
// whole-response cache, whose category depends on the classified depth) pair
// this with Put instead of using GetOrCompute.
func (c *Cache) Lookup(ctx context.Context, key string) ([]byte, Info, bool) {
	return c.lookup(ctx, key)
}

// Put stores a computed value under its category TTL.
func (c *Cache) Put(ctx context.Context, key string, category Category, value []byte) Info {
	return c.storeValue(ctx, key, category, value)
}

// lookup checks the index and backing store for a live entry.
func (c *Cache) lookup(ctx context.Context, key string) ([]byte, Info, bool) {
	now := c.now()

	c.mu.Lock()
	elem, ok := c.index[key]
	if !ok {
		c.misses++
		c.mu.Unlock()
		recordMiss()
		return nil, Info{}, false
	}
	entry := elem.Value.(*indexEntry)
	if !now.Before(entry.expiresAt) {
		// Lazy purge of expired entries on access.
		c.removeLocked(elem)
		c.misses++
		c.mu.Unlock()
		recordMiss()
		_ = c.store.Delete(ctx, key)
		return nil, Info{}, false
	}
	category := entry.category
	ttlRemaining := entry.expiresAt.Sub(now)
	c.mu.Unlock()

	value, err := c.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			// Index was ahead of the store (e.g. external invalidation).
			c.dropIndexEntry(key)
			c.countMiss()
			return nil, Info{}, false
		}
		slog.Warn("cache store unreachable, bypassing cache",
			slog.String("key", key),
			slog.String("category", string(category)),
			slog.Any("error", err))
		recordDegraded()
		c.countMiss()
		return nil, Info{}, false
	}

	c.mu.Lock()
	if elem, ok := c.index[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*indexEntry).hitCount++
	}
	c.hits++
	c.mu.Unlock()
	recordHit()

	return value, Info{Hit: true, TTLRemaining: ttlRemaining}, true
}

// storeValue writes a freshly computed value with its category TTL and updates
// the LRU index, evicting the least-recently-used entry over capacity.
func (c *Cache) storeValue(ctx context.Context, key string, category Category, value []byte) Info {
	ttl := c.TTLFor(category)
	now := c.now()

	if err := c.store.Set(ctx, key, value, ttl); err != nil {
		slog.Warn("cache store write failed, serving uncached result",
			slog.String("key", key),
			slog.String("category", string(category)),
			slog.Any("error", err))
		recordDegraded()
		return Info{Hit: false, Degraded: true}
	}

	var evictKey string
	c.mu.Lock()
	if elem, ok := c.index[key]; ok {
		c.removeLocked(elem)
	}
	elem := c.lru.PushFront(&indexEntry{
		key:       key,
		category:  category,
		createdAt: now,
		expiresAt: now.Add(ttl),
	})
	c.index[key] = elem
	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			evictKey = oldest.Value.(*indexEntry).key
			c.removeLocked(oldest)
		}
	}
	c.mu.Unlock()

	if evictKey != "" {
		_ = c.store.Delete(ctx, evictKey)
		recordEviction("lru")
	}

	return Info{Hit: false, TTLRemaining: ttl}
}

// Invalidate removes a key from the cache.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	c.dropIndexEntry(key)
	if err := c.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// Sweep removes all expired entries from the index and the backing store.
// It is called periodically by the worker and returns how many entries were purged.
func (c *Cache) Sweep(ctx context.Context) (int, error) {
	now := c.now()

	c.mu.Lock()
	var expiredKeys []string
	for elem := c.lru.Back(); elem != nil; {
		prev := elem.Prev()
		entry := elem.Value.(*indexEntry)
		if !now.Before(entry.expiresAt) {
			expiredKeys = append(expiredKeys, entry.key)
			c.removeLocked(elem)
		}
		elem = prev
	}
	c.mu.Unlock()

	for _, key := range expiredKeys {
		_ = c.store.Delete(ctx, key)
		recordEviction("expired")
	}

	// The store may hold entries this process never indexed (other nodes).
	if _, err := c.store.PurgeExpired(ctx); err != nil {
		return len(expiredKeys), err
	}
	return len(expiredKeys), nil
}

// Stats returns a snapshot of cache effectiveness counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return Stats{
		Size:    c.lru.Len(),
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: rate,
	}
}

// TTLFor returns the TTL assigned to a category at write time.
func (c *Cache) TTLFor(category Category) time.Duration {
	if ttl, ok := c.ttls[category]; ok {
		return ttl
	}
	return c.ttls[CategoryStandard]
}

func (c *Cache) removeLocked(elem *list.Element) {
	entry := elem.Value.(*indexEntry)
	delete(c.index, entry.key)
	c.lru.Remove(elem)
}

func (c *Cache) dropIndexEntry(key string) {
	c.mu.Lock()
	if elem, ok := c.index[key]; ok {
		c.removeLocked(elem)
	}
	c.mu.Unlock()
}

func (c *Cache) countMiss() {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
	recordMiss()
}
