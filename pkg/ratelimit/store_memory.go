package ratelimit

import (
	"context"
	"sync"
	"time"
)

// InMemoryRateLimitStore keeps request timestamps per key in a map, capped
// at maxKeys with LRU eviction so a scan across many source IPs cannot grow
// memory without bound. Reads take an RLock; the workload is read-heavy.
type InMemoryRateLimitStore struct {
	mu      sync.RWMutex
	entries map[string]*keyEntry
	maxKeys int
	clock   Clock

	recency *recencyList
}

// keyEntry holds the timestamps recorded for one key.
type keyEntry struct {
	hits     []time.Time
	lastSeen time.Time
}

// recencyList is a doubly linked list of keys, most recently used at the
// head, backing LRU eviction.
type recencyList struct {
	head  *recencyNode
	tail  *recencyNode
	index map[string]*recencyNode
}

type recencyNode struct {
	key  string
	prev *recencyNode
	next *recencyNode
}

// InMemoryStoreConfig configures the store. Zero MaxKeys means 10000, nil
// Clock means SystemClock.
type InMemoryStoreConfig struct {
	MaxKeys int
	Clock   Clock
}

func DefaultInMemoryStoreConfig() InMemoryStoreConfig {
	return InMemoryStoreConfig{
		MaxKeys: 10000,
		Clock:   &SystemClock{},
	}
}

func NewInMemoryRateLimitStore(config InMemoryStoreConfig) *InMemoryRateLimitStore {
	if config.MaxKeys <= 0 {
		config.MaxKeys = 10000
	}
	if config.Clock == nil {
		config.Clock = &SystemClock{}
	}

	return &InMemoryRateLimitStore{
		entries: make(map[string]*keyEntry),
		maxKeys: config.MaxKeys,
		clock:   config.Clock,
		recency: &recencyList{index: make(map[string]*recencyNode)},
	}
}

// AddRequest records one timestamp for key, evicting the least recently
// used keys first when a new key would exceed the cap.
func (s *InMemoryRateLimitStore) AddRequest(ctx context.Context, key string, timestamp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) >= s.maxKeys {
		// Only a brand-new key needs room made for it.
		if _, known := s.entries[key]; !known {
			s.evictColdest()
		}
	}

	s.record(key, timestamp)
	return nil
}

// record appends a hit for key, creating the entry if needed. Caller holds
// the write lock.
func (s *InMemoryRateLimitStore) record(key string, timestamp time.Time) {
	entry, known := s.entries[key]
	if !known {
		entry = &keyEntry{
			hits:     make([]time.Time, 0, 100),
			lastSeen: timestamp,
		}
		s.entries[key] = entry
	} else {
		entry.lastSeen = timestamp
	}

	entry.hits = append(entry.hits, timestamp)
	s.recency.promote(key)
}

// GetRequests returns the timestamps for key newer than cutoff.
func (s *InMemoryRateLimitStore) GetRequests(ctx context.Context, key string, cutoff time.Time) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, known := s.entries[key]
	if !known {
		return []time.Time{}, nil
	}

	live := make([]time.Time, 0, len(entry.hits))
	for _, hit := range entry.hits {
		if hit.After(cutoff) {
			live = append(live, hit)
		}
	}

	return live, nil
}

// GetRequestCount counts the timestamps for key newer than cutoff without
// allocating a result slice.
func (s *InMemoryRateLimitStore) GetRequestCount(ctx context.Context, key string, cutoff time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.countLive(key, cutoff), nil
}

// countLive counts hits for key newer than cutoff. Caller holds a lock.
func (s *InMemoryRateLimitStore) countLive(key string, cutoff time.Time) int {
	entry, known := s.entries[key]
	if !known {
		return 0
	}

	n := 0
	for _, hit := range entry.hits {
		if hit.After(cutoff) {
			n++
		}
	}
	return n
}

// Cleanup drops timestamps at or before cutoff from every key and removes
// keys left empty.
func (s *InMemoryRateLimitStore) Cleanup(ctx context.Context, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var emptied []string

	for key, entry := range s.entries {
		kept := make([]time.Time, 0, len(entry.hits))
		for _, hit := range entry.hits {
			if hit.After(cutoff) {
				kept = append(kept, hit)
			}
		}

		if len(kept) == 0 {
			emptied = append(emptied, key)
		} else {
			entry.hits = kept
		}
	}

	for _, key := range emptied {
		delete(s.entries, key)
		s.recency.drop(key)
	}

	return nil
}

func (s *InMemoryRateLimitStore) KeyCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries), nil
}

// MemoryUsage estimates the store's footprint from per-entry constants:
// map entry plus entry struct plus 24 bytes per timestamp plus LRU node.
func (s *InMemoryRateLimitStore) MemoryUsage(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const (
		mapEntryOverhead = 48
		timestampSize    = 24
		keyEntryOverhead = 32
		recencyNodeSize  = 48
	)

	var total int64

	for _, entry := range s.entries {
		total += mapEntryOverhead + keyEntryOverhead
		total += int64(len(entry.hits) * timestampSize)
	}

	total += int64(len(s.recency.index) * recencyNodeSize)

	return total, nil
}

// evictColdest removes the least recently used 10% of keys (at least one)
// so eviction does not run on every insert near the cap. Caller holds the
// write lock.
func (s *InMemoryRateLimitStore) evictColdest() {
	target := s.maxKeys / 10
	if target < 1 {
		target = 1
	}

	for evicted := 0; evicted < target && s.recency.tail != nil; evicted++ {
		key := s.recency.tail.key
		delete(s.entries, key)
		s.recency.drop(key)
	}
}

// promote moves key to the front of the recency order, inserting it if
// absent. Caller holds the write lock.
func (l *recencyList) promote(key string) {
	if _, known := l.index[key]; known {
		l.drop(key)
	}

	node := &recencyNode{key: key, next: l.head}

	if l.head != nil {
		l.head.prev = node
	}
	l.head = node

	if l.tail == nil {
		l.tail = node
	}

	l.index[key] = node
}

// drop unlinks key from the recency order. Caller holds the write lock.
func (l *recencyList) drop(key string) {
	node, known := l.index[key]
	if !known {
		return
	}

	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}

	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}

	delete(l.index, key)
}

// CheckAndAddRequest counts the live timestamps for key and records the
// request only if the count is below limit, all under one lock so
// concurrent requests cannot share the last slot of a window. The returned
// count includes the request when it was admitted.
func (s *InMemoryRateLimitStore) CheckAndAddRequest(ctx context.Context, key string, timestamp time.Time, cutoff time.Time, limit int) (allowed bool, count int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := s.countLive(key, cutoff)
	if live >= limit {
		return false, live, nil
	}

	if len(s.entries) >= s.maxKeys {
		if _, known := s.entries[key]; !known {
			s.evictColdest()
		}
	}

	s.record(key, timestamp)
	return true, live + 1, nil
}
