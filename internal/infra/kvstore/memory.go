package kvstore

import (
	"context"
	"sync"
	"time"
)

// memoryEntry is one stored value with its optional expiry.
type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore is an in-process Store implementation. It is safe for concurrent
// use and purges expired entries lazily on Get and eagerly via PurgeExpired.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

// NewMemoryStoreWithClock creates a store with an injected clock for tests.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	s := NewMemoryStore()
	s.now = now
	return s
}

// Get returns the value for key, lazily dropping it when expired.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrKeyNotFound
	}

	if entry.expired(s.now()) {
		s.mu.Lock()
		// Re-check under the write lock: a concurrent Set may have replaced it.
		if cur, ok := s.entries[key]; ok && cur.expired(s.now()) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, ErrKeyNotFound
	}

	return entry.value, nil
}

// Set stores value under key with the given TTL.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := &memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
	return nil
}

// Delete removes the entry for key.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Expire resets the TTL of an existing entry.
func (s *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || entry.expired(s.now()) {
		return ErrKeyNotFound
	}

	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	} else {
		entry.expiresAt = time.Time{}
	}
	return nil
}

// PurgeExpired removes all expired entries and returns how many were dropped.
func (s *MemoryStore) PurgeExpired(_ context.Context) (int, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for key, entry := range s.entries {
		if entry.expired(now) {
			delete(s.entries, key)
			purged++
		}
	}
	return purged, nil
}

// Len returns the number of live entries, counting not-yet-purged expired ones.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
