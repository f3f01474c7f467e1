package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// MemoryStore is an in-process Store with an injectable clock. It exists so
// TTL-expiry behavior is deterministically testable; production deployments
// use RedisStore.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	clock   Clock
}

// NewMemoryStore creates a MemoryStore. A nil clock defaults to time.Now.
func NewMemoryStore(clock Clock) *MemoryStore {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		clock:   clock,
	}
}

// Get returns the value for key and whether it was present and unexpired.
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return "", false, nil
	}
	if !entry.expiresAt.IsZero() && !s.clock().Before(entry.expiresAt) {
		delete(s.entries, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

// Put stores value under key for at most ttl.
func (s *MemoryStore) Put(_ context.Context, key string, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = s.clock().Add(ttl)
	}
	s.entries[key] = entry
	return nil
}

// Remove deletes key.
func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// Len returns the number of live entries, counting expired but uncollected ones.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Ensure MemoryStore implements the interface
var _ Store = (*MemoryStore)(nil)
