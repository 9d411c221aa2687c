package aggregate

import (
	"sync"
	"time"
)

// Entry is a computed value held by a Store.
type Entry struct {
	Key        string
	Value      any
	ComputedAt time.Time
	TTL        time.Duration
}

// Fresh reports whether the entry may still be served at now.
func (e *Entry) Fresh(now time.Time) bool {
	switch {
	case e.TTL == Forever:
		return true
	case e.TTL <= 0:
		return false
	default:
		return now.Before(e.ComputedAt.Add(e.TTL))
	}
}

// Store holds at most one entry per key. Implementations must be safe for
// concurrent use. Stale entries may be returned; the engine checks freshness.
type Store interface {
	Get(key string) (*Entry, bool)
	Set(entry *Entry)
	Delete(key string)
	Len() int
}

// MemoryStore is a map-backed Store. Entries are never evicted.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Entry)}
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Get(key string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok
}

func (s *MemoryStore) Set(entry *Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.Key] = entry
}

func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
