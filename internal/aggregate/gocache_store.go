package aggregate

import (
	"time"

	cache "github.com/patrickmn/go-cache"
)

// GoCacheStore is a Store backed by go-cache. Finite-TTL entries are handed to
// go-cache with their TTL so its janitor reclaims memory of keys that are never
// requested again. Forever entries are stored without expiration.
type GoCacheStore struct {
	cache *cache.Cache
}

// NewGoCacheStore creates a GoCacheStore whose janitor runs every cleanupInterval.
// A non-positive interval disables the janitor.
func NewGoCacheStore(cleanupInterval time.Duration) *GoCacheStore {
	return &GoCacheStore{cache: cache.New(cache.NoExpiration, cleanupInterval)}
}

// Compile-time interface check.
var _ Store = (*GoCacheStore)(nil)

func (s *GoCacheStore) Get(key string) (*Entry, bool) {
	obj, found := s.cache.Get(key)
	if !found {
		return nil, false
	}
	entry, ok := obj.(*Entry)
	return entry, ok
}

func (s *GoCacheStore) Set(entry *Entry) {
	expiration := cache.NoExpiration
	if entry.TTL != Forever {
		expiration = entry.TTL
	}
	s.cache.Set(entry.Key, entry, expiration)
}

func (s *GoCacheStore) Delete(key string) {
	s.cache.Delete(key)
}

func (s *GoCacheStore) Len() int {
	return s.cache.ItemCount()
}
