// Package memory provides the in-process LRU cache store, the default
// backend when no external store is configured.
package memory

import (
	"context"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lmskit/canvas-go/internal/cachestore"
)

// DefaultSize bounds the cache when no size is given. Memory use is
// roughly size times the average serialized response.
const DefaultSize = 1024

// entry pairs a stored payload with its deadline.
type entry struct {
	payload   []byte
	expiresAt time.Time
}

// Store is a bounded in-process cachestore.Store. The least recently used
// entry is displaced when the bound is hit; expired entries are dropped at
// read time. Safe for concurrent use.
type Store struct {
	cache *lru.Cache[string, entry]
	now   func() time.Time

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// New creates a store holding at most size entries. A non-positive size
// takes DefaultSize.
func New(size int) *Store {
	if size <= 0 {
		size = DefaultSize
	}
	s := &Store{now: time.Now}
	// Evictions counts every dropped or displaced entry, purges included.
	cache, _ := lru.NewWithEvict[string, entry](size, func(string, entry) {
		s.evictions.Add(1)
	})
	s.cache = cache
	return s
}

// Get implements cachestore.Store.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := s.cache.Get(key)
	if !ok {
		s.misses.Add(1)
		return nil, false, nil
	}
	if s.now().After(e.expiresAt) {
		s.cache.Remove(key)
		s.misses.Add(1)
		return nil, false, nil
	}
	s.hits.Add(1)
	return e.payload, true, nil
}

// Set implements cachestore.Store.
func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	payload := make([]byte, len(value))
	copy(payload, value)
	s.cache.Add(key, entry{payload: payload, expiresAt: s.now().Add(ttl)})
	return nil
}

// DeleteByPattern implements cachestore.Store.
func (s *Store) DeleteByPattern(_ context.Context, pattern string) (int, error) {
	removed := 0
	for _, key := range s.cache.Keys() {
		if cachestore.MatchPattern(pattern, key) && s.cache.Remove(key) {
			removed++
		}
	}
	return removed, nil
}

// Clear implements cachestore.Store.
func (s *Store) Clear(context.Context) error {
	s.cache.Purge()
	return nil
}

// Stats implements cachestore.Store.
func (s *Store) Stats(context.Context) (cachestore.Stats, error) {
	return cachestore.Stats{
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Entries:   int64(s.cache.Len()),
		Evictions: s.evictions.Load(),
	}, nil
}

var _ cachestore.Store = (*Store)(nil)
