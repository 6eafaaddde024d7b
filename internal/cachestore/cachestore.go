// Package cachestore defines the storage contract behind the response
// cache, shared by the memory, redis, and sqlite adapters.
package cachestore

import (
	"context"
	"strings"
	"time"
)

// Store persists serialized HTTP responses under string keys.
// Implementations must be safe for concurrent use. Expiry is passive:
// entries are not swept on a timer, staleness is detected at read time.
type Store interface {
	// Get returns the entry for key. found is false when the key is
	// absent or its TTL has elapsed.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// DeleteByPattern removes every key matching the glob pattern, where
	// '*' matches any run of characters, and reports how many were
	// removed.
	DeleteByPattern(ctx context.Context, pattern string) (int, error)

	// Clear removes every entry.
	Clear(ctx context.Context) error

	// Stats reports this store instance's counters.
	Stats(ctx context.Context) (Stats, error)
}

// Stats are cumulative counters since the store was created, plus the
// current entry count.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Entries   int64  `json:"entries"`
	Evictions uint64 `json:"evictions"`
}

// MatchPattern reports whether key matches a glob pattern in which '*'
// matches any run of characters, separators included. A pattern without
// '*' matches only itself.
func MatchPattern(pattern, key string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == key
	}
	if !strings.HasPrefix(key, parts[0]) {
		return false
	}
	key = key[len(parts[0]):]
	for _, part := range parts[1 : len(parts)-1] {
		idx := strings.Index(key, part)
		if idx < 0 {
			return false
		}
		key = key[idx+len(part):]
	}
	return strings.HasSuffix(key, parts[len(parts)-1])
}
