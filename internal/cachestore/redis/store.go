// Package redis provides a cachestore.Store backed by a Redis server, for
// cache contents shared across processes.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lmskit/canvas-go/internal/cachestore"
)

// DefaultNamespace prefixes every key written by the store so that other
// data in the same Redis database stays untouched by Clear.
const DefaultNamespace = "canvascache:"

const scanBatch = 100

// Store implements cachestore.Store on a Redis client. TTL expiry is
// handled server side, so Stats always reports zero evictions.
type Store struct {
	client    redis.UniversalClient
	namespace string

	hits   atomic.Uint64
	misses atomic.Uint64
}

var _ cachestore.Store = (*Store)(nil)

// Option adjusts store construction.
type Option func(*Store)

// WithNamespace overrides the key prefix shared by every entry.
func WithNamespace(ns string) Option {
	return func(s *Store) { s.namespace = ns }
}

// New connects to the Redis server at addr.
func New(addr string, opts ...Option) *Store {
	return NewWithClient(redis.NewClient(&redis.Options{Addr: addr}), opts...)
}

// NewWithClient wraps an existing client, single-node or cluster.
func NewWithClient(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{client: client, namespace: DefaultNamespace}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get implements cachestore.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, s.namespace+key).Bytes()
	if errors.Is(err, redis.Nil) {
		s.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cache entry: %w", err)
	}
	s.hits.Add(1)
	return val, true, nil
}

// Set implements cachestore.Store.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, s.namespace+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache entry: %w", err)
	}
	return nil
}

// DeleteByPattern implements cachestore.Store.
func (s *Store) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	return s.deleteMatching(ctx, s.namespace+globToMatch(pattern))
}

// Clear implements cachestore.Store. Only keys under the store's namespace
// are removed.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.deleteMatching(ctx, s.namespace+"*")
	return err
}

func (s *Store) deleteMatching(ctx context.Context, match string) (int, error) {
	var cursor uint64
	var keys []string

	for {
		batch, next, err := s.client.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to scan cache keys: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	if len(keys) == 0 {
		return 0, nil
	}

	deleted, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to delete cache keys: %w", err)
	}
	return int(deleted), nil
}

// Stats implements cachestore.Store. Entries requires a full scan of the
// namespace and is priced accordingly.
func (s *Store) Stats(ctx context.Context) (cachestore.Stats, error) {
	var cursor uint64
	var entries int64

	for {
		batch, next, err := s.client.Scan(ctx, cursor, s.namespace+"*", scanBatch).Result()
		if err != nil {
			return cachestore.Stats{}, fmt.Errorf("failed to scan cache keys: %w", err)
		}
		entries += int64(len(batch))
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return cachestore.Stats{
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
		Entries: entries,
	}, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// globToMatch escapes Redis MATCH metacharacters other than *, which is the
// only wildcard deletion patterns use. Cache keys carry literal ? and
// bracket characters from query strings.
func globToMatch(pattern string) string {
	r := strings.NewReplacer(`\`, `\\`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(pattern)
}
