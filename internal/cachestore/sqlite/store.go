// Package sqlite provides a cachestore.Store backed by a SQLite database,
// for cache contents that survive process restarts.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/lmskit/canvas-go/internal/cachestore"
)

// Store persists cache entries in a single SQLite table. Expired entries
// are dropped on read; PruneExpired removes them in bulk.
type Store struct {
	db  *sqlx.DB
	now func() time.Time

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

var _ cachestore.Store = (*Store)(nil)

// New opens (or creates) the database at dbPath and initializes the schema.
func New(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db, now: time.Now}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS cache_entries (
			key TEXT PRIMARY KEY,
			payload BLOB NOT NULL,
			expires_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cache_entries_expiry ON cache_entries(expires_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

type cacheRow struct {
	Payload   []byte `db:"payload"`
	ExpiresAt int64  `db:"expires_at"`
}

// Get implements cachestore.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var row cacheRow
	err := s.db.GetContext(ctx, &row,
		`SELECT payload, expires_at FROM cache_entries WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		s.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cache entry: %w", err)
	}

	if row.ExpiresAt <= s.now().UnixNano() {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM cache_entries WHERE key = ?`, key); err == nil {
			s.evictions.Add(1)
		}
		s.misses.Add(1)
		return nil, false, nil
	}

	s.hits.Add(1)
	return row.Payload, true, nil
}

// Set implements cachestore.Store.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	query := `INSERT INTO cache_entries (key, payload, expires_at)
	          VALUES (?, ?, ?)
	          ON CONFLICT(key) DO UPDATE SET payload=excluded.payload, expires_at=excluded.expires_at`

	_, err := s.db.ExecContext(ctx, query, key, value, s.now().Add(ttl).UnixNano())
	if err != nil {
		return fmt.Errorf("failed to set cache entry: %w", err)
	}

	return nil
}

// DeleteByPattern implements cachestore.Store. Expired entries matching the
// pattern count toward the removed total.
func (s *Store) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE key LIKE ? ESCAPE '\'`, globToLike(pattern))
	if err != nil {
		return 0, fmt.Errorf("failed to delete cache entries: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rows), nil
}

// Clear implements cachestore.Store.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// Stats implements cachestore.Store. Entries counts live rows only.
func (s *Store) Stats(ctx context.Context) (cachestore.Stats, error) {
	var entries int64
	err := s.db.GetContext(ctx, &entries,
		`SELECT COUNT(*) FROM cache_entries WHERE expires_at > ?`, s.now().UnixNano())
	if err != nil {
		return cachestore.Stats{}, fmt.Errorf("failed to count cache entries: %w", err)
	}

	return cachestore.Stats{
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Entries:   entries,
		Evictions: s.evictions.Load(),
	}, nil
}

// PruneExpired removes every entry whose deadline has passed and returns the
// number removed. Reads already skip expired rows, so this is maintenance,
// not correctness.
func (s *Store) PruneExpired(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at <= ?`, s.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune cache entries: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	s.evictions.Add(uint64(rows))
	return int(rows), nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// globToLike rewrites a * glob into a LIKE pattern, escaping LIKE
// metacharacters in the literal parts. The ESCAPE character is backslash.
func globToLike(pattern string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`, `*`, `%`)
	return r.Replace(pattern)
}
