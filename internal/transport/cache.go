package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/lmskit/canvas-go/internal/cachestore"
)

// CacheConfig controls the cache middleware.
type CacheConfig struct {
	Enabled bool `koanf:"enabled"`

	// DefaultTTL applies when the TTL strategy defers.
	DefaultTTL time.Duration `koanf:"default_ttl"`

	// KeyPrefix namespaces this client's entries within a shared store.
	KeyPrefix string `koanf:"key_prefix"`

	// GetOnly keeps non-GET requests out of the read/write path.
	GetOnly bool `koanf:"cache_get_only"`

	// SuccessOnly restricts storage to 2xx responses.
	SuccessOnly bool `koanf:"cache_success_only"`

	// InvalidateOnMutation purges entries related to a mutated resource
	// path.
	InvalidateOnMutation bool `koanf:"invalidate_on_mutation"`
}

func defaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:              true,
		DefaultTTL:           5 * time.Minute,
		KeyPrefix:            "canvas",
		GetOnly:              true,
		SuccessOnly:          true,
		InvalidateOnMutation: true,
	}
}

// KeyFunc computes the cache key for a request.
type KeyFunc func(prefix string, req *http.Request) string

// TTLFunc computes the lifetime for a response about to be stored. Return
// zero to take the configured default, negative to skip storing.
type TTLFunc func(req *http.Request, resp *http.Response) time.Duration

// CacheMiddleware serves repeated GETs from a pluggable store and purges
// related entries when a mutation goes through. A hit short-circuits
// everything below it, retries and transport included. Store failures
// degrade to misses; they never fail the request.
type CacheMiddleware struct {
	mu     sync.RWMutex
	cfg    CacheConfig
	store  cachestore.Store
	keyFor KeyFunc
	ttlFor TTLFunc
	logger *slog.Logger
	rec    Recorder
}

// CacheOption customizes a CacheMiddleware.
type CacheOption func(*CacheMiddleware)

// WithCacheKeyFunc replaces the default key generator.
func WithCacheKeyFunc(fn KeyFunc) CacheOption {
	return func(m *CacheMiddleware) {
		if fn != nil {
			m.keyFor = fn
		}
	}
}

// WithCacheTTLFunc replaces the default TTL strategy.
func WithCacheTTLFunc(fn TTLFunc) CacheOption {
	return func(m *CacheMiddleware) {
		if fn != nil {
			m.ttlFor = fn
		}
	}
}

// WithCacheLogger sets the logger for degrade-path diagnostics.
func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(m *CacheMiddleware) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithCacheRecorder installs a metrics recorder.
func WithCacheRecorder(rec Recorder) CacheOption {
	return func(m *CacheMiddleware) {
		m.rec = rec
	}
}

// NewCache creates the cache middleware backed by store. settings overlay
// the defaults and may be nil.
func NewCache(store cachestore.Store, settings map[string]any, opts ...CacheOption) (*CacheMiddleware, error) {
	if store == nil {
		return nil, errors.New("cache middleware requires a store")
	}
	m := &CacheMiddleware{
		cfg:    defaultCacheConfig(),
		store:  store,
		keyFor: DefaultCacheKey,
		ttlFor: DefaultCacheTTL,
		logger: slog.Default(),
		rec:    NopRecorder{},
	}
	if err := m.Configure(settings); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Name implements Middleware.
func (m *CacheMiddleware) Name() string { return "cache" }

// Configure implements Middleware.
func (m *CacheMiddleware) Configure(settings map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return mergeSettings(&m.cfg, settings)
}

// Wrap implements Middleware.
func (m *CacheMiddleware) Wrap(next Handler) Handler {
	return func(ctx context.Context, req *http.Request, opts *Options) (*http.Response, error) {
		cfg := m.snapshot()
		if !cfg.Enabled || (opts != nil && opts.NoCache) {
			return next(ctx, req, opts)
		}

		if req.Method != http.MethodGet && cfg.GetOnly {
			resp, err := next(ctx, req, opts)
			if cfg.InvalidateOnMutation && isMutation(req.Method) {
				m.invalidate(ctx, req.URL.Path)
			}
			return resp, err
		}

		key := m.keyFor(cfg.KeyPrefix, req)
		if opts == nil || !opts.CacheRefresh {
			if payload, found := m.lookup(ctx, key); found {
				resp, err := deserializeResponse(payload, req)
				if err == nil {
					m.rec.CacheEvent(CacheEventHit)
					return resp, nil
				}
				// An unreadable entry is a miss; drop it so the fresh
				// response replaces it.
				_, _ = m.store.DeleteByPattern(ctx, key)
			}
			m.rec.CacheEvent(CacheEventMiss)
		}

		resp, err := next(ctx, req, opts)
		if err != nil {
			return nil, err
		}
		if m.storable(cfg, resp) {
			m.storeResponse(ctx, cfg, key, req, resp)
		}
		return resp, nil
	}
}

func (m *CacheMiddleware) snapshot() CacheConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *CacheMiddleware) lookup(ctx context.Context, key string) ([]byte, bool) {
	payload, found, err := m.store.Get(ctx, key)
	if err != nil {
		m.logger.Debug("cache read failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return nil, false
	}
	return payload, found
}

func (m *CacheMiddleware) storable(cfg CacheConfig, resp *http.Response) bool {
	if !cfg.SuccessOnly {
		return true
	}
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (m *CacheMiddleware) storeResponse(ctx context.Context, cfg CacheConfig, key string, req *http.Request, resp *http.Response) {
	ttl := m.ttlFor(req, resp)
	if ttl == 0 {
		ttl = cfg.DefaultTTL
	}
	if ttl <= 0 {
		return
	}
	payload, err := serializeResponse(resp)
	if err != nil {
		m.logger.Debug("cache serialize failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return
	}
	if err := m.store.Set(ctx, key, payload, ttl); err != nil {
		m.logger.Debug("cache store failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return
	}
	m.rec.CacheEvent(CacheEventStore)
}

func (m *CacheMiddleware) invalidate(ctx context.Context, path string) {
	for _, pattern := range invalidationPatterns(path) {
		n, err := m.store.DeleteByPattern(ctx, pattern)
		if err != nil {
			m.logger.Debug("cache purge failed",
				slog.String("pattern", pattern),
				slog.String("error", err.Error()))
			continue
		}
		if n > 0 {
			m.rec.CacheEvent(CacheEventPurge)
		}
	}
}

// DefaultCacheKey builds "{prefix}:{METHOD}:{path}?{query}" keys with the
// query in canonical sorted form. Credentials never appear in keys.
func DefaultCacheKey(prefix string, req *http.Request) string {
	key := prefix + ":" + req.Method + ":" + req.URL.Path
	if q := req.URL.Query(); len(q) > 0 {
		key += "?" + q.Encode()
	}
	return key
}

// DefaultCacheTTL ages volatile resources out faster than catalog data:
// submissions and quiz sessions change mid-assignment, while terms and
// accounts barely move. Zero defers to the configured default.
func DefaultCacheTTL(req *http.Request, _ *http.Response) time.Duration {
	path := req.URL.Path
	switch {
	case strings.Contains(path, "/terms"), strings.Contains(path, "/accounts"):
		return 30 * time.Minute
	case strings.Contains(path, "/submissions"), strings.Contains(path, "/quiz_submissions"):
		return 30 * time.Second
	default:
		return 0
	}
}

// isMutation reports whether the method can change server state.
func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// courseScopeRe captures the /courses/{id} prefix of a nested resource
// path.
var courseScopeRe = regexp.MustCompile(`^(.*?/courses/[^/]+)/.`)

// invalidationPatterns derives the glob patterns a mutation purges.
// Mutating a detail path covers the collection, the entry, and its
// subtree; mutating a resource nested under a course additionally stales
// that course's whole subtree, since course payloads embed nested
// summaries and counts.
func invalidationPatterns(path string) []string {
	clean := strings.TrimSuffix(path, "/")
	if clean == "" {
		return nil
	}

	var patterns []string
	add := func(p string) {
		if !slices.Contains(patterns, p) {
			patterns = append(patterns, p)
		}
	}

	segs := strings.Split(clean, "/")
	last := segs[len(segs)-1]
	if len(segs) > 1 && isResourceID(last) {
		collection := strings.Join(segs[:len(segs)-1], "/")
		add("*:GET:" + collection + "*")
		add("*:GET:" + clean + "*")
		add("*:GET:" + clean + "/*")
	} else {
		add("*:GET:" + clean + "*")
	}

	if match := courseScopeRe.FindStringSubmatch(clean); match != nil {
		add("*:GET:" + match[1] + "*")
	}
	return patterns
}

// isResourceID reports whether a path segment addresses a single entry:
// a numeric id, the "self" alias, or an sis_*:-prefixed identifier.
func isResourceID(seg string) bool {
	if seg == "" {
		return false
	}
	if seg == "self" || strings.HasPrefix(seg, "sis_") {
		return true
	}
	for _, r := range seg {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// serializeResponse captures the full wire form of resp, leaving its body
// readable for the caller.
func serializeResponse(resp *http.Response) ([]byte, error) {
	return httputil.DumpResponse(resp, true)
}

// deserializeResponse revives a response from its wire form.
func deserializeResponse(payload []byte, req *http.Request) (*http.Response, error) {
	return http.ReadResponse(bufio.NewReader(bytes.NewReader(payload)), req)
}

var _ Middleware = (*CacheMiddleware)(nil)
