package transport

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig controls the rate-limit middleware. Units mirror Canvas's
// cost accounting: a full bucket holds BucketSize units, requests are
// pre-charged InitialCost units, and the bucket leaks LeakRate units per
// second back in.
type RateLimitConfig struct {
	BucketSize  float64 `koanf:"bucket_size"`
	LeakRate    float64 `koanf:"leak_rate"`
	InitialCost float64 `koanf:"initial_cost"`

	// MinRemaining is the reserve kept in the bucket; dispatch waits when
	// charging would dip below it.
	MinRemaining float64 `koanf:"min_remaining"`

	// WaitOnLimit sleeps out the required pause instead of failing fast.
	WaitOnLimit bool `koanf:"wait_on_limit"`

	// MaxWait converts an unacceptably long required pause into an
	// immediate failure rather than blocking indefinitely.
	MaxWait time.Duration `koanf:"max_wait_time"`

	// BucketKey overrides derived bucket keys for every request.
	BucketKey string `koanf:"bucket_key"`
}

func defaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		BucketSize:   3000,
		LeakRate:     50,
		InitialCost:  50,
		MinRemaining: 300,
		WaitOnLimit:  true,
		MaxWait:      30 * time.Second,
	}
}

// RateLimitMiddleware enforces a client-side leaky-bucket quota mirroring
// the server's accounting, smoothing bursts before the server throttles
// them. It wraps the whole retry sequence, so a logical call is pre-charged
// once regardless of how many attempts run inside it.
type RateLimitMiddleware struct {
	mu    sync.RWMutex
	cfg   RateLimitConfig
	store BucketStore
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	rec   Recorder
}

// RateLimitOption customizes a RateLimitMiddleware.
type RateLimitOption func(*RateLimitMiddleware)

// WithBucketStore replaces the process-wide default bucket store.
func WithBucketStore(store BucketStore) RateLimitOption {
	return func(m *RateLimitMiddleware) {
		if store != nil {
			m.store = store
		}
	}
}

// WithRateLimitClock replaces the wall clock, letting tests drive refill.
func WithRateLimitClock(now func() time.Time) RateLimitOption {
	return func(m *RateLimitMiddleware) {
		m.now = now
	}
}

// WithRateLimitSleep replaces the pause, letting tests run without real
// delays.
func WithRateLimitSleep(sleep func(ctx context.Context, d time.Duration) error) RateLimitOption {
	return func(m *RateLimitMiddleware) {
		m.sleep = sleep
	}
}

// WithRateLimitRecorder installs a metrics recorder.
func WithRateLimitRecorder(rec Recorder) RateLimitOption {
	return func(m *RateLimitMiddleware) {
		m.rec = rec
	}
}

// NewRateLimit creates the rate-limit middleware. settings overlay the
// defaults and may be nil.
func NewRateLimit(settings map[string]any, opts ...RateLimitOption) (*RateLimitMiddleware, error) {
	m := &RateLimitMiddleware{
		cfg:   defaultRateLimitConfig(),
		store: DefaultBucketStore(),
		now:   time.Now,
		sleep: sleepContext,
		rec:   NopRecorder{},
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
func (m *RateLimitMiddleware) Name() string { return "ratelimit" }

// Configure implements Middleware.
func (m *RateLimitMiddleware) Configure(settings map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := mergeSettings(&m.cfg, settings); err != nil {
		return err
	}
	// Wait math divides by the leak rate.
	if m.cfg.LeakRate <= 0 {
		m.cfg.LeakRate = defaultRateLimitConfig().LeakRate
	}
	if m.cfg.BucketSize <= 0 {
		m.cfg.BucketSize = defaultRateLimitConfig().BucketSize
	}
	return nil
}

// Wrap implements Middleware.
func (m *RateLimitMiddleware) Wrap(next Handler) Handler {
	return func(ctx context.Context, req *http.Request, opts *Options) (*http.Response, error) {
		cfg := m.snapshot()
		lim := BucketLimits{Size: cfg.BucketSize, LeakRate: cfg.LeakRate}
		key := bucketKey(cfg, req, opts)
		bucket := m.store.Bucket(key, cfg.BucketSize)

		if wait := bucket.Wait(m.now(), lim, cfg.InitialCost, cfg.MinRemaining); wait > 0 {
			if !cfg.WaitOnLimit {
				return nil, &RateLimitError{Bucket: key, Wait: wait}
			}
			if wait > cfg.MaxWait {
				return nil, &WaitLimitError{Bucket: key, Wait: wait, Max: cfg.MaxWait}
			}
			m.rec.RateLimitWait(key, wait)
			if err := m.sleep(ctx, wait); err != nil {
				return nil, err
			}
		}

		// Reserve budget before dispatch so concurrent callers cannot all
		// see a full bucket at once. The server's own accounting replaces
		// this estimate as soon as a response reports it.
		bucket.Charge(m.now(), lim, cfg.InitialCost)

		resp, err := next(ctx, req, opts)
		if err != nil {
			bucket.Refund(cfg.InitialCost, lim)
			m.rec.BucketLevel(key, bucket.Level(m.now(), lim))
			return nil, err
		}

		if remaining, ok := headerNumber(resp.Header, HeaderRateLimitRemaining); ok {
			bucket.ObserveRemaining(remaining, lim)
		} else if actual, ok := headerNumber(resp.Header, HeaderRequestCost); ok {
			bucket.ReconcileCost(cfg.InitialCost, actual, lim)
		}
		m.rec.BucketLevel(key, bucket.Level(m.now(), lim))
		return resp, nil
	}
}

func (m *RateLimitMiddleware) snapshot() RateLimitConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// bucketKey resolves which bucket a request draws from: an explicit
// override, else host plus a credential fingerprint, else the bare host,
// else "default". Distinct server+credential pairs never share quota.
func bucketKey(cfg RateLimitConfig, req *http.Request, opts *Options) string {
	if opts != nil && opts.BucketKey != "" {
		return opts.BucketKey
	}
	if cfg.BucketKey != "" {
		return cfg.BucketKey
	}

	host := req.URL.Host
	if host == "" {
		host = req.Host
	}
	if host == "" {
		return "default"
	}
	if cred := requestCredential(req); cred != "" {
		return host + "_" + credentialFingerprint(cred)
	}
	return host
}

// requestCredential extracts the bearer token, or failing that the whole
// Authorization value, from the request.
func requestCredential(req *http.Request) string {
	auth := req.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return token
	}
	return auth
}

// credentialFingerprint tags a credential with the first 8 hex chars of its
// SHA-1, keeping buckets per-credential without holding the credential
// itself. Not used for any security purpose.
func credentialFingerprint(cred string) string {
	sum := sha1.Sum([]byte(cred))
	return hex.EncodeToString(sum[:])[:8]
}

var _ Middleware = (*RateLimitMiddleware)(nil)
