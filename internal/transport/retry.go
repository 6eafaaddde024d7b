package transport

import (
	"context"
	"errors"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"
)

// RetryConfig controls the retry middleware.
type RetryConfig struct {
	// MaxAttempts is the total attempt budget, the initial call included.
	MaxAttempts int `koanf:"max_attempts"`

	// BaseDelay is the pause before the first retry.
	BaseDelay time.Duration `koanf:"base_delay"`

	// Multiplier grows the pause per attempt.
	Multiplier float64 `koanf:"multiplier"`

	// MaxDelay caps the computed pause before jitter.
	MaxDelay time.Duration `koanf:"max_delay"`

	// Jitter adds a random 0-25% on top of the computed pause.
	Jitter bool `koanf:"jitter"`

	// RetryOnTimeout retries connection and timeout errors.
	RetryOnTimeout bool `koanf:"retry_on_timeout"`

	// RetryOnStatus lists response statuses worth another attempt. A 403 in
	// the set is only retried when it is a Canvas throttle rejection; a
	// genuine authorization failure surfaces immediately.
	RetryOnStatus []int `koanf:"retry_on_status"`
}

func defaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		BaseDelay:      time.Second,
		Multiplier:     2,
		MaxDelay:       16 * time.Second,
		Jitter:         true,
		RetryOnTimeout: true,
		RetryOnStatus:  []int{500, 502, 503, 504, 403},
	}
}

// RetryMiddleware transparently retries transient failures with exponential
// backoff. It sits inside the rate limiter, so one logical call is charged
// once no matter how many attempts it takes.
type RetryMiddleware struct {
	mu    sync.RWMutex
	cfg   RetryConfig
	sleep func(ctx context.Context, d time.Duration) error
	rec   Recorder
}

// RetryOption customizes a RetryMiddleware.
type RetryOption func(*RetryMiddleware)

// WithRetrySleep replaces the backoff sleep, letting tests run without
// real delays.
func WithRetrySleep(sleep func(ctx context.Context, d time.Duration) error) RetryOption {
	return func(m *RetryMiddleware) {
		m.sleep = sleep
	}
}

// WithRetryRecorder installs a metrics recorder.
func WithRetryRecorder(rec Recorder) RetryOption {
	return func(m *RetryMiddleware) {
		m.rec = rec
	}
}

// NewRetry creates the retry middleware. settings overlay the defaults and
// may be nil.
func NewRetry(settings map[string]any, opts ...RetryOption) (*RetryMiddleware, error) {
	m := &RetryMiddleware{
		cfg:   defaultRetryConfig(),
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
func (m *RetryMiddleware) Name() string { return "retry" }

// Configure implements Middleware.
func (m *RetryMiddleware) Configure(settings map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := mergeSettings(&m.cfg, settings); err != nil {
		return err
	}
	if m.cfg.MaxAttempts < 1 {
		m.cfg.MaxAttempts = 1
	}
	if m.cfg.Multiplier < 1 {
		m.cfg.Multiplier = 1
	}
	return nil
}

// Wrap implements Middleware.
func (m *RetryMiddleware) Wrap(next Handler) Handler {
	return func(ctx context.Context, req *http.Request, opts *Options) (*http.Response, error) {
		cfg := m.snapshot()
		if opts != nil && opts.NoRetry {
			return next(ctx, req, opts)
		}

		var (
			resp *http.Response
			err  error
		)
		for attempt := 1; ; attempt++ {
			resp, err = next(ctx, req, opts)

			reason, retry := shouldRetry(cfg, resp, err)
			if !retry {
				return resp, err
			}
			if attempt >= cfg.MaxAttempts {
				if resp != nil {
					return resp, err
				}
				return nil, &RetryExhaustedError{Attempts: attempt, Err: err}
			}
			if !rewindBody(req) {
				// A consumed one-shot body cannot be replayed.
				return resp, err
			}
			if resp != nil {
				drainBody(resp)
			}

			m.rec.RetryScheduled(reason)
			if opts != nil {
				opts.Attempt = attempt
			}
			if serr := m.sleep(ctx, backoffDelay(cfg, attempt)); serr != nil {
				return nil, serr
			}
		}
	}
}

func (m *RetryMiddleware) snapshot() RetryConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := m.cfg
	cfg.RetryOnStatus = slices.Clone(cfg.RetryOnStatus)
	return cfg
}

// shouldRetry decides whether the attempt outcome warrants another try and
// names the reason for metrics.
func shouldRetry(cfg RetryConfig, resp *http.Response, err error) (string, bool) {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", false
		}
		if cfg.RetryOnTimeout && isTimeoutErr(err) {
			return "timeout", true
		}
		return "", false
	}
	if resp == nil {
		return "", false
	}
	for _, status := range cfg.RetryOnStatus {
		if resp.StatusCode != status {
			continue
		}
		if status == http.StatusForbidden {
			if IsThrottleResponse(resp) {
				return "throttled", true
			}
			return "", false
		}
		return "status_" + strconv.Itoa(status), true
	}
	return "", false
}

// isTimeoutErr reports whether err is a connection or timeout failure, as
// opposed to a protocol-level one.
func isTimeoutErr(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var oe *net.OpError
	return errors.As(err, &oe)
}

// backoffDelay computes the pause before retry number attempt:
// min(base * multiplier^(attempt-1), max), plus jitter when enabled.
func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	d := time.Duration(float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt-1)))
	if d > cfg.MaxDelay || d <= 0 {
		d = cfg.MaxDelay
	}
	if cfg.Jitter {
		d += time.Duration(rand.Float64() * 0.25 * float64(d))
	}
	return d
}

// rewindBody restores req.Body for another attempt. Requests without bodies
// always rewind; one-shot bodies without GetBody cannot be replayed.
func rewindBody(req *http.Request) bool {
	if req.Body == nil || req.Body == http.NoBody {
		return true
	}
	if req.GetBody == nil {
		return false
	}
	body, err := req.GetBody()
	if err != nil {
		return false
	}
	req.Body = body
	return true
}

// drainBody discards and closes a response body so the underlying
// connection can be reused by the next attempt.
func drainBody(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 32<<10))
	_ = resp.Body.Close()
}

// sleepContext pauses for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ Middleware = (*RetryMiddleware)(nil)
