package transport

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// TokenSource supplies and rotates the bearer token the pipeline sends.
// Implementations must be safe for concurrent use; Refresh may coalesce
// overlapping calls into a single rotation.
type TokenSource interface {
	// Token returns the current access token.
	Token(ctx context.Context) (string, error)

	// Expired reports whether the current token is at or past its known
	// lifetime, judged with the given leeway.
	Expired(leeway time.Duration) bool

	// Refresh rotates the token and returns the new one.
	Refresh(ctx context.Context) (string, error)
}

// OAuthRefreshConfig controls the token-refresh middleware.
type OAuthRefreshConfig struct {
	// AutoRefresh rotates a locally-expired token before dispatch.
	AutoRefresh bool `koanf:"auto_refresh"`

	// RetryOn401 rotates the token and replays the request once after an
	// unauthorized response.
	RetryOn401 bool `koanf:"retry_on_401"`

	// ExpiryLeeway treats tokens expiring within this window as already
	// expired.
	ExpiryLeeway time.Duration `koanf:"expiry_leeway"`
}

func defaultOAuthRefreshConfig() OAuthRefreshConfig {
	return OAuthRefreshConfig{
		AutoRefresh:  true,
		RetryOn401:   true,
		ExpiryLeeway: time.Minute,
	}
}

// OAuthRefreshMiddleware keeps bearer tokens fresh without surfacing
// recoverable auth failures. With no token source it passes every request
// through untouched, which is how API-token clients run.
//
// Two triggers: proactively, a token known to be expired is rotated before
// dispatch, and a failure there is swallowed so the server can adjudicate
// the stale token. Reactively, a 401 causes at most one rotate-and-replay;
// if the rotation fails, the original 401 surfaces unchanged.
type OAuthRefreshMiddleware struct {
	mu     sync.RWMutex
	cfg    OAuthRefreshConfig
	source TokenSource
	logger *slog.Logger
}

// OAuthOption customizes an OAuthRefreshMiddleware.
type OAuthOption func(*OAuthRefreshMiddleware)

// WithOAuthLogger sets the logger for refresh diagnostics.
func WithOAuthLogger(logger *slog.Logger) OAuthOption {
	return func(m *OAuthRefreshMiddleware) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewOAuthRefresh creates the token-refresh middleware. source may be nil
// for clients that authenticate with a fixed token; settings overlay the
// defaults and may be nil.
func NewOAuthRefresh(source TokenSource, settings map[string]any, opts ...OAuthOption) (*OAuthRefreshMiddleware, error) {
	m := &OAuthRefreshMiddleware{
		cfg:    defaultOAuthRefreshConfig(),
		source: source,
		logger: slog.Default(),
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
func (m *OAuthRefreshMiddleware) Name() string { return "oauth_refresh" }

// Configure implements Middleware.
func (m *OAuthRefreshMiddleware) Configure(settings map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return mergeSettings(&m.cfg, settings)
}

// Wrap implements Middleware.
func (m *OAuthRefreshMiddleware) Wrap(next Handler) Handler {
	return func(ctx context.Context, req *http.Request, opts *Options) (*http.Response, error) {
		if m.source == nil {
			return next(ctx, req, opts)
		}
		cfg := m.snapshot()

		if cfg.AutoRefresh && m.source.Expired(cfg.ExpiryLeeway) {
			// Best effort: on failure the stale token goes out anyway and
			// the reactive path below picks up the pieces.
			if token, err := m.source.Refresh(ctx); err == nil {
				setBearer(req, token)
			} else {
				m.logger.Debug("proactive token refresh failed",
					slog.String("error", err.Error()))
			}
		}
		if req.Header.Get("Authorization") == "" {
			if token, err := m.source.Token(ctx); err == nil && token != "" {
				setBearer(req, token)
			}
		}

		resp, err := next(ctx, req, opts)
		if err != nil || resp.StatusCode != http.StatusUnauthorized || !cfg.RetryOn401 {
			return resp, err
		}

		token, rerr := m.source.Refresh(ctx)
		if rerr != nil {
			// The original 401 is the caller's signal, not the refresh
			// failure.
			m.logger.Warn("token refresh after 401 failed",
				slog.String("error", rerr.Error()))
			return resp, nil
		}
		if !rewindBody(req) {
			return resp, nil
		}
		drainBody(resp)
		setBearer(req, token)
		return next(ctx, req, opts)
	}
}

func (m *OAuthRefreshMiddleware) snapshot() OAuthRefreshConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func setBearer(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
}

var _ Middleware = (*OAuthRefreshMiddleware)(nil)
