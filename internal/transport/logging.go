package transport

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LoggingConfig controls the logging middleware.
type LoggingConfig struct {
	Enabled bool `koanf:"enabled"`

	// LogBodies includes request bodies in request records. Response
	// bodies are only ever logged for error responses.
	LogBodies bool `koanf:"log_bodies"`

	// MaxBodyLog truncates logged bodies to this many bytes.
	MaxBodyLog int `koanf:"max_body_log"`

	// SensitiveKeys are name substrings whose values are masked in
	// headers, bodies, and query strings.
	SensitiveKeys []string `koanf:"sensitive_keys"`
}

func defaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Enabled:       true,
		LogBodies:     true,
		MaxBodyLog:    2048,
		SensitiveKeys: []string{"password", "token", "api_key", "secret", "authorization"},
	}
}

// correlationKey identifies the per-request correlation id in a context.
type correlationKey struct{}

// WithCorrelationID returns ctx tagged with a correlation id. The logging
// middleware reuses a present id instead of generating one, so callers can
// correlate SDK records with their own.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the correlation id in ctx, or empty.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey{}).(string); ok {
		return id
	}
	return ""
}

// LoggingMiddleware emits structured, redacted request and response
// records. It sits innermost, so every physical attempt of a retried call
// produces its own pair of records, correlated by id and attempt number.
// It never alters control flow.
type LoggingMiddleware struct {
	mu     sync.RWMutex
	cfg    LoggingConfig
	red    *Redactor
	logger *slog.Logger
}

// NewLogging creates the logging middleware. A nil logger falls back to
// slog.Default; settings overlay the defaults and may be nil.
func NewLogging(logger *slog.Logger, settings map[string]any) (*LoggingMiddleware, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := &LoggingMiddleware{
		cfg:    defaultLoggingConfig(),
		logger: logger,
	}
	if err := m.Configure(settings); err != nil {
		return nil, err
	}
	return m, nil
}

// Name implements Middleware.
func (m *LoggingMiddleware) Name() string { return "logging" }

// Configure implements Middleware.
func (m *LoggingMiddleware) Configure(settings map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := mergeSettings(&m.cfg, settings); err != nil {
		return err
	}
	m.red = NewRedactor(m.cfg.SensitiveKeys)
	return nil
}

// Wrap implements Middleware.
func (m *LoggingMiddleware) Wrap(next Handler) Handler {
	return func(ctx context.Context, req *http.Request, opts *Options) (*http.Response, error) {
		cfg, red := m.snapshot()
		if !cfg.Enabled {
			return next(ctx, req, opts)
		}

		id := CorrelationID(ctx)
		if id == "" {
			id = uuid.NewString()
			ctx = WithCorrelationID(ctx, id)
		}
		start := time.Now()

		reqAttrs := []slog.Attr{
			slog.String("correlation_id", id),
			slog.String("method", req.Method),
			slog.String("url", red.URL(req.URL)),
			slog.Any("headers", red.Headers(req.Header)),
		}
		if opts != nil {
			if opts.Attempt > 0 {
				reqAttrs = append(reqAttrs, slog.Int("attempt", opts.Attempt))
			}
			for k, v := range opts.LogFields {
				reqAttrs = append(reqAttrs, slog.String(k, v))
			}
		}
		if cfg.LogBodies {
			if body := peekRequestBody(req, cfg.MaxBodyLog); len(body) > 0 {
				reqAttrs = append(reqAttrs, slog.String("body", red.Body(body)))
			}
		}
		m.logger.LogAttrs(ctx, slog.LevelInfo, "canvas request", reqAttrs...)

		resp, err := next(ctx, req, opts)
		elapsed := time.Since(start)

		if err != nil {
			m.logger.LogAttrs(ctx, slog.LevelError, "canvas request failed",
				slog.String("correlation_id", id),
				slog.String("method", req.Method),
				slog.String("url", red.URL(req.URL)),
				slog.String("error", err.Error()),
				slog.Duration("elapsed", elapsed))
			return nil, err
		}

		attrs := []slog.Attr{
			slog.String("correlation_id", id),
			slog.String("method", req.Method),
			slog.String("url", red.URL(req.URL)),
			slog.String("status", resp.Status),
			slog.Duration("elapsed", elapsed),
		}
		if v := resp.Header.Get(HeaderRateLimitRemaining); v != "" {
			attrs = append(attrs, slog.String("rate_limit_remaining", v))
		}
		if v := resp.Header.Get(HeaderRequestCost); v != "" {
			attrs = append(attrs, slog.String("request_cost", v))
		}

		level := slog.LevelInfo
		if resp.StatusCode >= 400 {
			level = slog.LevelError
			if body, perr := peekBody(resp, cfg.MaxBodyLog); perr == nil && len(body) > 0 {
				attrs = append(attrs, slog.String("body", red.Body(body)))
			}
		}
		m.logger.LogAttrs(ctx, level, "canvas response", attrs...)
		return resp, nil
	}
}

func (m *LoggingMiddleware) snapshot() (LoggingConfig, *Redactor) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg, m.red
}

// peekRequestBody returns up to limit bytes of the request body without
// consuming it: replayable bodies are re-materialized through GetBody,
// one-shot bodies are spliced back together after the read.
func peekRequestBody(req *http.Request, limit int) []byte {
	if req.Body == nil || req.Body == http.NoBody || limit <= 0 {
		return nil
	}
	if req.GetBody != nil {
		rc, err := req.GetBody()
		if err != nil {
			return nil
		}
		defer rc.Close()
		body, err := io.ReadAll(io.LimitReader(rc, int64(limit)))
		if err != nil {
			return nil
		}
		return body
	}

	buf := make([]byte, limit)
	read, err := io.ReadFull(req.Body, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil
	}
	req.Body = &splicedBody{
		Reader: io.MultiReader(bytes.NewReader(buf[:read]), req.Body),
		closer: req.Body,
	}
	return buf[:read]
}

var _ Middleware = (*LoggingMiddleware)(nil)
