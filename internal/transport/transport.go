// Package transport implements the client-side middleware pipeline every
// Canvas API request passes through: token refresh, rate limiting, caching,
// retry, and logging composed around a terminal http.RoundTripper.
package transport

import (
	"context"
	"fmt"
	"net/http"
)

// Handler executes a single HTTP request and returns its response.
// Middleware wrap handlers around each other to form the request pipeline.
type Handler func(ctx context.Context, req *http.Request, opts *Options) (*http.Response, error)

// Middleware is implemented by every pipeline stage.
type Middleware interface {
	// Name returns a stable identifier used for diagnostics and for routing
	// configuration to the right stage. Never empty.
	Name() string

	// Configure merges the given settings over the middleware's current
	// configuration. Later calls override only the keys they supply, and
	// keys no setting consumes are ignored rather than rejected.
	Configure(settings map[string]any) error

	// Wrap returns a handler that applies this middleware around next.
	Wrap(next Handler) Handler
}

// Options carries per-request overrides through the pipeline. One Options
// value accompanies a single logical request, including every retried
// attempt of it.
type Options struct {
	// NoCache bypasses the cache read and write path for this request.
	NoCache bool

	// CacheRefresh skips the cache read but stores the fresh response,
	// forcing revalidation of the cached entry.
	CacheRefresh bool

	// NoRetry limits this request to a single attempt.
	NoRetry bool

	// BucketKey overrides rate-limit bucket selection for this request.
	BucketKey string

	// Attempt is the retry attempt number, zero for the initial call.
	// The retry middleware increments it; other stages treat it as
	// read-only.
	Attempt int

	// LogFields are extra attributes attached to this request's log
	// records.
	LogFields map[string]string
}

// Chain is an ordered middleware list composed around a terminal transport.
// The first middleware registered is the outermost at execution time, so a
// stage early in the chain wraps the whole remainder, retries included.
type Chain struct {
	stages    []Middleware
	transport http.RoundTripper
}

// NewChain creates a chain that terminates at rt. A nil rt falls back to
// http.DefaultTransport.
func NewChain(rt http.RoundTripper, stages ...Middleware) *Chain {
	if rt == nil {
		rt = http.DefaultTransport
	}
	return &Chain{stages: stages, transport: rt}
}

// Use appends a middleware to the chain.
func (c *Chain) Use(m Middleware) {
	c.stages = append(c.stages, m)
}

// Get returns the middleware registered under name.
func (c *Chain) Get(name string) (Middleware, bool) {
	for _, m := range c.stages {
		if m.Name() == name {
			return m, true
		}
	}
	return nil, false
}

// Configure routes settings to the middleware registered under name.
func (c *Chain) Configure(name string, settings map[string]any) error {
	m, ok := c.Get(name)
	if !ok {
		return fmt.Errorf("no middleware named %q", name)
	}
	if err := m.Configure(settings); err != nil {
		return fmt.Errorf("configure %s: %w", name, err)
	}
	return nil
}

// Handler composes the chain into a single handler. Each call builds a fresh
// composition, so reconfiguring the chain's stages affects subsequent
// compositions but never a handler already in flight.
func (c *Chain) Handler() Handler {
	h := terminal(c.transport)
	for i := len(c.stages) - 1; i >= 0; i-- {
		h = c.stages[i].Wrap(h)
	}
	return h
}

// terminal executes the request on the underlying round tripper.
func terminal(rt http.RoundTripper) Handler {
	return func(ctx context.Context, req *http.Request, _ *Options) (*http.Response, error) {
		resp, err := rt.RoundTrip(req.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("round trip: %w", err)
		}
		return resp, nil
	}
}
