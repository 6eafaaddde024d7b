// Package client is the Canvas LMS API client. Every request runs through
// the transport middleware pipeline: token refresh, rate limiting, caching,
// retry, and logging around a terminal round tripper. Resource services
// expose the REST surface as typed operations on top of it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/lmskit/canvas-go/internal/auth"
	"github.com/lmskit/canvas-go/internal/cachestore"
	"github.com/lmskit/canvas-go/internal/cachestore/memory"
	"github.com/lmskit/canvas-go/internal/transport"
)

// Version is the client release version, sent in the User-Agent header.
const Version = "0.1.0"

const (
	apiPrefix        = "/api/v1"
	defaultTimeout   = 2 * time.Minute
	defaultUserAgent = "canvas-go/" + Version
)

// Client talks to one Canvas instance.
type Client struct {
	baseURL   *url.URL
	userAgent string
	timeout   time.Duration
	logger    *slog.Logger

	rt          http.RoundTripper
	apiToken    string
	oauthCfg    *auth.OAuthConfig
	tokenSource transport.TokenSource
	cacheStore  cachestore.Store
	bucketStore transport.BucketStore
	registerer  prometheus.Registerer
	tracer      trace.TracerProvider
	mwConfig    map[string]map[string]any
	skip        map[string]bool

	chain   *transport.Chain
	handler transport.Handler

	Accounts    *AccountsService
	Terms       *TermsService
	Courses     *CoursesService
	Users       *UsersService
	Enrollments *EnrollmentsService
	Assignments *AssignmentsService
	Submissions *SubmissionsService
	Modules     *ModulesService
	Pages       *PagesService
	Sections    *SectionsService
}

// Option configures a Client.
type Option func(*Client)

// WithAPIToken authenticates with a manually-issued Canvas API token.
func WithAPIToken(token string) Option {
	return func(c *Client) {
		c.apiToken = token
	}
}

// WithOAuth authenticates with a refreshable OAuth2 token. AuthBaseURL
// defaults to the client's base URL.
func WithOAuth(cfg auth.OAuthConfig) Option {
	return func(c *Client) {
		c.oauthCfg = &cfg
	}
}

// WithTokenSource installs a custom token source, replacing the ones
// WithAPIToken and WithOAuth would build.
func WithTokenSource(source transport.TokenSource) Option {
	return func(c *Client) {
		c.tokenSource = source
	}
}

// WithHTTPClient adopts hc's transport as the terminal round tripper and
// its timeout, when set, as the per-request timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc == nil {
			return
		}
		c.rt = hc.Transport
		if hc.Timeout > 0 {
			c.timeout = hc.Timeout
		}
	}
}

// WithTransport sets the terminal round tripper the pipeline ends at.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.rt = rt
	}
}

// WithLogger sets the logger used by the client and its pipeline stages.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCacheStore replaces the default in-memory response cache backend.
func WithCacheStore(store cachestore.Store) Option {
	return func(c *Client) {
		c.cacheStore = store
	}
}

// WithBucketStore replaces the process-wide rate-limit bucket store,
// isolating this client's accounting.
func WithBucketStore(store transport.BucketStore) Option {
	return func(c *Client) {
		c.bucketStore = store
	}
}

// WithMiddlewareConfig overlays settings on the named pipeline stage.
// Later options for the same stage override only the keys they supply.
func WithMiddlewareConfig(name string, settings map[string]any) Option {
	return func(c *Client) {
		merged, ok := c.mwConfig[name]
		if !ok {
			merged = make(map[string]any, len(settings))
			c.mwConfig[name] = merged
		}
		for k, v := range settings {
			merged[k] = v
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithTimeout bounds each logical request, retries and waits included.
// Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithMetrics registers pipeline metrics on reg and wires every stage to
// record through them.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) {
		c.registerer = reg
	}
}

// WithTracing wraps the terminal transport in an OpenTelemetry HTTP span
// per physical attempt.
func WithTracing(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracer = tp
	}
}

// WithoutMiddleware leaves the named stage out of the pipeline. Intended
// for tests that isolate a single stage's behavior.
func WithoutMiddleware(name string) Option {
	return func(c *Client) {
		c.skip[name] = true
	}
}

// New creates a client for the Canvas instance at baseURL, for example
// "https://school.instructure.com".
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("base URL is required")
	}
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base URL %q needs a scheme and host", baseURL)
	}

	c := &Client{
		baseURL:   u,
		userAgent: defaultUserAgent,
		timeout:   defaultTimeout,
		logger:    slog.Default(),
		mwConfig:  make(map[string]map[string]any),
		skip:      make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.apiToken != "" && c.oauthCfg != nil {
		return nil, errors.New("configure an API token or OAuth, not both")
	}
	if c.tokenSource == nil {
		switch {
		case c.apiToken != "":
			c.tokenSource = auth.NewStaticToken(c.apiToken)
		case c.oauthCfg != nil:
			cfg := *c.oauthCfg
			if cfg.AuthBaseURL == "" {
				cfg.AuthBaseURL = u.Scheme + "://" + u.Host
			}
			source, err := auth.NewOAuthTokenSource(cfg)
			if err != nil {
				return nil, err
			}
			c.tokenSource = source
		}
	}

	if err := c.buildChain(); err != nil {
		return nil, err
	}

	c.Accounts = &AccountsService{client: c}
	c.Terms = &TermsService{client: c}
	c.Courses = &CoursesService{client: c}
	c.Users = &UsersService{client: c}
	c.Enrollments = &EnrollmentsService{client: c}
	c.Assignments = &AssignmentsService{client: c}
	c.Submissions = &SubmissionsService{client: c}
	c.Modules = &ModulesService{client: c}
	c.Pages = &PagesService{client: c}
	c.Sections = &SectionsService{client: c}
	return c, nil
}

// buildChain assembles the pipeline. Order is fixed: token refresh
// outermost so a replayed 401 re-enters the full pipeline; the rate
// limiter outside retry so one logical call is charged once; the cache
// outside retry so a hit skips everything below; logging innermost so
// every physical attempt gets its own records.
func (c *Client) buildChain() error {
	rt := c.rt
	if rt == nil {
		rt = http.DefaultTransport
	}
	if c.tracer != nil {
		rt = otelhttp.NewTransport(rt, otelhttp.WithTracerProvider(c.tracer))
	}

	var rec transport.Recorder = transport.NopRecorder{}
	var metrics *transport.Metrics
	if c.registerer != nil {
		metrics = transport.NewMetrics(c.registerer)
		rec = metrics
	}

	if c.bucketStore == nil {
		c.bucketStore = transport.DefaultBucketStore()
	}

	chain := transport.NewChain(rt)

	if !c.skip["oauth_refresh"] {
		m, err := transport.NewOAuthRefresh(c.tokenSource, c.mwConfig["oauth_refresh"],
			transport.WithOAuthLogger(c.logger))
		if err != nil {
			return err
		}
		chain.Use(m)
	}
	if !c.skip["ratelimit"] {
		m, err := transport.NewRateLimit(c.mwConfig["ratelimit"],
			transport.WithBucketStore(c.bucketStore),
			transport.WithRateLimitRecorder(rec))
		if err != nil {
			return err
		}
		chain.Use(m)
	}
	if !c.skip["cache"] {
		if c.cacheStore == nil {
			c.cacheStore = memory.New(memory.DefaultSize)
		}
		m, err := transport.NewCache(c.cacheStore, c.mwConfig["cache"],
			transport.WithCacheLogger(c.logger),
			transport.WithCacheRecorder(rec))
		if err != nil {
			return err
		}
		chain.Use(m)
	}
	if !c.skip["retry"] {
		m, err := transport.NewRetry(c.mwConfig["retry"],
			transport.WithRetryRecorder(rec))
		if err != nil {
			return err
		}
		chain.Use(m)
	}
	if !c.skip["logging"] {
		m, err := transport.NewLogging(c.logger, c.mwConfig["logging"])
		if err != nil {
			return err
		}
		chain.Use(m)
	}
	if metrics != nil && !c.skip["metrics"] {
		chain.Use(transport.NewMetricsMiddleware(metrics))
	}

	for name := range c.mwConfig {
		if _, ok := chain.Get(name); !ok && !c.skip[name] {
			return fmt.Errorf("configuration for unknown middleware %q", name)
		}
	}

	c.chain = chain
	c.handler = chain.Handler()
	return nil
}

// Configure overlays settings on the named pipeline stage at runtime.
// In-flight requests finish under their current configuration.
func (c *Client) Configure(name string, settings map[string]any) error {
	if err := c.chain.Configure(name, settings); err != nil {
		return err
	}
	c.handler = c.chain.Handler()
	return nil
}

// CacheStore returns the response cache backend, nil when the cache stage
// is disabled.
func (c *Client) CacheStore() cachestore.Store {
	if c.skip["cache"] {
		return nil
	}
	return c.cacheStore
}

// BucketStore returns the rate-limit bucket store this client accounts
// in.
func (c *Client) BucketStore() transport.BucketStore {
	return c.bucketStore
}

// BaseURL returns the configured Canvas instance URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// requestSettings accumulates per-request options.
type requestSettings struct {
	topts transport.Options
}

// RequestOption adjusts how a single request moves through the pipeline.
type RequestOption func(*requestSettings)

// WithNoCache bypasses the response cache for this request.
func WithNoCache() RequestOption {
	return func(s *requestSettings) {
		s.topts.NoCache = true
	}
}

// WithCacheRefresh fetches fresh and overwrites the cached entry.
func WithCacheRefresh() RequestOption {
	return func(s *requestSettings) {
		s.topts.CacheRefresh = true
	}
}

// WithNoRetry limits this request to a single attempt.
func WithNoRetry() RequestOption {
	return func(s *requestSettings) {
		s.topts.NoRetry = true
	}
}

// WithBucketKey pins this request to a specific rate-limit bucket.
func WithBucketKey(key string) RequestOption {
	return func(s *requestSettings) {
		s.topts.BucketKey = key
	}
}

// WithLogField attaches an extra attribute to this request's log records.
func WithLogField(key, value string) RequestOption {
	return func(s *requestSettings) {
		if s.topts.LogFields == nil {
			s.topts.LogFields = make(map[string]string)
		}
		s.topts.LogFields[key] = value
	}
}

// Request describes one API call for Do.
type Request struct {
	// Method is the HTTP method.
	Method string

	// Path is resolved under /api/v1 unless it begins with a slash, in
	// which case it is taken as absolute on the instance.
	Path string

	// Query is appended to the URL.
	Query url.Values

	// Body is JSON-encoded when non-nil.
	Body any

	// Header entries are added to the outgoing request.
	Header http.Header
}

// Do executes r through the pipeline and returns the raw response. A
// status of 400 or higher is decoded into an *APIError instead. Redirects
// are not followed. The caller owns the response body.
func (c *Client) Do(ctx context.Context, r *Request, opts ...RequestOption) (*http.Response, error) {
	var settings requestSettings
	for _, opt := range opts {
		opt(&settings)
	}

	// Parsing the endpoint keeps caller-escaped segments (a page slug with
	// an encoded slash, say) escaped on the wire.
	ref, err := url.Parse(c.endpoint(r.Path))
	if err != nil {
		return nil, fmt.Errorf("resolve path %q: %w", r.Path, err)
	}
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + ref.Path
	if ref.RawPath != "" {
		u.RawPath = strings.TrimSuffix(c.baseURL.EscapedPath(), "/") + ref.EscapedPath()
	}
	if len(r.Query) > 0 {
		u.RawQuery = r.Query.Encode()
	}

	var payload io.Reader
	if r.Body != nil {
		encoded, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		payload = bytes.NewReader(encoded)
	}

	var cancel context.CancelFunc
	if c.timeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
		}
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, u.String(), payload)
	if err != nil {
		if cancel != nil {
			cancel()
		}
		return nil, fmt.Errorf("create request: %w", err)
	}
	if r.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	for name, vals := range r.Header {
		for _, v := range vals {
			req.Header.Add(name, v)
		}
	}

	resp, err := c.handler(ctx, req, &settings.topts)
	if err != nil {
		if cancel != nil {
			cancel()
		}
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := decodeAPIError(resp)
		resp.Body.Close()
		if cancel != nil {
			cancel()
		}
		return nil, apiErr
	}
	if cancel != nil {
		// The deadline must survive until the caller finishes the body.
		resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	}
	return resp, nil
}

func (c *Client) endpoint(path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	return apiPrefix + "/" + path
}

// Get performs a GET and decodes the response into out when non-nil.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any, opts ...RequestOption) error {
	return c.do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query}, out, opts...)
}

// Post performs a POST with a JSON body and decodes the response into out
// when non-nil.
func (c *Client) Post(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body}, out, opts...)
}

// Put performs a PUT with a JSON body and decodes the response into out
// when non-nil.
func (c *Client) Put(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body}, out, opts...)
}

// Delete performs a DELETE and decodes the response into out when
// non-nil.
func (c *Client) Delete(ctx context.Context, path string, query url.Values, out any, opts ...RequestOption) error {
	return c.do(ctx, &Request{Method: http.MethodDelete, Path: path, Query: query}, out, opts...)
}

func (c *Client) do(ctx context.Context, r *Request, out any, opts ...RequestOption) error {
	resp, err := c.Do(ctx, r, opts...)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// cancelBody releases the request's deadline when the body is closed.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
