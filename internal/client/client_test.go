package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lmskit/canvas-go/internal/auth"
	"github.com/lmskit/canvas-go/internal/canvastest"
	"github.com/lmskit/canvas-go/internal/transport"
)

// ============================================================================
// Construction Tests
// ============================================================================

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		opts    []Option
		wantErr string
	}{
		{
			name:    "empty base URL",
			baseURL: "",
			wantErr: "base URL is required",
		},
		{
			name:    "missing scheme",
			baseURL: "school.instructure.com",
			wantErr: "scheme and host",
		},
		{
			name:    "token and oauth together",
			baseURL: "https://canvas.test",
			opts: []Option{
				WithAPIToken("tok"),
				WithOAuth(auth.OAuthConfig{ClientID: "c", ClientSecret: "s", RefreshToken: "r"}),
			},
			wantErr: "not both",
		},
		{
			name:    "incomplete oauth config",
			baseURL: "https://canvas.test",
			opts:    []Option{WithOAuth(auth.OAuthConfig{ClientID: "c"})},
			wantErr: "secret",
		},
		{
			name:    "unknown middleware name",
			baseURL: "https://canvas.test",
			opts:    []Option{WithMiddlewareConfig("flux", map[string]any{"x": 1})},
			wantErr: `unknown middleware "flux"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.baseURL, tt.opts...)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("New() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestNew_NormalizesBaseURL(t *testing.T) {
	c, err := New("https://canvas.test/", WithLogger(quiet()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := c.BaseURL(); got != "https://canvas.test" {
		t.Errorf("BaseURL() = %q, want trailing slash dropped", got)
	}
}

// ============================================================================
// Pipeline Integration Tests
// ============================================================================

func TestClient_FetchesCourseThroughPipeline(t *testing.T) {
	srv := canvastest.New(canvastest.WithAPIToken("tok-1"))
	defer srv.Close()
	c := newFakeClient(t, srv, WithAPIToken("tok-1"))

	course, err := c.Courses.Get(context.Background(), 101)
	if err != nil {
		t.Fatalf("Courses.Get() error = %v", err)
	}
	if course.ID != 101 || course.Name != "Biology" || course.CourseCode != "BIO-101" {
		t.Errorf("course = %+v, want seeded Biology fixture", course)
	}
}

func TestClient_NotFoundMapsToAPIError(t *testing.T) {
	srv := canvastest.New()
	defer srv.Close()
	c := newFakeClient(t, srv)

	_, err := c.Courses.Get(context.Background(), 999)
	if !IsNotFound(err) {
		t.Fatalf("Courses.Get(999) error = %v, want not-found", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error is %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", apiErr.StatusCode)
	}
	if len(apiErr.Messages) == 0 || !strings.Contains(apiErr.Messages[0], "does not exist") {
		t.Errorf("Messages = %v, want the Canvas not-found message", apiErr.Messages)
	}
}

func TestClient_RepeatReadsServedFromCache(t *testing.T) {
	srv := canvastest.New()
	defer srv.Close()
	c := newFakeClient(t, srv)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := c.Courses.Get(ctx, 101); err != nil {
			t.Fatalf("Courses.Get() #%d error = %v", i, err)
		}
	}
	if got := srv.Requests(); got != 1 {
		t.Fatalf("origin requests after repeat read = %d, want 1", got)
	}

	var out Course
	if err := c.Get(ctx, "courses/101", nil, &out, WithNoCache()); err != nil {
		t.Fatalf("Get() with no-cache error = %v", err)
	}
	if got := srv.Requests(); got != 2 {
		t.Errorf("origin requests after no-cache read = %d, want 2", got)
	}
}

func TestClient_MutationInvalidatesCachedCourse(t *testing.T) {
	srv := canvastest.New()
	defer srv.Close()
	c := newFakeClient(t, srv)
	ctx := context.Background()

	if _, err := c.Courses.Get(ctx, 101); err != nil {
		t.Fatalf("Courses.Get() error = %v", err)
	}
	if _, err := c.Courses.Update(ctx, 101, &CourseParams{Name: "Molecular Biology"}); err != nil {
		t.Fatalf("Courses.Update() error = %v", err)
	}

	course, err := c.Courses.Get(ctx, 101)
	if err != nil {
		t.Fatalf("Courses.Get() after update error = %v", err)
	}
	if course.Name != "Molecular Biology" {
		t.Errorf("Name after update = %q, want the fresh value, not the cached one", course.Name)
	}
	if got := srv.Requests(); got != 3 {
		t.Errorf("origin requests = %d, want 3 (get, put, refetch)", got)
	}
}

func TestClient_RetriesUntilSuccess(t *testing.T) {
	srv := canvastest.New()
	defer srv.Close()
	c := newFakeClient(t, srv)
	srv.FailNext(2, http.StatusInternalServerError)

	if _, err := c.Courses.List(context.Background(), nil); err != nil {
		t.Fatalf("Courses.List() error = %v, want success after retries", err)
	}
	if got := srv.Requests(); got != 3 {
		t.Errorf("origin requests = %d, want 3 attempts", got)
	}
}

func TestClient_ThrottledRequestRetried(t *testing.T) {
	srv := canvastest.New()
	defer srv.Close()
	c := newFakeClient(t, srv)
	srv.ThrottleNext(1)

	if _, err := c.Courses.List(context.Background(), nil); err != nil {
		t.Fatalf("Courses.List() error = %v, want success after throttle retry", err)
	}
	if got := srv.Requests(); got != 2 {
		t.Errorf("origin requests = %d, want 2", got)
	}
}

func TestClient_NoRetryBoundsAttempts(t *testing.T) {
	srv := canvastest.New()
	defer srv.Close()
	c := newFakeClient(t, srv)
	srv.FailNext(1, http.StatusInternalServerError)

	err := c.Get(context.Background(), "courses", nil, nil, WithNoRetry())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("Get() error = %v, want the 500 surfaced", err)
	}
	if apiErr.ReportID != 9000 {
		t.Errorf("ReportID = %d, want 9000 from the error body", apiErr.ReportID)
	}
	if got := srv.Requests(); got != 1 {
		t.Errorf("origin requests = %d, want a single attempt", got)
	}
}

func TestClient_OAuthRotatesAndReplays(t *testing.T) {
	srv := canvastest.New(canvastest.WithOAuthApp("dev-key-1", "dk-secret", "refresh-xyz"))
	defer srv.Close()
	c := newFakeClient(t, srv, WithOAuth(auth.OAuthConfig{
		ClientID:     "dev-key-1",
		ClientSecret: "dk-secret",
		RefreshToken: "refresh-xyz",
	}))
	ctx := context.Background()

	// No seed token, so the first call rotates proactively.
	user, err := c.Users.Get(ctx, 7)
	if err != nil {
		t.Fatalf("Users.Get() error = %v", err)
	}
	if user.Name != "Ada School" {
		t.Errorf("user.Name = %q, want seeded fixture", user.Name)
	}
	if got := srv.IssuedTokens(); got != 1 {
		t.Fatalf("IssuedTokens() = %d, want 1 after proactive refresh", got)
	}

	// Revoking forces the reactive 401 path: rotate once and replay.
	srv.RevokeTokens()
	profile, err := c.Users.Profile(ctx, 7)
	if err != nil {
		t.Fatalf("Users.Profile() after revocation error = %v", err)
	}
	if profile.PrimaryEmail != "ada@rootland.edu" {
		t.Errorf("PrimaryEmail = %q, want fixture email", profile.PrimaryEmail)
	}
	if got := srv.IssuedTokens(); got != 2 {
		t.Errorf("IssuedTokens() = %d, want 2 after reactive refresh", got)
	}
}

func TestClient_WithoutCacheHitsOriginEachTime(t *testing.T) {
	srv := canvastest.New()
	defer srv.Close()
	c := newFakeClient(t, srv, WithoutMiddleware("cache"))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := c.Courses.Get(ctx, 101); err != nil {
			t.Fatalf("Courses.Get() #%d error = %v", i, err)
		}
	}
	if got := srv.Requests(); got != 2 {
		t.Errorf("origin requests = %d, want 2 with the cache stage removed", got)
	}
	if c.CacheStore() != nil {
		t.Error("CacheStore() should be nil when the cache stage is removed")
	}
}

func TestClient_ConfigureAdjustsStageAtRuntime(t *testing.T) {
	srv := canvastest.New()
	defer srv.Close()
	c := newFakeClient(t, srv)

	if err := c.Configure("retry", map[string]any{"max_attempts": 1}); err != nil {
		t.Fatalf("Configure(retry) error = %v", err)
	}
	srv.FailNext(1, http.StatusInternalServerError)
	if _, err := c.Courses.List(context.Background(), nil); err == nil {
		t.Fatal("Courses.List() should fail once retries are configured off")
	}
	if got := srv.Requests(); got != 1 {
		t.Errorf("origin requests = %d, want 1", got)
	}

	if err := c.Configure("warp", nil); err == nil {
		t.Error("Configure() with an unknown stage should fail")
	}
}

func TestClient_PathResolution(t *testing.T) {
	o := newOrigin(t, http.StatusOK, `{}`)

	tests := []struct {
		name     string
		base     string
		path     string
		wantPath string
	}{
		{"relative path lands under the api prefix", o.srv.URL, "courses", "/api/v1/courses"},
		{"absolute path bypasses the prefix", o.srv.URL, "/health", "/health"},
		{"instance mounted on a sub-path", o.srv.URL + "/canvas", "courses", "/canvas/api/v1/courses"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.base,
				WithLogger(quiet()),
				WithBucketStore(transport.NewMemoryBucketStore()),
				WithoutMiddleware("cache"))
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if err := c.Get(context.Background(), tt.path, nil, nil); err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got := o.last(t).Path; got != tt.wantPath {
				t.Errorf("request path = %q, want %q", got, tt.wantPath)
			}
		})
	}
}

func TestClient_SendsStandardHeaders(t *testing.T) {
	o := newOrigin(t, http.StatusOK, `{}`)
	c := o.client(t, WithAPIToken("sekret-tok"))
	ctx := context.Background()

	if err := c.Get(ctx, "courses", nil, nil); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	rec := o.last(t)
	if got := rec.Header.Get("Authorization"); got != "Bearer sekret-tok" {
		t.Errorf("Authorization = %q, want bearer token", got)
	}
	if got := rec.Header.Get("User-Agent"); got != "canvas-go/"+Version {
		t.Errorf("User-Agent = %q, want %q", got, "canvas-go/"+Version)
	}
	if got := rec.Header.Get("Accept"); got != "application/json" {
		t.Errorf("Accept = %q, want application/json", got)
	}

	if err := c.Post(ctx, "courses", map[string]string{"a": "b"}, nil); err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	rec = o.last(t)
	if got := rec.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got)
	}
	if rec.Body != `{"a":"b"}` {
		t.Errorf("body = %q, want the encoded payload", rec.Body)
	}
}

func TestClient_CustomUserAgentAndHeaders(t *testing.T) {
	o := newOrigin(t, http.StatusOK, `{}`)
	c := o.client(t, WithUserAgent("sis-sync/2.1"))

	req := &Request{
		Method: http.MethodGet,
		Path:   "courses",
		Header: http.Header{"X-Requested-With": {"sis-sync"}},
	}
	resp, err := c.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()

	rec := o.last(t)
	if got := rec.Header.Get("User-Agent"); got != "sis-sync/2.1" {
		t.Errorf("User-Agent = %q, want override", got)
	}
	if got := rec.Header.Get("X-Requested-With"); got != "sis-sync" {
		t.Errorf("X-Requested-With = %q, want caller header preserved", got)
	}
}

func TestClient_BodyReadableAfterDo(t *testing.T) {
	o := newOrigin(t, http.StatusOK, `{"pong":true}`)
	c := o.client(t, WithTimeout(5*time.Second))

	resp, err := c.Do(context.Background(), &Request{Method: http.MethodGet, Path: "ping"})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	defer resp.Body.Close()

	// The request deadline must not fire between Do returning and the
	// caller draining the body.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != `{"pong":true}` {
		t.Errorf("body = %q, want the origin payload", body)
	}
}

// ============================================================================
// Test Helpers
// ============================================================================

// quiet returns a logger whose records go nowhere.
func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFakeClient builds a client against a fake Canvas instance with fast
// retry delays and an isolated bucket store.
func newFakeClient(t *testing.T, srv *canvastest.Server, opts ...Option) *Client {
	t.Helper()
	base := []Option{
		WithLogger(quiet()),
		WithBucketStore(transport.NewMemoryBucketStore()),
		WithMiddlewareConfig("retry", map[string]any{"base_delay": "1ms", "max_delay": "5ms"}),
	}
	c, err := New(srv.URL(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

// recorded is one request that reached the origin test server. Path is
// the escaped wire form.
type recorded struct {
	Method string
	Path   string
	Query  url.Values
	Body   string
	Header http.Header
}

// origin serves a canned JSON response while recording what the client
// sent. Service tests use it to pin down paths, queries, and payloads.
type origin struct {
	srv  *httptest.Server
	code int
	body string

	mu  sync.Mutex
	got []recorded
}

func newOrigin(t *testing.T, code int, body string) *origin {
	t.Helper()
	o := &origin{code: code, body: body}
	o.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		o.mu.Lock()
		o.got = append(o.got, recorded{
			Method: r.Method,
			Path:   r.URL.EscapedPath(),
			Query:  r.URL.Query(),
			Body:   string(raw),
			Header: r.Header.Clone(),
		})
		o.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(o.code)
		fmt.Fprint(w, o.body)
	}))
	t.Cleanup(o.srv.Close)
	return o
}

// client builds a client pointed at the origin. The cache stage is left
// out so every call is observable.
func (o *origin) client(t *testing.T, opts ...Option) *Client {
	t.Helper()
	base := []Option{
		WithLogger(quiet()),
		WithBucketStore(transport.NewMemoryBucketStore()),
		WithoutMiddleware("cache"),
	}
	c, err := New(o.srv.URL, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func (o *origin) last(t *testing.T) recorded {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.got) == 0 {
		t.Fatal("no requests reached the origin")
	}
	return o.got[len(o.got)-1]
}
