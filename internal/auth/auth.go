// Package auth provides the credential sources a Canvas client
// authenticates with: fixed API tokens and refreshable OAuth2 tokens.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// refreshPath is the Canvas OAuth2 token endpoint, relative to the
// institution's base URL.
const refreshPath = "/login/oauth2/token"

// Token is an issued access token and its expiry. A zero ExpiresAt means
// the lifetime is unknown.
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// TokenStore persists rotated tokens so a process restart can resume with
// the latest one instead of burning a refresh.
type TokenStore interface {
	StoreToken(ctx context.Context, token Token) error
}

// StaticToken is a fixed API access token. It never expires locally and
// cannot be refreshed.
type StaticToken struct {
	token string
}

// NewStaticToken wraps a manually-issued Canvas API token.
func NewStaticToken(token string) *StaticToken {
	return &StaticToken{token: token}
}

// Token returns the fixed token.
func (s *StaticToken) Token(context.Context) (string, error) {
	return s.token, nil
}

// Expired always reports false.
func (s *StaticToken) Expired(time.Duration) bool {
	return false
}

// Refresh fails; a static token has no refresh grant.
func (s *StaticToken) Refresh(context.Context) (string, error) {
	return "", errors.New("static token cannot be refreshed")
}

// OAuthConfig configures a refreshable token source.
type OAuthConfig struct {
	// ClientID and ClientSecret identify the registered developer key.
	ClientID     string
	ClientSecret string

	// RefreshToken is the long-lived grant obtained during the
	// authorization code flow.
	RefreshToken string

	// AccessToken optionally seeds the source with a still-valid token.
	AccessToken string

	// ExpiresAt is the seed token's expiry, zero when unknown.
	ExpiresAt time.Time

	// AuthBaseURL is the institution URL issuing tokens, for example
	// "https://canvas.example.edu".
	AuthBaseURL string

	// HTTPClient performs the refresh calls. Defaults to a 30s-timeout
	// client. Refreshes deliberately bypass the request pipeline: a
	// refresh triggered by a 401 must not recurse into the middleware
	// that triggered it.
	HTTPClient *http.Client

	// Store, when set, receives every rotated token.
	Store TokenStore
}

// OAuthTokenSource rotates Canvas OAuth2 tokens with the refresh_token
// grant. Concurrent refreshes coalesce: goroutines that lose the race
// adopt the winner's token instead of issuing their own grant.
type OAuthTokenSource struct {
	cfg    OAuthConfig
	client *http.Client

	// refreshMu serializes rotations; mu guards the token fields so reads
	// never block behind a network call.
	refreshMu sync.Mutex
	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewOAuthTokenSource validates cfg and builds the source.
func NewOAuthTokenSource(cfg OAuthConfig) (*OAuthTokenSource, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("oauth client id and secret are required")
	}
	if cfg.RefreshToken == "" {
		return nil, errors.New("oauth refresh token is required")
	}
	if cfg.AuthBaseURL == "" {
		return nil, errors.New("oauth auth base URL is required")
	}
	cfg.AuthBaseURL = strings.TrimSuffix(cfg.AuthBaseURL, "/")

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &OAuthTokenSource{
		cfg:       cfg,
		client:    client,
		token:     cfg.AccessToken,
		expiresAt: cfg.ExpiresAt,
	}, nil
}

// Token returns the current access token, possibly empty before the first
// refresh.
func (s *OAuthTokenSource) Token(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

// Expired reports whether the current token is missing or within leeway of
// its known expiry. An unknown expiry counts as not expired; the reactive
// 401 path covers that case.
func (s *OAuthTokenSource) Expired(leeway time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return true
	}
	if s.expiresAt.IsZero() {
		return false
	}
	return !time.Now().Add(leeway).Before(s.expiresAt)
}

// Refresh rotates the access token and returns the new one.
func (s *OAuthTokenSource) Refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	stale := s.token
	s.mu.Unlock()

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	// Another goroutine may have rotated while we waited for the lock.
	s.mu.Lock()
	if s.token != "" && s.token != stale {
		current := s.token
		s.mu.Unlock()
		return current, nil
	}
	s.mu.Unlock()

	token, err := s.requestToken(ctx)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.token = token.AccessToken
	s.expiresAt = token.ExpiresAt
	s.mu.Unlock()

	if s.cfg.Store != nil {
		// Persistence is best effort; the rotated token is already live.
		_ = s.cfg.Store.StoreToken(ctx, token)
	}
	return token.AccessToken, nil
}

// requestToken performs the refresh_token grant against the token
// endpoint.
func (s *OAuthTokenSource) requestToken(ctx context.Context) (Token, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {s.cfg.ClientID},
		"client_secret": {s.cfg.ClientSecret},
		"refresh_token": {s.cfg.RefreshToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.AuthBaseURL+refreshPath, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Token{}, fmt.Errorf("failed to read refresh response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Token{}, fmt.Errorf("token endpoint returned %s: %s", resp.Status, firstLine(body))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Token{}, fmt.Errorf("failed to unmarshal refresh response: %w", err)
	}
	if payload.AccessToken == "" {
		return Token{}, errors.New("token endpoint returned no access token")
	}

	token := Token{AccessToken: payload.AccessToken}
	if payload.ExpiresIn > 0 {
		token.ExpiresAt = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	}
	return token, nil
}

// firstLine trims an error body to something loggable.
func firstLine(body []byte) string {
	s := strings.TrimSpace(string(body))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
