package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "canvas.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// ============================================================================
// Loading
// ============================================================================

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "base_url: https://school.instructure.com\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BaseURL != "https://school.instructure.com" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("log defaults = %q/%q, want info/text", cfg.Log.Level, cfg.Log.Format)
	}
	if cfg.Cache.Backend != "memory" {
		t.Errorf("Cache.Backend = %q, want memory", cfg.Cache.Backend)
	}
	if cfg.HTTP.Timeout != 0 {
		t.Errorf("HTTP.Timeout = %v, want 0", cfg.HTTP.Timeout)
	}
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `
base_url: https://school.instructure.com
token: secret-token
http:
  timeout: 45s
  user_agent: registrar-sync/2.1
log:
  level: debug
  format: json
cache:
  backend: sqlite
  sqlite:
    path: /tmp/canvas-cache.db
middleware:
  retry:
    max_attempts: 5
    base_delay: 250ms
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Token != "secret-token" {
		t.Errorf("Token = %q", cfg.Token)
	}
	if cfg.HTTP.Timeout != 45*time.Second {
		t.Errorf("HTTP.Timeout = %v, want 45s", cfg.HTTP.Timeout)
	}
	if cfg.HTTP.UserAgent != "registrar-sync/2.1" {
		t.Errorf("HTTP.UserAgent = %q", cfg.HTTP.UserAgent)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log = %q/%q, want debug/json", cfg.Log.Level, cfg.Log.Format)
	}
	if cfg.Cache.Backend != "sqlite" || cfg.Cache.SQLite.Path != "/tmp/canvas-cache.db" {
		t.Errorf("cache = %q/%q", cfg.Cache.Backend, cfg.Cache.SQLite.Path)
	}

	retry := cfg.Middleware["retry"]
	if retry == nil {
		t.Fatal("Middleware[retry] missing")
	}
	if got, ok := retry["max_attempts"].(int); !ok || got != 5 {
		t.Errorf("retry.max_attempts = %v, want 5", retry["max_attempts"])
	}
	if got, ok := retry["base_delay"].(string); !ok || got != "250ms" {
		t.Errorf("retry.base_delay = %v, want 250ms", retry["base_delay"])
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
base_url: https://school.instructure.com
log:
  level: debug
`)
	t.Setenv("CANVAS_BASE_URL", "https://other.instructure.com")
	t.Setenv("CANVAS_TOKEN", "env-token")
	t.Setenv("CANVAS_LOG__LEVEL", "error")
	t.Setenv("CANVAS_OAUTH__CLIENT_ID", "10000000000001")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BaseURL != "https://other.instructure.com" {
		t.Errorf("BaseURL = %q, want env override", cfg.BaseURL)
	}
	if cfg.Token != "env-token" {
		t.Errorf("Token = %q, want env-token", cfg.Token)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("Log.Level = %q, want error", cfg.Log.Level)
	}
	if cfg.OAuth.ClientID != "10000000000001" {
		t.Errorf("OAuth.ClientID = %q", cfg.OAuth.ClientID)
	}
}

func TestLoad_ExpandsSecretReferences(t *testing.T) {
	path := writeConfig(t, `
base_url: https://school.instructure.com
oauth:
  client_id: 10000000000001
  client_secret: ${TEST_CLIENT_SECRET}
  refresh_token: ${TEST_REFRESH_TOKEN}
`)
	t.Setenv("TEST_CLIENT_SECRET", "s3cr3t")
	t.Setenv("TEST_REFRESH_TOKEN", "refresh-1")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.OAuth.ClientSecret != "s3cr3t" {
		t.Errorf("ClientSecret = %q, want expanded value", cfg.OAuth.ClientSecret)
	}
	if cfg.OAuth.RefreshToken != "refresh-1" {
		t.Errorf("RefreshToken = %q, want expanded value", cfg.OAuth.RefreshToken)
	}
}

func TestLoad_MissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("Load() error = nil, want missing-file error")
	}
}

func TestLoad_MissingDefaultFileTolerated(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd() error = %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("Chdir() error = %v", err)
	}
	defer os.Chdir(wd)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Cache.Backend != "memory" {
		t.Errorf("Cache.Backend = %q, want memory default", cfg.Cache.Backend)
	}
}

// ============================================================================
// Validation
// ============================================================================

func TestConfig_Validate(t *testing.T) {
	base := func() *Config {
		return &Config{
			BaseURL: "https://school.instructure.com",
			Token:   "tok",
			Log:     LogConfig{Level: "info", Format: "text"},
			Cache:   CacheConfig{Backend: "memory"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid token config",
			mutate: func(*Config) {},
		},
		{
			name: "valid oauth config",
			mutate: func(c *Config) {
				c.Token = ""
				c.OAuth = OAuthConfig{ClientID: "1", ClientSecret: "2", RefreshToken: "3"}
			},
		},
		{
			name:    "missing base url",
			mutate:  func(c *Config) { c.BaseURL = "" },
			wantErr: "base_url is required",
		},
		{
			name:    "token and oauth together",
			mutate:  func(c *Config) { c.OAuth.ClientID = "1" },
			wantErr: "not both",
		},
		{
			name:    "unknown cache backend",
			mutate:  func(c *Config) { c.Cache.Backend = "memcached" },
			wantErr: `unknown cache backend "memcached"`,
		},
		{
			name:    "redis without addr",
			mutate:  func(c *Config) { c.Cache.Backend = "redis" },
			wantErr: "cache.redis.addr",
		},
		{
			name:    "sqlite without path",
			mutate:  func(c *Config) { c.Cache.Backend = "sqlite" },
			wantErr: "cache.sqlite.path",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Log.Level = "trace" },
			wantErr: `unknown log level "trace"`,
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: `unknown log format "xml"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "empty defaults to info", in: "", want: "INFO"},
		{name: "debug", in: "debug", want: "DEBUG"},
		{name: "case insensitive", in: "WARN", want: "WARN"},
		{name: "warning alias", in: "warning", want: "WARN"},
		{name: "error", in: "error", want: "ERROR"},
		{name: "unknown", in: "trace", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lvl, err := ParseLevel(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatal("ParseLevel() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLevel() error = %v", err)
			}
			if lvl.String() != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, lvl, tt.want)
			}
		})
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "test-value")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "simple substitution",
			input: "${TEST_VAR}",
			want:  "test-value",
		},
		{
			name:  "substitution in string",
			input: "prefix-${TEST_VAR}-suffix",
			want:  "prefix-test-value-suffix",
		},
		{
			name:  "no substitution",
			input: "plain-string",
			want:  "plain-string",
		},
		{
			name:  "undefined var",
			input: "${UNDEFINED_VAR}",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := expandEnv(tt.input)
			if got != tt.want {
				t.Errorf("expandEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOAuthConfig_Enabled(t *testing.T) {
	if (OAuthConfig{}).Enabled() {
		t.Error("empty OAuthConfig reports enabled")
	}
	if !(OAuthConfig{ClientID: "1"}).Enabled() {
		t.Error("OAuthConfig with client_id reports disabled")
	}
}
