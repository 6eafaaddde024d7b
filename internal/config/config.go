// Package config loads canvasctl configuration. Values come from a YAML
// file layered under CANVAS_-prefixed environment variables, so a checked
// in file can hold the instance shape while credentials stay in the
// environment. Nested keys use a double underscore in variable names:
// CANVAS_OAUTH__CLIENT_ID maps to oauth.client_id.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "CANVAS_"

// DefaultFile is the config file looked for when none is named.
const DefaultFile = "canvas.yaml"

// Config is the full canvasctl configuration.
type Config struct {
	// BaseURL is the Canvas instance, for example
	// "https://school.instructure.com".
	BaseURL string `koanf:"base_url"`

	// Token is a manually-issued API access token. Mutually exclusive
	// with OAuth.
	Token string `koanf:"token"`

	OAuth OAuthConfig `koanf:"oauth"`
	HTTP  HTTPConfig  `koanf:"http"`
	Log   LogConfig   `koanf:"log"`
	Cache CacheConfig `koanf:"cache"`

	// Middleware holds per-stage pipeline settings keyed by stage name
	// (retry, ratelimit, cache, logging, oauth_refresh), passed through
	// to the client untouched.
	Middleware map[string]map[string]any `koanf:"middleware"`
}

// OAuthConfig holds the refresh-grant credentials of a developer key.
type OAuthConfig struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	RefreshToken string `koanf:"refresh_token"`

	// TokenFile, when set, persists rotated access tokens so restarts
	// resume with the latest one.
	TokenFile string `koanf:"token_file"`
}

// Enabled reports whether OAuth credentials are configured.
func (o OAuthConfig) Enabled() bool {
	return o.ClientID != "" || o.ClientSecret != "" || o.RefreshToken != ""
}

// HTTPConfig tunes the outgoing HTTP behavior.
type HTTPConfig struct {
	// Timeout bounds each logical request, retries included. Zero keeps
	// the client default.
	Timeout time.Duration `koanf:"timeout"`

	// UserAgent overrides the default User-Agent header.
	UserAgent string `koanf:"user_agent"`
}

// LogConfig controls canvasctl's own logging.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	Level string `koanf:"level"`

	// Format is text or json.
	Format string `koanf:"format"`
}

// CacheConfig selects the response cache backend.
type CacheConfig struct {
	// Backend is memory, redis, sqlite, or off.
	Backend string `koanf:"backend"`

	// Size caps the in-memory backend's entry count. Zero keeps the
	// default.
	Size int `koanf:"size"`

	Redis  RedisConfig  `koanf:"redis"`
	SQLite SQLiteConfig `koanf:"sqlite"`
}

// RedisConfig locates the Redis cache backend.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// SQLiteConfig locates the SQLite cache backend.
type SQLiteConfig struct {
	Path string `koanf:"path"`
}

func defaults() map[string]any {
	return map[string]any{
		"log.level":     "info",
		"log.format":    "text",
		"cache.backend": "memory",
	}
}

// Load reads configuration from path, or from canvas.yaml when path is
// empty and the file exists, then overlays the environment. Secrets may
// reference environment variables with ${VAR}.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	switch {
	case path != "":
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	default:
		err := k.Load(file.Provider(DefaultFile), yaml.Parser())
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load config file %s: %w", DefaultFile, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Token = expandEnv(cfg.Token)
	cfg.OAuth.ClientSecret = expandEnv(cfg.OAuth.ClientSecret)
	cfg.OAuth.RefreshToken = expandEnv(cfg.OAuth.RefreshToken)
	cfg.Cache.Redis.Password = expandEnv(cfg.Cache.Redis.Password)
	return &cfg, nil
}

// Validate checks that the configuration can build a working client.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base_url is required (or set CANVAS_BASE_URL)")
	}
	if c.Token != "" && c.OAuth.Enabled() {
		return errors.New("configure token or oauth credentials, not both")
	}
	switch c.Cache.Backend {
	case "", "memory", "redis", "sqlite", "off":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
		return errors.New("cache.redis.addr is required for the redis backend")
	}
	if c.Cache.Backend == "sqlite" && c.Cache.SQLite.Path == "" {
		return errors.New("cache.sqlite.path is required for the sqlite backend")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// ParseLevel maps a configured level name onto slog.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", name)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv substitutes ${VAR} references so secrets can live outside the
// config file.
func expandEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}
