// Command canvasctl is an operator CLI for a Canvas LMS instance. It
// reads canvas.yaml (or the file named by -config / CANVAS_CONFIG),
// overlays CANVAS_-prefixed environment variables, and prints API
// responses as JSON on stdout. Logs go to stderr.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"

	"github.com/lmskit/canvas-go/internal/config"
	"github.com/lmskit/canvas-go/internal/telemetry"
	"github.com/lmskit/canvas-go/pkg/canvas"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("CANVAS_CONFIG"), "config file `path` (canvas.yaml when present)")
	trace := flag.Bool("trace", false, "export an OpenTelemetry span per request to stdout")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	if err := run(*configPath, *trace, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "canvasctl:", err)
		os.Exit(1)
	}
}

func run(configPath string, trace bool, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	cmd, rest := args[0], args[1:]

	// config check reports on whatever was loaded, valid or not.
	if cmd == "config" {
		return runConfigCheck(cfg, rest)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	var opts []canvas.Option
	if trace {
		tp, shutdown, err := telemetry.Init("canvasctl", logger)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("tracer shutdown failed", slog.String("error", err.Error()))
			}
		}()
		opts = append(opts, canvas.WithTracing(tp))
	}

	app, err := buildApp(cfg, logger, opts)
	if err != nil {
		return err
	}

	switch cmd {
	case "courses":
		return app.courses(ctx, rest)
	case "users":
		return app.users(ctx, rest)
	case "assignments":
		return app.assignments(ctx, rest)
	case "accounts":
		return app.accounts(ctx, rest)
	case "cache":
		return app.cacheCmd(ctx, rest)
	case "bucket":
		return app.bucket(ctx, rest)
	}
	usage()
	return fmt.Errorf("unknown command %q", cmd)
}

// app bundles the client with the store handles the cache and bucket
// commands operate on.
type app struct {
	client  *canvas.Client
	cache   canvas.CacheStore
	buckets canvas.BucketStore
}

func buildApp(cfg *config.Config, logger *slog.Logger, extra []canvas.Option) (*app, error) {
	a := &app{buckets: canvas.NewMemoryBucketStore()}

	opts := []canvas.Option{
		canvas.WithLogger(logger),
		canvas.WithBucketStore(a.buckets),
	}

	switch {
	case cfg.Token != "":
		opts = append(opts, canvas.WithAPIToken(cfg.Token))
	case cfg.OAuth.Enabled():
		src, err := oauthSource(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, canvas.WithTokenSource(src))
	}

	store, err := cacheStore(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if store == nil {
		opts = append(opts, canvas.WithoutMiddleware("cache"))
	} else {
		a.cache = store
		opts = append(opts, canvas.WithCacheStore(store))
	}

	if cfg.HTTP.Timeout > 0 {
		opts = append(opts, canvas.WithTimeout(cfg.HTTP.Timeout))
	}
	if cfg.HTTP.UserAgent != "" {
		opts = append(opts, canvas.WithUserAgent(cfg.HTTP.UserAgent))
	}
	for name, settings := range cfg.Middleware {
		opts = append(opts, canvas.WithMiddlewareConfig(name, settings))
	}
	opts = append(opts, extra...)

	client, err := canvas.New(cfg.BaseURL, opts...)
	if err != nil {
		return nil, err
	}
	a.client = client
	return a, nil
}

// oauthSource builds a refreshable token source, seeded from the token
// file when one is configured so restarts reuse the live token.
func oauthSource(cfg *config.Config) (canvas.TokenSource, error) {
	ocfg := canvas.OAuthConfig{
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		RefreshToken: cfg.OAuth.RefreshToken,
		AuthBaseURL:  cfg.BaseURL,
	}
	if cfg.OAuth.TokenFile != "" {
		store := canvas.NewFileStore(cfg.OAuth.TokenFile)
		ocfg.Store = store
		tok, err := store.LoadToken()
		if err != nil {
			return nil, fmt.Errorf("load token file: %w", err)
		}
		ocfg.AccessToken = tok.AccessToken
		ocfg.ExpiresAt = tok.ExpiresAt
	}
	return canvas.NewOAuthTokenSource(ocfg)
}

// cacheStore builds the configured cache backend; nil means caching off.
func cacheStore(cfg config.CacheConfig) (canvas.CacheStore, error) {
	switch cfg.Backend {
	case "off":
		return nil, nil
	case "", "memory":
		return canvas.NewMemoryCache(cfg.Size), nil
	case "redis":
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return canvas.NewRedisCacheWithClient(rdb), nil
	case "sqlite":
		return canvas.NewSQLiteCache(cfg.SQLite.Path)
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
}

func newLogger(cfg config.LogConfig) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	ho := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, ho)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, ho)), nil
}

func runConfigCheck(cfg *config.Config, args []string) error {
	if len(args) != 1 || args[0] != "check" {
		return errors.New("usage: canvasctl config check")
	}

	auth := "none"
	switch {
	case cfg.Token != "":
		auth = "token"
	case cfg.OAuth.Enabled():
		auth = "oauth"
	}

	out := map[string]any{
		"base_url":      cfg.BaseURL,
		"auth":          auth,
		"cache_backend": cfg.Cache.Backend,
		"log_level":     cfg.Log.Level,
		"log_format":    cfg.Log.Format,
		"valid":         true,
	}
	if err := cfg.Validate(); err != nil {
		out["valid"] = false
		out["error"] = err.Error()
	}
	return printJSON(out)
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: canvasctl [flags] <command> [args]

Commands:
  courses list|get         list courses or fetch one by id
  users get|profile        fetch a user or their profile ("self" for the caller)
  assignments list         list a course's assignments
  accounts list            list visible accounts
  cache stats|clear        inspect or empty the response cache
  bucket show|reset        inspect or reset local rate-limit accounting
  config check             print the resolved configuration

Flags:
`)
	flag.PrintDefaults()
}
