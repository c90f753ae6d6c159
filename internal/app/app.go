// Package app wires the concrete collaborators (cache, HTTP client,
// provider fetchers, template engine, config manager, schema validator,
// degradation registry) into a ready-to-use generator.Generator, the way
// the teacher's cmd/server wires its handlers from one shared dependency
// set. Every cobra subcommand builds its dependencies through this package
// so the wiring lives in one place instead of being copy-pasted per command.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"github.com/example42/saidata-gen/internal/cachestore"
	"github.com/example42/saidata-gen/internal/config"
	"github.com/example42/saidata-gen/internal/configmanager"
	"github.com/example42/saidata-gen/internal/core/resilience"
	"github.com/example42/saidata-gen/internal/depcheck"
	"github.com/example42/saidata-gen/internal/fetch"
	"github.com/example42/saidata-gen/internal/generator"
	"github.com/example42/saidata-gen/internal/httpclient"
	"github.com/example42/saidata-gen/internal/providers"
	"github.com/example42/saidata-gen/internal/schema"
	"github.com/example42/saidata-gen/internal/template"
	"github.com/example42/saidata-gen/internal/urlresolver"
	"github.com/example42/saidata-gen/pkg/logger"
)

// App holds every long-lived collaborator a run needs. Closing it releases
// the cache backend's resources (relevant for the Redis/SQL backends).
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Generator *generator.Generator
	Validator schema.Validator

	cache cachestore.Store
}

// Close releases the cache backend's resources.
func (a *App) Close() error {
	return a.cache.Close()
}

// Build constructs an App from cfg and a templates directory (the
// configmanager.FSSource root, spec.md §4.8).
func Build(ctx context.Context, cfg *config.Config, templatesDir string, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	cache, err := buildCache(ctx, cfg.Cache, log)
	if err != nil {
		return nil, fmt.Errorf("app: building cache store: %w", err)
	}

	httpClient := httpclient.New(httpclient.Config{
		DialTimeout:           durationFromSeconds(cfg.HTTP.ConnectTimeoutS),
		RateLimit:             rate.Limit(cfg.HTTP.RateLimitRPS),
		Burst:                 cfg.HTTP.RateLimitBurst,
		MaxIdleConns:          cfg.HTTP.MaxConnectionsTotal,
		MaxIdleConnsPerHost:   cfg.HTTP.MaxConnectionsPerHost,
		RetryPolicy: &resilience.RetryPolicy{
			MaxRetries: cfg.HTTP.MaxRetries,
			BaseDelay:  durationFromSeconds(cfg.HTTP.BackoffBaseS),
			MaxDelay:   durationFromSeconds(cfg.HTTP.BackoffCapS),
			Multiplier: 2.0,
			Jitter:     true,
			Logger:     log,
		},
		AllowTLSFallback: cfg.HTTP.AllowTLSDowngrade,
		Logger:           log,
	})

	resolver := urlresolver.New(providers.URLs(), log)
	depChecker := depcheck.New()
	ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
	gitWorkDirRoot := filepath.Join(cfg.Cache.Dir, "git")
	fetchers := restrictToEnabled(providers.Build(httpClient, cache, resolver, ttl, depChecker, gitWorkDirRoot), cfg.Providers.Enabled)

	engine, err := template.NewEngine(template.Options{Logger: log})
	if err != nil {
		return nil, fmt.Errorf("app: building template engine: %w", err)
	}
	source := configmanager.NewFSSource(os.DirFS(templatesDir))
	manager := configmanager.NewManager(source, engine)

	validator := schema.New()
	degradation := resilience.NewDegradationRegistry()

	gen := generator.New(fetchers, manager, validator, degradation, log)

	return &App{Config: cfg, Logger: log, Generator: gen, Validator: validator, cache: cache}, nil
}

func buildCache(ctx context.Context, cfg config.CacheConfig, log *slog.Logger) (cachestore.Store, error) {
	switch cfg.Backend {
	case "memory":
		return cachestore.NewMemoryStore(4096), nil
	case "sql":
		return cachestore.NewSQLStore(cfg.Dir)
	case "redis":
		return cachestore.NewRedisStore(ctx, cachestore.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		}, log)
	case "filesystem", "":
		return cachestore.NewFilesystemStore(cfg.Dir)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// restrictToEnabled narrows fetchers to cfg.Providers.Enabled when
// non-empty (spec.md §6's providers.enabled option); empty means every
// statically-known provider runs.
func restrictToEnabled(fetchers map[string]fetch.Fetcher, enabled []string) map[string]fetch.Fetcher {
	if len(enabled) == 0 {
		return fetchers
	}
	allowed := make(map[string]bool, len(enabled))
	for _, name := range enabled {
		allowed[name] = true
	}
	out := make(map[string]fetch.Fetcher, len(enabled))
	for name, f := range fetchers {
		if allowed[name] {
			out[name] = f
		}
	}
	return out
}

func durationFromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// NewLoggerFromConfig builds the ambient *slog.Logger the way pkg/logger
// does: an empty level or output defaults to info or stdout, and an empty
// format gives text output.
func NewLoggerFromConfig(level, format, output string) *slog.Logger {
	return logger.NewLogger(logger.Config{Level: level, Format: format, Output: output})
}
