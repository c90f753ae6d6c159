package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example42/saidata-gen/internal/config"
	"github.com/example42/saidata-gen/internal/fetch"
)

func minimalConfig(cacheBackend, cacheDir string) *config.Config {
	return &config.Config{
		Cache: config.CacheConfig{Backend: cacheBackend, Dir: cacheDir, TTLSeconds: 60},
		HTTP: config.HTTPConfig{
			ConnectTimeoutS:       1,
			ReadTimeoutS:          1,
			MaxRetries:            1,
			BackoffBaseS:          0.1,
			BackoffCapS:           1,
			RateLimitRPS:          5,
			RateLimitBurst:        5,
			MaxConnectionsPerHost: 4,
			MaxConnectionsTotal:   8,
		},
		Concurrency: config.ConcurrencyConfig{Batch: 2, PerSoftware: 2},
		Output:      config.OutputConfig{Validate: true, Format: "yaml"},
	}
}

func TestBuild_WiresANonNilGeneratorOverMemoryCache(t *testing.T) {
	cfg := minimalConfig("memory", "")
	templatesDir := t.TempDir()

	built, err := Build(context.Background(), cfg, templatesDir, nil)
	require.NoError(t, err)
	require.NotNil(t, built)

	assert.NotNil(t, built.Generator)
	assert.NotNil(t, built.Validator)
	assert.NotNil(t, built.Logger)
	assert.NoError(t, built.Close())
}

func TestBuild_RestrictsFetchersToEnabledProviders(t *testing.T) {
	cfg := minimalConfig("memory", "")
	cfg.Providers.Enabled = []string{"npm", "pypi"}
	templatesDir := t.TempDir()

	built, err := Build(context.Background(), cfg, templatesDir, nil)
	require.NoError(t, err)
	defer built.Close()

	assert.NotNil(t, built.Generator)

	restricted := restrictToEnabled(map[string]fetch.Fetcher{"npm": nil, "pypi": nil, "apt": nil}, cfg.Providers.Enabled)
	assert.Len(t, restricted, 2)
	assert.Contains(t, restricted, "npm")
	assert.Contains(t, restricted, "pypi")
}

func TestBuild_UnknownCacheBackendFails(t *testing.T) {
	cfg := minimalConfig("bogus", "")
	templatesDir := t.TempDir()

	_, err := Build(context.Background(), cfg, templatesDir, nil)
	assert.Error(t, err)
}

func TestBuild_FilesystemCacheUsesConfiguredDir(t *testing.T) {
	cfg := minimalConfig("filesystem", t.TempDir())
	templatesDir := t.TempDir()

	built, err := Build(context.Background(), cfg, templatesDir, nil)
	require.NoError(t, err)
	defer built.Close()

	assert.NotNil(t, built.Generator)
}
