package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetViper clears viper's global state between tests.
func resetViper() {
	viper.Reset()
}

func unsetEnvKeys(keys ...string) {
	for _, k := range keys {
		_ = os.Unsetenv(k)
	}
}

func writeTempYAML(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	resetViper()
	unsetEnvKeys("CACHE_BACKEND", "HTTP_MAX_RETRIES", "CONCURRENCY_BATCH", "OUTPUT_FORMAT")

	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "filesystem", cfg.Cache.Backend)
	assert.Equal(t, 86400, cfg.Cache.TTLSeconds)
	assert.Equal(t, 3, cfg.HTTP.MaxRetries)
	assert.Equal(t, 5, cfg.Concurrency.Batch)
	assert.Equal(t, 4, cfg.Concurrency.PerSoftware)
	assert.True(t, cfg.Output.Validate)
	assert.Equal(t, "yaml", cfg.Output.Format)
	assert.Empty(t, cfg.Providers.Enabled)
}

func TestLoadConfig_File(t *testing.T) {
	resetViper()
	unsetEnvKeys("CACHE_BACKEND", "HTTP_MAX_RETRIES", "OUTPUT_FORMAT")

	yaml := `
cache:
  backend: memory
  ttl_seconds: 3600
http:
  max_retries: 5
  rate_limit_rps: 2.5
providers:
  enabled: ["apt", "brew"]
output:
  validate: false
  format: json
`
	path := writeTempYAML(t, yaml)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 3600, cfg.Cache.TTLSeconds)
	assert.Equal(t, 5, cfg.HTTP.MaxRetries)
	assert.Equal(t, 2.5, cfg.HTTP.RateLimitRPS)
	assert.Equal(t, []string{"apt", "brew"}, cfg.Providers.Enabled)
	assert.False(t, cfg.Output.Validate)
	assert.Equal(t, "json", cfg.Output.Format)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	resetViper()
	yaml := `
http:
  max_retries: 3
output:
  format: yaml
`
	path := writeTempYAML(t, yaml)

	require.NoError(t, os.Setenv("HTTP_MAX_RETRIES", "9"))
	require.NoError(t, os.Setenv("OUTPUT_FORMAT", "json"))
	t.Cleanup(func() { unsetEnvKeys("HTTP_MAX_RETRIES", "OUTPUT_FORMAT") })

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.HTTP.MaxRetries, "env should override file")
	assert.Equal(t, "json", cfg.Output.Format, "env should override file")
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	resetViper()
	unsetEnvKeys("HTTP_MAX_RETRIES")

	invalid := `
http:
  max_retries: : invalid
`
	path := writeTempYAML(t, invalid)

	cfg, err := LoadConfig(path)
	require.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoadConfig_ValidationError(t *testing.T) {
	resetViper()
	unsetEnvKeys("CACHE_BACKEND")

	yaml := `
cache:
  backend: "carrier-pigeon"
`
	path := writeTempYAML(t, yaml)

	cfg, err := LoadConfig(path)
	require.Error(t, err, "validation should fail for an unrecognized cache backend")
	assert.Nil(t, cfg)
}

func TestConfig_Validate_RedisBackendRequiresAddr(t *testing.T) {
	cfg := &Config{
		Cache:       CacheConfig{Backend: "redis", TTLSeconds: 60},
		HTTP:        HTTPConfig{ConnectTimeoutS: 1, ReadTimeoutS: 1, BackoffBaseS: 1, BackoffCapS: 1, RateLimitRPS: 1, RateLimitBurst: 1, MaxConnectionsPerHost: 1, MaxConnectionsTotal: 1},
		Concurrency: ConcurrencyConfig{Batch: 1, PerSoftware: 1},
		Output:      OutputConfig{Format: "yaml"},
	}
	assert.Error(t, cfg.Validate(), "redis backend without an address should fail validation")

	cfg.Cache.Redis.Addr = "localhost:6379"
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate_RejectsInvertedConnectionLimits(t *testing.T) {
	cfg := &Config{
		Cache:       CacheConfig{Backend: "memory", TTLSeconds: 60},
		HTTP:        HTTPConfig{ConnectTimeoutS: 1, ReadTimeoutS: 1, BackoffBaseS: 1, BackoffCapS: 1, RateLimitRPS: 1, RateLimitBurst: 1, MaxConnectionsPerHost: 10, MaxConnectionsTotal: 2},
		Concurrency: ConcurrencyConfig{Batch: 1, PerSoftware: 1},
		Output:      OutputConfig{Format: "yaml"},
	}
	assert.Error(t, cfg.Validate())
}
