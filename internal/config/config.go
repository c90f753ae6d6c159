// Package config loads the runtime configuration options spec.md §6
// enumerates, via viper's defaults → file → environment precedence: a
// correspondingly-named, upper-snake-cased environment variable overrides
// any file value, which in turn overrides the built-in default.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds every recognized runtime configuration option (spec.md §6).
type Config struct {
	Cache       CacheConfig       `mapstructure:"cache"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Concurrency ConcurrencyConfig `mapstructure:"concurrency"`
	Providers   ProvidersConfig   `mapstructure:"providers"`
	Output      OutputConfig      `mapstructure:"output"`
}

// CacheConfig controls the Cache Store (C1).
type CacheConfig struct {
	Backend    string      `mapstructure:"backend"`
	Dir        string      `mapstructure:"dir"`
	TTLSeconds int         `mapstructure:"ttl_seconds"`
	Redis      RedisConfig `mapstructure:"redis"`
}

// RedisConfig configures the additive redis cache backend (not one of
// spec.md §6's three documented cache.backend values, but a purely additive
// fourth option — see SPEC_FULL.md's C1 component detail).
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// HTTPConfig controls the HTTP Client (C2).
type HTTPConfig struct {
	ConnectTimeoutS       float64 `mapstructure:"connect_timeout_s"`
	ReadTimeoutS          float64 `mapstructure:"read_timeout_s"`
	MaxRetries            int     `mapstructure:"max_retries"`
	BackoffBaseS          float64 `mapstructure:"backoff_base_s"`
	BackoffCapS           float64 `mapstructure:"backoff_cap_s"`
	RateLimitRPS          float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst        int     `mapstructure:"rate_limit_burst"`
	MaxConnectionsPerHost int     `mapstructure:"max_connections_per_host"`
	MaxConnectionsTotal   int     `mapstructure:"max_connections_total"`
	AllowTLSDowngrade     bool    `mapstructure:"allow_tls_downgrade"`
}

// ConcurrencyConfig controls the Batch Driver (C11) and Generator (C10).
type ConcurrencyConfig struct {
	Batch       int `mapstructure:"batch"`
	PerSoftware int `mapstructure:"per_software"`
}

// ProvidersConfig restricts which providers are ever dispatched.
type ProvidersConfig struct {
	Enabled []string `mapstructure:"enabled"`
}

// OutputConfig controls emission (C10's final step).
type OutputConfig struct {
	Validate bool   `mapstructure:"validate"`
	Format   string `mapstructure:"format"`
}

// LoadConfig loads configuration from configPath (if non-empty and
// present) layered under defaults, then layers environment variables over
// both. A missing configPath is not an error — defaults and environment
// variables alone are a valid configuration.
func LoadConfig(configPath string) (*Config, error) {
	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		viper.SetConfigFile(configPath)
		viper.SetConfigType("yaml")

		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("config: reading %s: %w", configPath, err)
			}
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshalling: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &cfg, nil
}

// LoadConfigFromEnv loads configuration from defaults and environment
// variables only, with no configuration file.
func LoadConfigFromEnv() (*Config, error) {
	return LoadConfig("")
}

func setDefaults() {
	viper.SetDefault("cache.backend", "filesystem")
	viper.SetDefault("cache.dir", defaultCacheDir())
	viper.SetDefault("cache.ttl_seconds", 86400)
	viper.SetDefault("cache.redis.db", 0)
	viper.SetDefault("cache.redis.pool_size", 10)

	viper.SetDefault("http.connect_timeout_s", 5.0)
	viper.SetDefault("http.read_timeout_s", 30.0)
	viper.SetDefault("http.max_retries", 3)
	viper.SetDefault("http.backoff_base_s", 0.5)
	viper.SetDefault("http.backoff_cap_s", 30.0)
	viper.SetDefault("http.rate_limit_rps", 5.0)
	viper.SetDefault("http.rate_limit_burst", 10)
	viper.SetDefault("http.max_connections_per_host", 8)
	viper.SetDefault("http.max_connections_total", 64)
	viper.SetDefault("http.allow_tls_downgrade", false)

	viper.SetDefault("concurrency.batch", 5)
	viper.SetDefault("concurrency.per_software", 4)

	viper.SetDefault("providers.enabled", []string{})

	viper.SetDefault("output.validate", true)
	viper.SetDefault("output.format", "yaml")
}

// defaultCacheDir falls back to a relative directory if the platform cache
// root can't be determined, rather than leaving cache.dir empty.
func defaultCacheDir() string {
	root, err := os.UserCacheDir()
	if err != nil {
		return ".saidata-gen/cache"
	}
	return filepath.Join(root, "saidata-gen")
}

// Validate reports the first configuration-level (spec.md §6 exit code 2)
// violation found.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "memory", "filesystem", "sql", "redis":
	default:
		return fmt.Errorf("invalid cache.backend: %q (must be memory, filesystem, sql, or redis)", c.Cache.Backend)
	}
	if c.Cache.Backend == "filesystem" && c.Cache.Dir == "" {
		return fmt.Errorf("cache.dir is required when cache.backend is filesystem")
	}
	if c.Cache.Backend == "sql" && c.Cache.Dir == "" {
		return fmt.Errorf("cache.dir is required when cache.backend is sql")
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr is required when cache.backend is redis")
	}
	if c.Cache.TTLSeconds < 0 {
		return fmt.Errorf("cache.ttl_seconds must not be negative")
	}

	if c.HTTP.ConnectTimeoutS <= 0 {
		return fmt.Errorf("http.connect_timeout_s must be positive")
	}
	if c.HTTP.ReadTimeoutS <= 0 {
		return fmt.Errorf("http.read_timeout_s must be positive")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must not be negative")
	}
	if c.HTTP.BackoffBaseS <= 0 || c.HTTP.BackoffCapS < c.HTTP.BackoffBaseS {
		return fmt.Errorf("http.backoff_base_s/backoff_cap_s must satisfy 0 < base <= cap")
	}
	if c.HTTP.RateLimitRPS <= 0 {
		return fmt.Errorf("http.rate_limit_rps must be positive")
	}
	if c.HTTP.RateLimitBurst <= 0 {
		return fmt.Errorf("http.rate_limit_burst must be positive")
	}
	if c.HTTP.MaxConnectionsPerHost <= 0 || c.HTTP.MaxConnectionsTotal <= 0 {
		return fmt.Errorf("http.max_connections_per_host/max_connections_total must be positive")
	}
	if c.HTTP.MaxConnectionsPerHost > c.HTTP.MaxConnectionsTotal {
		return fmt.Errorf("http.max_connections_per_host must not exceed max_connections_total")
	}

	if c.Concurrency.Batch <= 0 {
		return fmt.Errorf("concurrency.batch must be positive")
	}
	if c.Concurrency.PerSoftware <= 0 {
		return fmt.Errorf("concurrency.per_software must be positive")
	}

	switch c.Output.Format {
	case "yaml", "json":
	default:
		return fmt.Errorf("invalid output.format: %q (must be yaml or json)", c.Output.Format)
	}

	return nil
}
