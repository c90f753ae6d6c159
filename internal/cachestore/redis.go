package cachestore

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the additive redis-backed Store (an extension of
// spec.md's memory|filesystem|sql enum for deployments that already run a
// Redis fleet alongside other saidata-gen instances and want a shared
// cache).
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (c *RedisConfig) withDefaults() *RedisConfig {
	out := *c
	if out.PoolSize <= 0 {
		out.PoolSize = 10
	}
	if out.DialTimeout <= 0 {
		out.DialTimeout = 5 * time.Second
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = 3 * time.Second
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = 3 * time.Second
	}
	return &out
}

type redisEnvelope struct {
	ContentType string    `json:"content_type"`
	StoredAt    time.Time `json:"stored_at"`
	TTLSeconds  int64     `json:"ttl_seconds"`
	Data        []byte    `json:"data"`
}

// RedisStore is a Store backed by a shared Redis instance. Values are
// wrapped in a small JSON envelope so Meta survives the round trip; Redis's
// own EXPIRE does the heavy lifting for TTL, so Get never needs to check
// expiry itself — a miss from Redis is a miss from us.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger

	mu                       sync.Mutex
	hits, misses, evictions int64
}

// NewRedisStore dials addr and verifies connectivity before returning.
func NewRedisStore(ctx context.Context, cfg RedisConfig, logger *slog.Logger) (*RedisStore, error) {
	full := cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         full.Addr,
		Password:     full.Password,
		DB:           full.DB,
		PoolSize:     full.PoolSize,
		DialTimeout:  full.DialTimeout,
		ReadTimeout:  full.ReadTimeout,
		WriteTimeout: full.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, full.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client, logger: logger}, nil
}

// NewRedisStoreFromClient wraps an already-constructed client, used by tests
// against miniredis.
func NewRedisStoreFromClient(client *redis.Client, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{client: client, logger: logger}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, Meta, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if err == redis.Nil {
			s.misses++
			return nil, Meta{}, ErrMiss
		}
		s.misses++
		return nil, Meta{}, err
	}

	var env redisEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.misses++
		return nil, Meta{}, ErrMiss
	}

	s.hits++
	return env.Data, Meta{
		ContentType: env.ContentType,
		StoredAt:    env.StoredAt,
		TTL:         time.Duration(env.TTLSeconds) * time.Second,
	}, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration, meta Meta) error {
	env := redisEnvelope{
		ContentType: meta.ContentType,
		StoredAt:    time.Now(),
		TTLSeconds:  int64(ttl / time.Second),
		Data:        value,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, raw, ttl).Err()
}

// Invalidate scans keys matching pattern with SCAN (never KEYS, to avoid
// blocking a shared Redis instance) and deletes them.
func (s *RedisStore) Invalidate(ctx context.Context, pattern string) (int, error) {
	var cursor uint64
	removed := 0
	for {
		keys, next, err := s.client.Scan(ctx, cursor, "*", 1000).Result()
		if err != nil {
			return removed, err
		}
		var toDelete []string
		for _, k := range keys {
			if MatchesGlob(pattern, k) {
				toDelete = append(toDelete, k)
			}
		}
		if len(toDelete) > 0 {
			if err := s.client.Del(ctx, toDelete...).Err(); err != nil {
				return removed, err
			}
			removed += len(toDelete)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	s.mu.Lock()
	s.evictions += int64(removed)
	s.mu.Unlock()
	return removed, nil
}

func (s *RedisStore) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Hits: s.hits, Misses: s.misses, Evictions: s.evictions}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
