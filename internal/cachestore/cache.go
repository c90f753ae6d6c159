// Package cachestore implements the TTL/LRU-bounded key→blob store shared by
// the fetchers. The template engine does not use it (it keeps its own
// in-memory parse cache), and the URL resolver caches nothing. Backends (memory,
// filesystem, redis, sql) all satisfy the same Store interface so callers
// never branch on which one is configured.
package cachestore

import (
	"context"
	"errors"
	"path"
	"time"
)

// ErrMiss is returned by Get when key is absent or expired.
var ErrMiss = errors.New("cachestore: miss")

// Meta carries the side information stored alongside a cached blob.
type Meta struct {
	ContentType string
	StoredAt    time.Time
	TTL         time.Duration
}

// Stats is observability-only; nothing in the cache's correctness depends on
// it being accurate.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
	Capacity  int
}

// HitRate returns Hits/(Hits+Misses), or 0 if there have been no lookups.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Store is the Cache Store contract (spec §4.1): get/put/invalidate/stats,
// safe for concurrent use, atomic at single-key granularity.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, Meta, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration, meta Meta) error
	Invalidate(ctx context.Context, pattern string) (int, error)
	Stats() Stats
	Close() error
}

// MatchesGlob reports whether key matches a shell-style glob pattern
// (path.Match semantics — no "**"), used by Invalidate across all backends.
func MatchesGlob(pattern, key string) bool {
	ok, err := path.Match(pattern, key)
	if err != nil {
		return false
	}
	return ok
}
