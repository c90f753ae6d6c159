package template

import (
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"gopkg.in/yaml.v3"
)

// parseCache holds parsed YAML template documents keyed by the SHA256 of
// their raw source, so repeated renders of the same defaults/provider
// template skip the parse. hashicorp/golang-lru/v2 is already safe for
// concurrent use, so no extra locking is needed here.
type parseCache struct {
	cache  *lru.Cache[string, *yaml.Node]
	hits   uint64
	misses uint64
}

func newParseCache(size int) (*parseCache, error) {
	if size <= 0 {
		size = 256
	}
	c, err := lru.New[string, *yaml.Node](size)
	if err != nil {
		return nil, err
	}
	return &parseCache{cache: c}, nil
}

func (c *parseCache) get(key string) (*yaml.Node, bool) {
	node, ok := c.cache.Get(key)
	if ok {
		atomic.AddUint64(&c.hits, 1)
	} else {
		atomic.AddUint64(&c.misses, 1)
	}
	return node, ok
}

func (c *parseCache) set(key string, node *yaml.Node) {
	c.cache.Add(key, node)
}

func (c *parseCache) invalidate() {
	c.cache.Purge()
}

// CacheStats reports the parse cache's hit ratio.
type CacheStats struct {
	Hits     uint64
	Misses   uint64
	Size     int
	HitRatio float64
}

func (c *parseCache) stats() CacheStats {
	hits := atomic.LoadUint64(&c.hits)
	misses := atomic.LoadUint64(&c.misses)
	total := hits + misses
	var ratio float64
	if total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return CacheStats{Hits: hits, Misses: misses, Size: c.cache.Len(), HitRatio: ratio}
}

func cacheKey(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
