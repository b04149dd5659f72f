// Package checksum caches per-segment MD5 digests so a retransmitted
// segment doesn't recompute its checksum on every timer-driven resend.
// Grounded on the teacher's ipCache (cppla-moto/controller/server.go),
// which uses the same github.com/patrickmn/go-cache with no expiration
// for the lifetime of a connection; here the cache lives for the
// lifetime of one transfer and is keyed by sequence number.
package checksum

import (
	"strconv"
	"time"

	cache "github.com/patrickmn/go-cache"

	"flowcast/wire"
)

// Cache memoizes wire.Checksum(line) by sequence number.
type Cache struct {
	c *cache.Cache
}

// New returns an empty checksum cache. Entries never expire on their own
// (a transfer's content is immutable for its duration); Reset drops them
// all when a new transfer begins.
func New() *Cache {
	return &Cache{c: cache.New(cache.NoExpiration, time.Minute)}
}

// Get returns the MD5 digest of line, computing and caching it under seq
// on first use.
func (c *Cache) Get(seq int, line string) string {
	key := strconv.Itoa(seq)
	if v, ok := c.c.Get(key); ok {
		return v.(string)
	}
	sum := wire.Checksum(line)
	c.c.Set(key, sum, cache.NoExpiration)
	return sum
}

// Reset clears every cached digest, called when a new transfer starts.
func (c *Cache) Reset() {
	c.c.Flush()
}
