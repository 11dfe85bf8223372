// Package cache memoizes configuration reads for the points engine.
// Two tiers: a shared Redis cache and an in-process map; the tiered wrapper
// degrades silently to memory-only when Redis is unreachable.
package cache

import "time"

// DefaultTTL bounds how long an admin edit can stay invisible to
// calculations while keeping the hot read path off the store.
const DefaultTTL = time.Hour

// Cache is a byte-oriented key-value cache with TTL and prefix invalidation
type Cache interface {
	// Get returns the cached value, a hit flag, and a transport error.
	// An expired or absent key is a miss, not an error.
	Get(key string) ([]byte, bool, error)
	// Set stores value under key for ttl (DefaultTTL when ttl <= 0)
	Set(key string, value []byte, ttl time.Duration) error
	// Invalidate removes every key with the given prefix
	Invalidate(prefix string) error
	// Flush removes all keys owned by this cache
	Flush() error
}
