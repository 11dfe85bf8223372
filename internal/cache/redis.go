package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// opTimeout bounds every Redis call so a slow cache never stalls a
// calculation; the tiered wrapper falls back to memory on timeout.
const opTimeout = 500 * time.Millisecond

// Redis is the shared network cache tier. All keys live under a namespace
// prefix so Flush never touches foreign data in a shared instance.
type Redis struct {
	client    *redis.Client
	namespace string
}

// NewRedis wraps an existing client; namespace defaults to "fitpoints:"
func NewRedis(client *redis.Client, namespace string) *Redis {
	if namespace == "" {
		namespace = "fitpoints:"
	}
	return &Redis{client: client, namespace: namespace}
}

// Get returns the value for key; redis.Nil is a miss, not an error
func (r *Redis) Get(key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	value, err := r.client.Get(ctx, r.namespace+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set stores value under key for ttl
func (r *Redis) Set(key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return r.client.Set(ctx, r.namespace+key, value, ttl).Err()
}

// Invalidate removes every key with the given prefix via SCAN
func (r *Redis) Invalidate(prefix string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	iter := r.client.Scan(ctx, 0, r.namespace+prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Flush removes all keys in this cache's namespace
func (r *Redis) Flush() error {
	return r.Invalidate("")
}
