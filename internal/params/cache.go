package params

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// cacheKeyPrefix namespaces the per-kind slots in redis.
const cacheKeyPrefix = "jobParams:"

// RedisCache stores serialized parameter values in redis under
// "jobParams:<kind>".
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a redis-backed parameter cache.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get returns the stored slot for a kind, or ErrCacheMiss.
func (c *RedisCache) Get(ctx context.Context, kind string) ([]byte, error) {
	data, err := c.client.Get(ctx, cacheKeyPrefix+kind).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

// Set stores the slot for a kind without expiry; the latest write wins.
func (c *RedisCache) Set(ctx context.Context, kind string, data []byte) error {
	if err := c.client.Set(ctx, cacheKeyPrefix+kind, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// MemoryCache is an in-process Cache used in tests and as the fallback
// when redis is not configured.
type MemoryCache struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{slots: make(map[string][]byte)}
}

// Get returns the stored slot for a kind, or ErrCacheMiss.
func (c *MemoryCache) Get(ctx context.Context, kind string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.slots[kind]
	if !ok {
		return nil, ErrCacheMiss
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Set stores the slot for a kind.
func (c *MemoryCache) Set(ctx context.Context, kind string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	c.slots[kind] = buf
	return nil
}
