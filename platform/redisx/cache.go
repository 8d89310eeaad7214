package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// JSONCache stores JSON values under namespaced keys. Every key of a
// namespace shares a generation counter so a whole namespace can be dropped
// with one INCR.
type JSONCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewJSONCache creates a cache. A nil client yields a cache that always misses.
func NewJSONCache(client *redis.Client, prefix string, ttl time.Duration) *JSONCache {
	return &JSONCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *JSONCache) generation(ctx context.Context, namespace string) (int64, error) {
	gen, err := c.client.Get(ctx, c.prefix+namespace+":gen").Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *JSONCache) key(namespace string, gen int64, key string) string {
	return fmt.Sprintf("%s%s:%d:%s", c.prefix, namespace, gen, key)
}

// Get loads namespace/key into dest. Reports whether it was found.
func (c *JSONCache) Get(ctx context.Context, namespace, key string, dest any) (bool, error) {
	if c == nil || c.client == nil {
		return false, nil
	}
	gen, err := c.generation(ctx, namespace)
	if err != nil {
		return false, fmt.Errorf("cache generation: %w", err)
	}
	raw, err := c.client.Get(ctx, c.key(namespace, gen, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get: %w", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("cache decode: %w", err)
	}
	return true, nil
}

// Set stores value under namespace/key with the cache TTL.
func (c *JSONCache) Set(ctx context.Context, namespace, key string, value any) error {
	if c == nil || c.client == nil {
		return nil
	}
	gen, err := c.generation(ctx, namespace)
	if err != nil {
		return fmt.Errorf("cache generation: %w", err)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	return c.client.Set(ctx, c.key(namespace, gen, key), raw, c.ttl).Err()
}

// Invalidate drops every key of namespace.
func (c *JSONCache) Invalidate(ctx context.Context, namespace string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, c.prefix+namespace+":gen").Err()
}
