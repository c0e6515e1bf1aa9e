// Package cache is a JSON read-through cache on Redis. A Cache built without a Redis client is
// disabled: every lookup misses and writes are dropped.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"servicehub/pkg/logger"
)

type Cache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	log    *logger.Logger
}

func New(rdb *redis.Client, prefix string, ttl time.Duration, log *logger.Logger) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{rdb: rdb, prefix: prefix, ttl: ttl, log: log}
}

func (c *Cache) Enabled() bool {
	return c != nil && c.rdb != nil
}

func (c *Cache) key(k string) string {
	return c.prefix + ":" + k
}

// Get decodes the cached value into dest and reports whether it was found. Redis failures are
// logged and treated as a miss.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	if !c.Enabled() {
		return false
	}

	data, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("Cache read failed", "key", key, "error", err)
		}
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.log.Warn("Discarding undecodable cache entry", "key", key, "error", err)
		c.Delete(ctx, key)
		return false
	}
	return true
}

func (c *Cache) Set(ctx context.Context, key string, value any) {
	if !c.Enabled() {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		c.log.Warn("Cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.rdb.Set(ctx, c.key(key), data, c.ttl).Err(); err != nil {
		c.log.Warn("Cache write failed", "key", key, "error", err)
	}
}

func (c *Cache) Delete(ctx context.Context, keys ...string) {
	if !c.Enabled() || len(keys) == 0 {
		return
	}

	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, c.key(k))
	}
	if err := c.rdb.Del(ctx, full...).Err(); err != nil {
		c.log.Warn("Cache invalidation failed", "keys", keys, "error", err)
	}
}
