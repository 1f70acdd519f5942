// Package cache is a fail-open JSON cache over Redis. A Cache built without a
// client stores nothing and every lookup misses.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/kaskelas/backend/internal/metrics"
)

// InvalidationWindow is how long a deleted key refuses writes. A reader that computed its
// value before the mutation committed cannot put it back inside this window.
const InvalidationWindow = 5 * time.Second

// KEYS[1] value key, KEYS[2] its invalidation marker; ARGV[1] payload, ARGV[2] ttl in ms.
const setUnlessInvalidated = `
if redis.call("EXISTS", KEYS[2]) == 1 then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
return 1
`

// KEYS alternate value key and marker; ARGV[1] is the marker ttl in ms.
const deleteAndMark = `
for i = 1, #KEYS, 2 do
	redis.call("SET", KEYS[i + 1], "1", "PX", ARGV[1])
	redis.call("DEL", KEYS[i])
end
return #KEYS / 2
`

type Cache struct {
	client  *redis.Client
	metrics *metrics.Metrics
}

func New(client *redis.Client, m *metrics.Metrics) *Cache {
	return &Cache{client: client, metrics: m}
}

func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

// GetJSON decodes the cached value into dst and reports whether it was found.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) bool {
	if !c.Enabled() {
		return false
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		c.metrics.CacheLookup("miss")
		return false
	}
	if err != nil {
		c.metrics.CacheLookup("error")
		slog.Warn("cache get failed", "key", key, "error", err)
		return false
	}

	if err := json.Unmarshal(data, dst); err != nil {
		c.metrics.CacheLookup("error")
		slog.Warn("cache entry undecodable, dropping", "key", key, "error", err)
		c.client.Del(ctx, key)
		return false
	}
	c.metrics.CacheLookup("hit")
	return true
}

// SetJSON stores value for ttl unless key was invalidated within InvalidationWindow.
// A non-positive ttl stores nothing.
func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) {
	if !c.Enabled() || ttl <= 0 {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		slog.Warn("cache value not serializable", "key", key, "error", err)
		return
	}
	err = c.client.Eval(ctx, setUnlessInvalidated, []string{key, invalidatedKey(key)}, data, ttl.Milliseconds()).Err()
	if err != nil && err != redis.Nil {
		slog.Warn("cache set failed", "key", key, "error", err)
	}
}

func (c *Cache) Delete(ctx context.Context, keys ...string) {
	if !c.Enabled() || len(keys) == 0 {
		return
	}
	pairs := make([]string, 0, 2*len(keys))
	for _, key := range keys {
		pairs = append(pairs, key, invalidatedKey(key))
	}
	if err := c.client.Eval(ctx, deleteAndMark, pairs, InvalidationWindow.Milliseconds()).Err(); err != nil && err != redis.Nil {
		slog.Warn("cache invalidation failed", "keys", keys, "error", err)
	}
}
