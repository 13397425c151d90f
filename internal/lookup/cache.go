package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/chaintrace/registry/internal/events"
	"github.com/chaintrace/registry/internal/registry"
	"github.com/chaintrace/registry/pkg/logger"
)

// DefaultCacheTTL bounds staleness for entries missed by invalidation.
const DefaultCacheTTL = 5 * time.Minute

// Cache is a Redis read-through cache for product records. Misses and
// Redis failures both fall through to the source; the cache is never
// authoritative.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
	log *logger.Logger
}

// NewCache creates a product cache on the given Redis client.
func NewCache(rdb *redis.Client, ttl time.Duration, log *logger.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if log == nil {
		log = logger.NewDefault("lookup_cache")
	}
	return &Cache{rdb: rdb, ttl: ttl, log: log}
}

func productKey(id uint64) string {
	return "registry:product:" + strconv.FormatUint(id, 10)
}

// GetProduct returns the cached record at id, if present.
func (c *Cache) GetProduct(ctx context.Context, id uint64) (registry.Product, bool) {
	data, err := c.rdb.Get(ctx, productKey(id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.WithError(err).Debug("cache read failed")
		}
		return registry.Product{}, false
	}

	var p registry.Product
	if err := json.Unmarshal(data, &p); err != nil {
		c.log.WithError(err).WithField("product_id", id).Warn("corrupt cache entry dropped")
		c.rdb.Del(ctx, productKey(id))
		return registry.Product{}, false
	}
	return p, true
}

// SetProduct stores p with the cache TTL.
func (c *Cache) SetProduct(ctx context.Context, p registry.Product) {
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, productKey(p.ID), data, c.ttl).Err(); err != nil {
		c.log.WithError(err).Debug("cache write failed")
	}
}

// Invalidate drops the cached record at id.
func (c *Cache) Invalidate(ctx context.Context, id uint64) {
	if err := c.rdb.Del(ctx, productKey(id)).Err(); err != nil {
		c.log.WithError(err).WithField("product_id", id).Debug("cache invalidation failed")
	}
}

// WatchEvents invalidates cache entries as lifecycle events arrive on the
// hub. It blocks until ctx is done.
func (c *Cache) WatchEvents(ctx context.Context, hub *events.Hub) {
	ch, cancel := hub.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			c.Invalidate(ctx, ev.ProductID)
		}
	}
}

// Ping verifies the Redis connection.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
