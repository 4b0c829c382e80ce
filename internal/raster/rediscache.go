package raster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ogierm/geodraft/internal/observability"
)

// Tile payloads are immutable for a provider, but basemaps do get refreshed
// occasionally, so the shared tier expires entries.
const redisTileTTL = 7 * 24 * time.Hour

// redisCache is the shared tile tier, used when several drafting machines
// point at the same Redis. Failures degrade to misses; a broken cache must
// never break a conversion.
type redisCache struct {
	rdb *redis.Client
	log *slog.Logger
}

func newRedisCache(ctx context.Context, log *slog.Logger, addr string) (*redisCache, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		PoolSize:     8,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &redisCache{rdb: rdb, log: log}, nil
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("redis tile get failed", "key", key, "err", err)
		}
		observability.IncTileCacheMiss("redis")
		return nil, false
	}
	observability.IncTileCacheHit("redis")
	return val, true
}

func (c *redisCache) Set(ctx context.Context, key string, val []byte) {
	if err := c.rdb.Set(ctx, key, val, redisTileTTL).Err(); err != nil {
		c.log.Warn("redis tile set failed", "key", key, "err", err)
	}
}

func (c *redisCache) Close() error { return c.rdb.Close() }
