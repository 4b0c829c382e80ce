package raster

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ogierm/geodraft/internal/observability"
)

// TileCache stores downloaded tile payloads by key.
type TileCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte)
}

// defaultCacheSize bounds the in-process tier when the config gives none.
const defaultCacheSize = 512

// memoryCache is the in-process LRU tier.
type memoryCache struct {
	lru *lru.Cache[string, []byte]
}

func newMemoryCache(size int) (*memoryCache, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	c, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &memoryCache{lru: c}, nil
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := c.lru.Get(key)
	if ok {
		observability.IncTileCacheHit("memory")
	} else {
		observability.IncTileCacheMiss("memory")
	}
	return v, ok
}

func (c *memoryCache) Set(_ context.Context, key string, val []byte) {
	c.lru.Add(key, val)
}

// tieredCache checks the memory tier first and falls through to a shared
// backend; values found behind are promoted.
type tieredCache struct {
	front TileCache
	back  TileCache
}

func (c *tieredCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if v, ok := c.front.Get(ctx, key); ok {
		return v, true
	}
	v, ok := c.back.Get(ctx, key)
	if ok {
		c.front.Set(ctx, key, v)
	}
	return v, ok
}

func (c *tieredCache) Set(ctx context.Context, key string, val []byte) {
	c.front.Set(ctx, key, val)
	c.back.Set(ctx, key, val)
}
