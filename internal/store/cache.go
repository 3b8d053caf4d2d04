package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"knowledge-ingest-platform/internal/logger"
	"knowledge-ingest-platform/models"
)

// ChunkCache serves chunk reads from Redis in front of a Store. Entries are
// invalidated on every chunk replacement and tombstone, so stale reads last
// at most one in-flight request.
type ChunkCache struct {
	Store
	rdb *redis.Client
	ttl time.Duration
}

func NewChunkCache(inner Store, rdb *redis.Client, ttl time.Duration) *ChunkCache {
	return &ChunkCache{Store: inner, rdb: rdb, ttl: ttl}
}

func chunkCacheKey(parentIdentity string) string {
	return fmt.Sprintf("chunks:%s", parentIdentity)
}

func (c *ChunkCache) GetChunks(ctx context.Context, parentIdentity string) ([]models.Chunk, error) {
	key := chunkCacheKey(parentIdentity)

	cached, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var chunks []models.Chunk
		if jsonErr := json.Unmarshal(cached, &chunks); jsonErr == nil {
			return chunks, nil
		}
		// Corrupt entry, drop it and fall through
		c.rdb.Del(ctx, key)
	} else if err != redis.Nil {
		logger.Warn("Chunk cache read failed", "key", key, "error", err)
	}

	chunks, err := c.Store.GetChunks(ctx, parentIdentity)
	if err != nil {
		return nil, err
	}

	if data, jsonErr := json.Marshal(chunks); jsonErr == nil {
		if setErr := c.rdb.Set(ctx, key, data, c.ttl).Err(); setErr != nil {
			logger.Warn("Chunk cache write failed", "key", key, "error", setErr)
		}
	}
	return chunks, nil
}

func (c *ChunkCache) ReplaceChunks(ctx context.Context, item *models.TrackedItem, chunks []models.Chunk) error {
	if err := c.Store.ReplaceChunks(ctx, item, chunks); err != nil {
		return err
	}
	c.invalidate(ctx, item.Identity)
	return nil
}

func (c *ChunkCache) Tombstone(ctx context.Context, identity string) error {
	if err := c.Store.Tombstone(ctx, identity); err != nil {
		return err
	}
	c.invalidate(ctx, identity)
	return nil
}

func (c *ChunkCache) invalidate(ctx context.Context, parentIdentity string) {
	if err := c.rdb.Del(ctx, chunkCacheKey(parentIdentity)).Err(); err != nil {
		logger.Warn("Chunk cache invalidation failed", "identity", parentIdentity, "error", err)
	}
}
