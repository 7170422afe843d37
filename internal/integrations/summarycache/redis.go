package summarycache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "patient-chat:doc-summary:"

// redisAPI is the subset of redis.Cmdable used by Cache.
type redisAPI interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Cache remembers document summaries keyed by the document's SHA-256 so a
// repeated lookup of the same oversize record is not summarized twice.
type Cache struct {
	rdb redisAPI
	ttl time.Duration
}

func New(rdb redisAPI, ttl time.Duration) (*Cache, error) {
	if rdb == nil {
		return nil, errors.New("summarycache: redis client must not be nil")
	}
	if ttl <= 0 {
		return nil, errors.New("summarycache: ttl must be positive")
	}
	return &Cache{rdb: rdb, ttl: ttl}, nil
}

func cacheKey(document string) string {
	sum := sha256.Sum256([]byte(document))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached summary for document, if any.
func (c *Cache) Get(ctx context.Context, document string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, cacheKey(document)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("summarycache: get: %w", err)
	}
	return val, true, nil
}

func (c *Cache) Put(ctx context.Context, document, summary string) error {
	if err := c.rdb.Set(ctx, cacheKey(document), summary, c.ttl).Err(); err != nil {
		return fmt.Errorf("summarycache: set: %w", err)
	}
	return nil
}
