package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "emb:"

// Cache is a get/set vector cache with per-entry expiry. Implementations must
// tolerate concurrent readers and writers.
type Cache interface {
	Get(ctx context.Context, key string) ([]float32, bool)
	Set(ctx context.Context, key string, vec []float32, ttl time.Duration)
}

// cacheKey derives the cache key from (model, text). Hashing keeps keys
// bounded regardless of question length.
func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return cacheKeyPrefix + model + ":" + hex.EncodeToString(sum[:])
}

// RedisCache stores vectors in Redis with a TTL.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a redis-backed vector cache.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get fetches a cached vector. A miss, expired entry or malformed payload all
// report a miss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil {
		return nil, false
	}
	return vec, true
}

// Set stores a vector with the given TTL. Failures are ignored; the cache is
// an optimization, not a source of truth.
func (c *RedisCache) Set(ctx context.Context, key string, vec []float32, ttl time.Duration) {
	data, err := json.Marshal(vec)
	if err != nil {
		return
	}
	c.client.Set(ctx, key, data, ttl)
}
