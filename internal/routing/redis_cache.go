package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "route:"

// RedisCache is a Cache shared between processes through Redis.
type RedisCache struct {
	client redis.UniversalClient
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache creates a cache on top of an existing Redis client.
func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

// Get returns the entry for key. A missing key is not an error.
func (r *RedisCache) Get(ctx context.Context, key string) (*CacheEntry, bool, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading route cache: %w", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("decoding route cache entry: %w", err)
	}
	return &entry, true, nil
}

// Set stores entry under key; Redis expires it after retention.
func (r *RedisCache) Set(ctx context.Context, key string, entry CacheEntry, retention time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding route cache entry: %w", err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+key, data, retention).Err(); err != nil {
		return fmt.Errorf("writing route cache: %w", err)
	}
	return nil
}
