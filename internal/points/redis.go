package points

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "points:"

// RedisStore is a Redis implementation of Store using INCRBY.
type RedisStore struct {
	client redis.UniversalClient
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a new Redis points store.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// IncrementPoints adds delta with INCRBY.
func (s *RedisStore) IncrementPoints(ctx context.Context, userID string, delta int64) (int64, error) {
	if err := validate(userID, delta); err != nil {
		return 0, err
	}

	total, err := s.client.IncrBy(ctx, redisKeyPrefix+userID, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("incrementing points: %w", err)
	}
	return total, nil
}

// GetPoints returns the user's total.
func (s *RedisStore) GetPoints(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, ErrMissingUserID
	}

	total, err := s.client.Get(ctx, redisKeyPrefix+userID).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading points: %w", err)
	}
	return total, nil
}
