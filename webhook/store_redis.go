package webhook

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "blinkpay:webhook:"
	valuePending   = "pending"
	valueUsed      = "used"
)

// RedisStore is an IdempotencyStore shared between processes.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisStore creates a store whose keys expire after ttl (zero: never).
func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// CheckAndMark implements IdempotencyStore.
func (s *RedisStore) CheckAndMark(ctx context.Context, key string) (State, error) {
	k := redisKeyPrefix + key
	ok, err := s.client.SetNX(ctx, k, valuePending, s.ttl).Result()
	if err != nil {
		return StateAbsent, errors.Wrap(err, "failed to mark webhook key")
	}
	if ok {
		return StateAbsent, nil
	}

	v, err := s.client.Get(ctx, k).Result()
	if err != nil {
		if err == redis.Nil {
			// Expired between SETNX and GET; another caller owned it.
			return StateUsed, nil
		}
		return StateAbsent, errors.Wrap(err, "failed to read webhook key")
	}
	if v == valueUsed {
		return StateUsed, nil
	}
	return StatePending, nil
}

// MarkUsed implements IdempotencyStore.
func (s *RedisStore) MarkUsed(ctx context.Context, key string) error {
	if err := s.client.Set(ctx, redisKeyPrefix+key, valueUsed, s.ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to mark webhook key used")
	}
	return nil
}

var _ IdempotencyStore = (*RedisStore)(nil)
