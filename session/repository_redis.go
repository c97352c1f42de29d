package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	blinkpay "github.com/blinkpay/blinkpay/go"
)

const (
	redisSessionPrefix = "blinkpay:session:"
	redisSessionIndex  = "blinkpay:sessions"
)

// RedisRepository stores each session as JSON under its own key, expiring
// with the session, plus a set of known IDs for Load.
type RedisRepository struct {
	client redis.Cmdable
	now    blinkpay.Clock
}

// NewRedisRepository creates a Redis-backed repository. Key TTLs are measured
// against now, which should be the clock the Store runs on; nil uses the
// wall clock.
func NewRedisRepository(client redis.Cmdable, now blinkpay.Clock) *RedisRepository {
	return &RedisRepository{client: client, now: now.OrSystem()}
}

// keyTTL is how long the session's key should live.
func (r *RedisRepository) keyTTL(s *Session) time.Duration {
	return s.ExpiresAt.Sub(r.now())
}

// Save implements Repository.
func (r *RedisRepository) Save(ctx context.Context, s *Session) error {
	ttl := r.keyTTL(s)
	if ttl <= 0 {
		return r.Delete(ctx, s.ID)
	}
	data, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "failed to marshal session")
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, redisSessionPrefix+s.ID, data, ttl)
	pipe.SAdd(ctx, redisSessionIndex, s.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to save session")
	}
	return nil
}

// Load implements Repository. IDs whose key has expired are pruned from the index.
func (r *RedisRepository) Load(ctx context.Context) ([]*Session, error) {
	ids, err := r.client.SMembers(ctx, redisSessionIndex).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list sessions")
	}

	out := make([]*Session, 0, len(ids))
	for _, id := range ids {
		data, err := r.client.Get(ctx, redisSessionPrefix+id).Bytes()
		if err != nil {
			if err == redis.Nil {
				r.client.SRem(ctx, redisSessionIndex, id)
				continue
			}
			return nil, errors.Wrap(err, "failed to get session")
		}
		var s Session
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal session")
		}
		out = append(out, &s)
	}
	return out, nil
}

// Delete implements Repository.
func (r *RedisRepository) Delete(ctx context.Context, id string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, redisSessionPrefix+id)
	pipe.SRem(ctx, redisSessionIndex, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to delete session")
	}
	return nil
}

var _ Repository = (*RedisRepository)(nil)
