package audit

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the list events are pushed to.
const DefaultRedisKey = "blinkpay:audit"

// RedisSink pushes events onto a capped Redis list, newest at the head.
// It performs network I/O, so register it through an AsyncSink.
type RedisSink struct {
	client redis.Cmdable
	key    string
	max    int64
}

// NewRedisSink creates a sink that keeps at most max events under key.
func NewRedisSink(client redis.Cmdable, key string, max int) *RedisSink {
	if key == "" {
		key = DefaultRedisKey
	}
	if max <= 0 {
		max = DefaultMaxEvents
	}
	return &RedisSink{client: client, key: key, max: int64(max)}
}

// Write implements Sink.
func (s *RedisSink) Write(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "failed to marshal audit event")
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, s.key, data)
	pipe.LTrim(ctx, s.key, 0, s.max-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to push audit event")
	}
	return nil
}

// Recent reads back up to n events, newest first.
func (s *RedisSink) Recent(ctx context.Context, n int64) ([]Event, error) {
	raw, err := s.client.LRange(ctx, s.key, 0, n-1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read audit events")
	}
	events := make([]Event, 0, len(raw))
	for _, r := range raw {
		var e Event
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal audit event")
		}
		events = append(events, e)
	}
	return events, nil
}
