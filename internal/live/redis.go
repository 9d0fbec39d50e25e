package live

import (
	"context"

	"github.com/redis/go-redis/v9"
)

type publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisSink publishes each topic on the channel prefix+topic.
type RedisSink struct {
	rdb    publisher
	prefix string
}

func NewRedisSink(rdb publisher, prefix string) *RedisSink {
	return &RedisSink{rdb: rdb, prefix: prefix}
}

func (s *RedisSink) Publish(ctx context.Context, topic string, payload any) error {
	_, data, err := encode(topic, payload)
	if err != nil {
		return err
	}
	return s.rdb.Publish(ctx, s.prefix+topic, data).Err()
}

// Close leaves the shared Redis client open.
func (s *RedisSink) Close() error { return nil }
