package realtime

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisTransport publishes envelopes over Redis pub/sub.
type RedisTransport struct {
	client *redis.Client
}

// NewRedisTransport wraps an existing Redis client.
func NewRedisTransport(client *redis.Client) *RedisTransport {
	return &RedisTransport{client: client}
}

// Publish sends the payload on the given Redis channel.
func (t *RedisTransport) Publish(ctx context.Context, channel string, payload []byte) error {
	return t.client.Publish(ctx, channel, payload).Err()
}
