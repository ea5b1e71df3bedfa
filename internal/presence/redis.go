package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBroker keeps per-channel presence in a redis hash with a TTL, so a
// participant that dies without untracking disappears once the key expires.
type RedisBroker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisBroker(client *redis.Client, prefix string, ttl time.Duration) *RedisBroker {
	return &RedisBroker{client: client, prefix: prefix, ttl: ttl}
}

func (b *RedisBroker) key(channel string) string {
	return fmt.Sprintf("%s:presence:%s", b.prefix, channel)
}

func (b *RedisBroker) Join(ctx context.Context, channel, self string) (Channel, error) {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &redisChannel{broker: b, key: b.key(channel), self: self}, nil
}

type redisChannel struct {
	broker *RedisBroker
	key    string
	self   string
}

func (c *redisChannel) Track(ctx context.Context, state State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	if err := c.broker.client.HSet(ctx, c.key, c.self, payload).Err(); err != nil {
		return err
	}
	return c.broker.client.Expire(ctx, c.key, c.broker.ttl).Err()
}

func (c *redisChannel) Untrack(ctx context.Context) error {
	return c.broker.client.HDel(ctx, c.key, c.self).Err()
}

func (c *redisChannel) Snapshot(ctx context.Context) (map[string]State, error) {
	raw, err := c.broker.client.HGetAll(ctx, c.key).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]State, len(raw))
	for k, v := range raw {
		var s State
		if err := json.Unmarshal([]byte(v), &s); err != nil {
			continue
		}
		out[k] = s
	}
	return out, nil
}

func (c *redisChannel) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return c.Untrack(ctx)
}
