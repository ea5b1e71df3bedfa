package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBus carries change events over redis pub/sub so every service
// instance sees writes made by any other instance.
type RedisBus struct {
	client *redis.Client
	prefix string
	log    *zap.SugaredLogger
}

func NewRedisBus(client *redis.Client, prefix string, log *zap.SugaredLogger) *RedisBus {
	return &RedisBus{client: client, prefix: prefix, log: log}
}

func (b *RedisBus) channel(table string) string {
	return fmt.Sprintf("%s:rt:%s", b.prefix, table)
}

func (b *RedisBus) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel(e.Table), payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, table string, f Filter) (Subscription, error) {
	ps := b.client.Subscribe(ctx, b.channel(table))
	// force the SUBSCRIBE round-trip so open failures surface here, not
	// silently in the receive loop
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	sub := &redisSubscription{ps: ps, out: make(chan Event, 64)}
	go func() {
		defer close(sub.out)
		for msg := range ps.Channel() {
			var e Event
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				b.log.Warnw("change feed: bad event payload", "table", table, "err", err)
				continue
			}
			if !f.Match(e) {
				continue
			}
			select {
			case sub.out <- e:
			default:
				b.log.Warnw("change feed: subscriber lagging, dropping event", "table", table)
			}
		}
	}()
	return sub, nil
}

type redisSubscription struct {
	ps  *redis.PubSub
	out chan Event
}

func (s *redisSubscription) Events() <-chan Event { return s.out }

func (s *redisSubscription) Close() error { return s.ps.Close() }
