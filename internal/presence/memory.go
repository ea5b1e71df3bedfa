package presence

import (
	"context"
	"sync"
)

// MemoryBroker is a single-process broker for tests and local runs.
type MemoryBroker struct {
	mu       sync.Mutex
	channels map[string]map[string]State
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{channels: make(map[string]map[string]State)}
}

func (b *MemoryBroker) Join(ctx context.Context, channel, self string) (Channel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.channels[channel]; !ok {
		b.channels[channel] = make(map[string]State)
	}
	return &memoryChannel{broker: b, channel: channel, self: self}, nil
}

type memoryChannel struct {
	broker  *MemoryBroker
	channel string
	self    string
}

func (c *memoryChannel) Track(ctx context.Context, state State) error {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	c.broker.channels[c.channel][c.self] = state
	return nil
}

func (c *memoryChannel) Untrack(ctx context.Context) error {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	delete(c.broker.channels[c.channel], c.self)
	return nil
}

func (c *memoryChannel) Snapshot(ctx context.Context) (map[string]State, error) {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	out := make(map[string]State, len(c.broker.channels[c.channel]))
	for k, v := range c.broker.channels[c.channel] {
		out[k] = v
	}
	return out, nil
}

func (c *memoryChannel) Close() error {
	return c.Untrack(context.Background())
}
