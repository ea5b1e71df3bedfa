package realtime

import (
	"context"
	"sync"
)

// MemoryBus is an in-process bus for tests and brokerless runs.
type MemoryBus struct {
	mu   sync.Mutex
	subs []*memorySubscription
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

func (b *MemoryBus) Publish(ctx context.Context, e Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		if s.closed || s.table != e.Table || !s.filter.Match(e) {
			continue
		}
		select {
		case s.out <- e:
		default:
			// lagging subscriber; same drop policy as the redis bus
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, table string, f Filter) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := &memorySubscription{bus: b, table: table, filter: f, out: make(chan Event, 64)}
	b.subs = append(b.subs, s)
	return s, nil
}

type memorySubscription struct {
	bus    *MemoryBus
	table  string
	filter Filter
	out    chan Event
	closed bool
}

func (s *memorySubscription) Events() <-chan Event { return s.out }

func (s *memorySubscription) Close() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.out)
	for i, sub := range s.bus.subs {
		if sub == s {
			s.bus.subs = append(s.bus.subs[:i], s.bus.subs[i+1:]...)
			break
		}
	}
	return nil
}
