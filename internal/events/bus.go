package events

import (
	"sync"
	"sync/atomic"
)

// DefaultBuffer is the per-subscription channel depth used when the caller
// passes a non-positive buffer size.
const DefaultBuffer = 64

// Bus fans published events out to subscribers. Publishing never blocks:
// a subscriber that cannot keep up loses events, counted in Dropped.
type Bus struct {
	mu      sync.RWMutex
	subs    map[uint64]*Subscription
	next    uint64
	dropped atomic.Uint64
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]*Subscription)}
}

// Subscription is one subscriber's view of the bus.
type Subscription struct {
	id      uint64
	bus     *Bus
	streams map[Stream]struct{} // empty means every stream
	ch      chan Event
	once    sync.Once
}

// Subscribe registers a subscriber for the given streams. No streams means
// all of them. The subscription must be closed when done.
func (b *Bus) Subscribe(buffer int, streams ...Stream) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	sub := &Subscription{
		bus:     b,
		streams: make(map[Stream]struct{}, len(streams)),
		ch:      make(chan Event, buffer),
	}
	for _, s := range streams {
		sub.streams[s] = struct{}{}
	}

	b.mu.Lock()
	b.next++
	sub.id = b.next
	b.subs[sub.id] = sub
	b.mu.Unlock()
	return sub
}

// Publish delivers ev to every matching subscriber without blocking.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	stream := ev.Stream()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if len(sub.streams) > 0 {
			if _, ok := sub.streams[stream]; !ok {
				continue
			}
		}
		select {
		case sub.ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns the number of events discarded because a subscriber's
// buffer was full.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// Subscribers returns the current subscription count.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// C is the subscriber's receive channel. It is closed by Close.
func (s *Subscription) C() <-chan Event { return s.ch }

// Close detaches the subscription from the bus and closes its channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s.id)
		s.bus.mu.Unlock()
		close(s.ch)
	})
}
