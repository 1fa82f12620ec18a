package eventing

import (
	"sync"
	"sync/atomic"
)

// DefaultBufferSize is the per-subscriber channel depth.
const DefaultBufferSize = 256

// Handler is invoked for each delivered event. Handlers run on the
// subscriber's own goroutine and must not block indefinitely.
type Handler func(Event)

// Subscriber is a handle to an active subscription.
type Subscriber interface {
	// Close stops the subscriber and releases its channel.
	Close() error
}

// Bus is a bounded in-process publish/subscribe channel between the cache
// engine and its satellite services. Publish never blocks: when a
// subscriber's buffer is full the event is dropped for that subscriber and
// counted.
type Bus struct {
	mu      sync.RWMutex
	subs    map[Type][]*subscription
	closed  bool
	dropped atomic.Uint64
}

type subscription struct {
	bus   *Bus
	types []Type
	ch    chan Event
	once  sync.Once
	done  chan struct{}
}

// NewBus returns an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Type][]*subscription)}
}

// Subscribe registers a handler for the given event types. The handler runs
// on a dedicated goroutine until the returned Subscriber is closed.
func (b *Bus) Subscribe(handler Handler, types ...Type) Subscriber {
	sub := &subscription{
		bus:   b,
		types: types,
		ch:    make(chan Event, DefaultBufferSize),
		done:  make(chan struct{}),
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.done)
		return sub
	}
	for _, t := range types {
		b.subs[t] = append(b.subs[t], sub)
	}
	b.mu.Unlock()
	go sub.run(handler)
	return sub
}

// Publish delivers the event to every subscriber of its type. Full
// subscriber buffers drop the event rather than blocking the publisher.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs[evt.Type] {
		select {
		case sub.ch <- evt:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns the number of events discarded because a subscriber's
// buffer was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close shuts the bus down. Subsequent publishes are no-ops.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	var all []*subscription
	for _, subs := range b.subs {
		all = append(all, subs...)
	}
	b.subs = make(map[Type][]*subscription)
	b.mu.Unlock()
	for _, sub := range all {
		sub.stop()
	}
	return nil
}

func (s *subscription) run(handler Handler) {
	for {
		select {
		case <-s.done:
			return
		case evt := <-s.ch:
			handler(evt)
		}
	}
}

func (s *subscription) stop() {
	s.once.Do(func() { close(s.done) })
}

// Close stops the subscriber and removes it from the bus.
func (s *subscription) Close() error {
	s.bus.mu.Lock()
	for _, t := range s.types {
		subs := s.bus.subs[t]
		for i, candidate := range subs {
			if candidate == s {
				s.bus.subs[t] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
	s.bus.mu.Unlock()
	s.stop()
	return nil
}
