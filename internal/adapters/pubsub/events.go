package pubsub

import (
	"sync"

	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

// EventBus relays events to the subscribers of a key that are connected at
// publish time. Nothing is stored, and a slow subscriber loses its oldest
// pending events.
type EventBus[K comparable, V any] struct {
	kind     string
	buffer   int
	observer Observer

	mu   sync.RWMutex
	subs map[K]map[*subscription[V]]struct{}
}

var _ ports.EventBus[string, int] = (*EventBus[string, int])(nil)

func NewEventBus[K comparable, V any](kind string, buffer int, observer Observer) *EventBus[K, V] {
	return &EventBus[K, V]{
		kind:     kind,
		buffer:   buffer,
		observer: observer,
		subs:     make(map[K]map[*subscription[V]]struct{}),
	}
}

func (b *EventBus[K, V]) Subscribe(key K) ports.Stream[V] {
	sub := newSubscription[V](b.buffer)
	sub.release = func() { b.unsubscribe(key, sub) }

	b.mu.Lock()
	set, ok := b.subs[key]
	if !ok {
		set = make(map[*subscription[V]]struct{})
		b.subs[key] = set
	}
	set[sub] = struct{}{}
	b.mu.Unlock()

	b.observer.SubscriptionOpened(b.kind)
	return sub
}

func (b *EventBus[K, V]) Publish(key K, event V) {
	b.mu.RLock()
	subs := make([]*subscription[V], 0, len(b.subs[key]))
	for sub := range b.subs[key] {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.deliver(event)
	}
}

func (b *EventBus[K, V]) Subscribers(key K) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[key])
}

func (b *EventBus[K, V]) unsubscribe(key K, sub *subscription[V]) {
	b.mu.Lock()
	if set, ok := b.subs[key]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.subs, key)
		}
	}
	b.mu.Unlock()

	if sub.finish(nil) {
		b.observer.SubscriptionClosed(b.kind)
	}
}

// Close ends every subscription with ErrHubClosed.
func (b *EventBus[K, V]) Close() {
	b.mu.Lock()
	all := b.subs
	b.subs = make(map[K]map[*subscription[V]]struct{})
	b.mu.Unlock()

	for _, set := range all {
		for sub := range set {
			if sub.finish(ErrHubClosed) {
				b.observer.SubscriptionClosed(b.kind)
			}
		}
	}
}
