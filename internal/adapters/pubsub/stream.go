// Package pubsub fans state out to long-lived subscribers: Hub publishes the
// latest value of a key with coalescing, EventBus relays discrete events.
package pubsub

import (
	"sync"
)

// subscription is a bounded mailbox written by a single producer. When it is
// full the oldest value is dropped, so a slow reader sees the newest state.
type subscription[V any] struct {
	ch      chan V
	done    chan struct{}
	release func()

	mu     sync.Mutex
	closed bool
	err    error
}

func newSubscription[V any](buffer int) *subscription[V] {
	if buffer < 1 {
		buffer = 1
	}
	return &subscription[V]{
		ch:   make(chan V, buffer),
		done: make(chan struct{}),
	}
}

func (s *subscription[V]) Updates() <-chan V {
	return s.ch
}

func (s *subscription[V]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *subscription[V]) Close() {
	if s.release != nil {
		s.release()
	}
	s.finish(nil)
}

func (s *subscription[V]) deliver(v V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- v:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// finish closes the mailbox once and reports whether this call did it.
func (s *subscription[V]) finish(err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	s.err = err
	close(s.ch)
	close(s.done)
	return true
}
