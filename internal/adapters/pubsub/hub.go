package pubsub

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

var ErrHubClosed = errors.New("hub is closed")

// Observer is told when subscriptions open and close.
type Observer interface {
	SubscriptionOpened(kind string)
	SubscriptionClosed(kind string)
}

type HubConfig struct {
	// Kind labels the hub in logs and metrics.
	Kind string
	// Interval is the minimum spacing between two non-urgent emissions of a key.
	Interval time.Duration
	// Buffer is the mailbox size of each subscriber.
	Buffer int
	// FetchTimeout bounds a single call to the fetch function.
	FetchTimeout time.Duration
	// RetryDelay is the wait before refetching a key after a transient error.
	RetryDelay time.Duration
	// Terminal reports fetch errors that end every subscription of the key.
	Terminal func(error) bool
}

// Hub publishes the latest value of each key to its subscribers. Each key with
// subscribers owns one goroutine that coalesces notifications, rate limits
// non-urgent ones and fetches the value after waiting, so a burst of changes
// yields one emission carrying the newest state.
type Hub[K comparable, V any] struct {
	fetch    func(ctx context.Context, key K) (V, error)
	cfg      HubConfig
	observer Observer
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	topics map[K]*topic[K, V]
	closed bool
}

type topic[K comparable, V any] struct {
	key     K
	dirty   chan struct{}
	urgent  chan struct{}
	limiter *rate.Limiter
	cancel  context.CancelFunc
	subs    map[*subscription[V]]struct{}
}

var _ ports.Publisher[string, int] = (*Hub[string, int])(nil)

func NewHub[K comparable, V any](fetch func(ctx context.Context, key K) (V, error), cfg HubConfig, observer Observer, log zerolog.Logger) *Hub[K, V] {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 5 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 250 * time.Millisecond
	}
	if cfg.Terminal == nil {
		cfg.Terminal = func(error) bool { return false }
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Hub[K, V]{
		fetch:    fetch,
		cfg:      cfg,
		observer: observer,
		log:      log.With().Str("component", "hub").Str("kind", cfg.Kind).Logger(),
		ctx:      ctx,
		cancel:   cancel,
		topics:   make(map[K]*topic[K, V]),
	}
}

// Subscribe registers a subscriber and schedules an immediate emission, so the
// first value arrives without waiting for a change. The subscription ends when
// ctx is done, on Close, or when the key fails terminally.
func (h *Hub[K, V]) Subscribe(ctx context.Context, key K) (ports.Stream[V], error) {
	sub := newSubscription[V](h.cfg.Buffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	t, ok := h.topics[key]
	if !ok {
		t = h.startTopic(key)
	}
	t.subs[sub] = struct{}{}
	h.mu.Unlock()

	sub.release = func() { h.unsubscribe(t, sub) }
	h.observer.SubscriptionOpened(h.cfg.Kind)

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()

	signal(t.urgent)
	return sub, nil
}

func (h *Hub[K, V]) Notify(key K, urgent bool) {
	h.mu.Lock()
	t, ok := h.topics[key]
	h.mu.Unlock()
	if !ok {
		return
	}

	if urgent {
		signal(t.urgent)
	} else {
		signal(t.dirty)
	}
}

func (h *Hub[K, V]) Subscribers(key K) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t, ok := h.topics[key]; ok {
		return len(t.subs)
	}
	return 0
}

// Close ends every subscription with ErrHubClosed and stops all topic
// goroutines.
func (h *Hub[K, V]) Close() {
	h.mu.Lock()
	h.closed = true
	var subs []*subscription[V]
	for key, t := range h.topics {
		for sub := range t.subs {
			subs = append(subs, sub)
		}
		delete(h.topics, key)
	}
	h.mu.Unlock()

	h.cancel()
	for _, sub := range subs {
		if sub.finish(ErrHubClosed) {
			h.observer.SubscriptionClosed(h.cfg.Kind)
		}
	}
}

// startTopic must be called with h.mu held.
func (h *Hub[K, V]) startTopic(key K) *topic[K, V] {
	limit := rate.Inf
	if h.cfg.Interval > 0 {
		limit = rate.Every(h.cfg.Interval)
	}

	ctx, cancel := context.WithCancel(h.ctx)
	t := &topic[K, V]{
		key:     key,
		dirty:   make(chan struct{}, 1),
		urgent:  make(chan struct{}, 1),
		limiter: rate.NewLimiter(limit, 1),
		cancel:  cancel,
		subs:    make(map[*subscription[V]]struct{}),
	}
	h.topics[key] = t
	go h.run(ctx, t)
	return t
}

func (h *Hub[K, V]) unsubscribe(t *topic[K, V], sub *subscription[V]) {
	h.mu.Lock()
	if _, ok := t.subs[sub]; ok {
		delete(t.subs, sub)
		if len(t.subs) == 0 && h.topics[t.key] == t {
			delete(h.topics, t.key)
			t.cancel()
		}
	}
	h.mu.Unlock()

	if sub.finish(nil) {
		h.observer.SubscriptionClosed(h.cfg.Kind)
	}
}

func (h *Hub[K, V]) run(ctx context.Context, t *topic[K, V]) {
	for {
		urgent := false
		select {
		case <-ctx.Done():
			return
		case <-t.urgent:
			urgent = true
		case <-t.dirty:
		}

		if !urgent && !h.throttle(ctx, t) {
			return
		}

		// Anything signalled so far is covered by the fetch below.
		drain(t.dirty)
		drain(t.urgent)

		value, err := h.fetchValue(ctx, t.key)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if h.cfg.Terminal(err) {
				h.terminate(t, err)
				return
			}
			h.log.Warn().Err(err).Interface("key", t.key).Msg("failed to build update")
			// The change that triggered this fetch is still unpublished.
			if !h.wait(ctx, h.cfg.RetryDelay) {
				return
			}
			signal(t.dirty)
			continue
		}

		h.mu.Lock()
		subs := make([]*subscription[V], 0, len(t.subs))
		for sub := range t.subs {
			subs = append(subs, sub)
		}
		h.mu.Unlock()

		for _, sub := range subs {
			sub.deliver(value)
		}
	}
}

// throttle waits for the topic's limiter. An urgent signal cuts the wait
// short. It returns false when the topic is stopped.
func (h *Hub[K, V]) throttle(ctx context.Context, t *topic[K, V]) bool {
	r := t.limiter.Reserve()
	delay := r.Delay()
	if delay <= 0 {
		return true
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		r.Cancel()
		return false
	case <-timer.C:
	case <-t.urgent:
		r.Cancel()
	}
	return true
}

func (h *Hub[K, V]) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (h *Hub[K, V]) fetchValue(ctx context.Context, key K) (V, error) {
	ctx, cancel := context.WithTimeout(ctx, h.cfg.FetchTimeout)
	defer cancel()
	return h.fetch(ctx, key)
}

func (h *Hub[K, V]) terminate(t *topic[K, V], err error) {
	h.mu.Lock()
	if h.topics[t.key] == t {
		delete(h.topics, t.key)
	}
	subs := t.subs
	t.subs = make(map[*subscription[V]]struct{})
	h.mu.Unlock()

	t.cancel()
	for sub := range subs {
		if sub.finish(err) {
			h.observer.SubscriptionClosed(h.cfg.Kind)
		}
	}
	h.log.Info().Err(err).Interface("key", t.key).Int("subscribers", len(subs)).Msg("topic closed")
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func drain(ch chan struct{}) {
	select {
	case <-ch:
	default:
	}
}
