package event

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const subscriberBuffer = 100

type InMemoryBus struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
	logger      *slog.Logger
	onDrop      func(Type)
}

type Option func(*InMemoryBus)

// WithDropHook is called once per subscriber that missed an event.
func WithDropHook(fn func(Type)) Option {
	return func(b *InMemoryBus) {
		b.onDrop = fn
	}
}

func NewBus(logger *slog.Logger, opts ...Option) *InMemoryBus {
	if logger == nil {
		logger = slog.Default()
	}
	b := &InMemoryBus{
		subscribers: make(map[string]chan Event),
		logger:      logger.With("component", "event_bus"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *InMemoryBus) Publish(e Event) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := true
	for id, ch := range b.subscribers {
		select {
		case ch <- e:
		default:
			delivered = false
			b.logger.Warn("event dropped for slow subscriber", "type", e.Type, "subscriber", id)
			if b.onDrop != nil {
				b.onDrop(e.Type)
			}
		}
	}
	return delivered
}

func (b *InMemoryBus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan Event, subscriberBuffer)
	b.subscribers[id] = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subscribers, id)
			close(ch)
		})
	}

	return ch, unsubscribe
}

func (b *InMemoryBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
