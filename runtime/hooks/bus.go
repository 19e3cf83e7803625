// Package hooks provides the internal, in-process event bus that decouples
// the stream parser (the single emitter) from its consumers: the caller's
// token callback, a streamsink.Sink, or both. Publishing is synchronous and
// fans out to every registered subscriber in registration order, which is
// what gives the parser's emitted events the total-ordering guarantee the
// protocol relies on.
package hooks

import (
	"context"
	"errors"
	"sync"
)

type (
	// Bus publishes events to registered subscribers in a fan-out pattern.
	// Thread-safe for concurrent Publish, Register, and Close.
	Bus interface {
		// Publish delivers event to every currently registered subscriber, in
		// registration order, stopping at the first subscriber error.
		Publish(ctx context.Context, event Event) error
		// Register adds a subscriber and returns a Subscription that can be
		// closed to unregister.
		Register(sub Subscriber) (Subscription, error)
	}

	// Subscriber reacts to published events.
	Subscriber interface {
		HandleEvent(ctx context.Context, event Event) error
	}

	// SubscriberFunc adapts a plain function to the Subscriber interface.
	SubscriberFunc func(ctx context.Context, event Event) error

	// Subscription represents an active registration. Close is idempotent.
	Subscription interface {
		Close() error
	}

	bus struct {
		mu    sync.RWMutex
		order []*subscription
		subs  map[*subscription]Subscriber
	}

	subscription struct {
		bus  *bus
		once sync.Once
	}
)

// HandleEvent calls f.
func (f SubscriberFunc) HandleEvent(ctx context.Context, event Event) error { return f(ctx, event) }

// NewBus constructs a new in-memory event bus, ready for immediate use.
func NewBus() Bus {
	return &bus{subs: make(map[*subscription]Subscriber)}
}

func (b *bus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	subs := make([]Subscriber, 0, len(b.order))
	for _, s := range b.order {
		if sub, ok := b.subs[s]; ok {
			subs = append(subs, sub)
		}
	}
	b.mu.RUnlock()
	for _, sub := range subs {
		if err := sub.HandleEvent(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

func (b *bus) Register(sub Subscriber) (Subscription, error) {
	if sub == nil {
		return nil, errors.New("subscriber is required")
	}
	s := &subscription{bus: b}
	b.mu.Lock()
	b.subs[s] = sub
	b.order = append(b.order, s)
	b.mu.Unlock()
	return s, nil
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
	})
	return nil
}
