// Package streamsink defines the client-facing event transport: a Sink
// that receives the same totally-ordered hooks.Event sequence the parser
// emits and forwards it over whatever wire the deployment needs (SSE,
// WebSocket, a message bus).
package streamsink

import (
	"context"
	"sync"

	"github.com/Trafexofive/Cortex-MK1/runtime/hooks"
)

// Sink delivers hook events to clients over a transport. Implementations
// must be safe for concurrent Send calls — the scheduler may complete
// several async actions at once, each publishing through the same bus.
type Sink interface {
	Send(ctx context.Context, event hooks.Event) error
	Close(ctx context.Context) error
}

// AsSubscriber adapts a Sink to hooks.Subscriber so it can be registered
// directly on a hooks.Bus alongside the caller's own token callback.
func AsSubscriber(s Sink) hooks.Subscriber {
	return hooks.SubscriberFunc(func(ctx context.Context, event hooks.Event) error {
		return s.Send(ctx, event)
	})
}

// InMemSink buffers every event it receives, for tests and for local demo
// wiring that has no real transport to talk to.
type InMemSink struct {
	mu     sync.Mutex
	events []hooks.Event
	closed bool
}

// NewInMemSink constructs an empty InMemSink.
func NewInMemSink() *InMemSink {
	return &InMemSink{}
}

// Send appends event to the in-memory buffer.
func (s *InMemSink) Send(ctx context.Context, event hooks.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	s.events = append(s.events, event)
	return nil
}

// Close marks the sink closed; subsequent Send calls return an error.
func (s *InMemSink) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Events returns a snapshot of every event received so far.
func (s *InMemSink) Events() []hooks.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]hooks.Event, len(s.events))
	copy(out, s.events)
	return out
}

var errClosed = sinkClosedError{}

type sinkClosedError struct{}

func (sinkClosedError) Error() string { return "streamsink: sink is closed" }
