package hooks

import "github.com/Trafexofive/Cortex-MK1/runtime/action"

// EventType identifies the kind of event carried on the bus. It mirrors the
// token-event sum type from the protocol's data model one-to-one.
type EventType string

const (
	EventThought        EventType = "thought"
	EventActionStart     EventType = "action_start"
	EventActionComplete EventType = "action_complete"
	EventResponse        EventType = "response"
	EventContextFeed     EventType = "context_feed"
	EventError           EventType = "error"
)

// Event is the common interface for everything published on the Bus.
type Event interface {
	Type() EventType
	RunID() string
}

// Base carries the fields common to every event; concrete event types
// embed it.
type Base struct {
	RunIDValue string
}

// RunID returns the run this event belongs to.
func (b Base) RunID() string { return b.RunIDValue }

// Thought is incremental reasoning text, chunked per the parser's thought
// chunking policy.
type Thought struct {
	Base
	Content string
}

// Type implements Event.
func (Thought) Type() EventType { return EventThought }

// ActionStart reports that an action has been parsed and dispatch is
// imminent or in flight.
type ActionStart struct {
	Base
	Action action.Action
}

// Type implements Event.
func (ActionStart) Type() EventType { return EventActionStart }

// ActionComplete reports that an action's executor has returned (or the
// action was marked complete per fire_and_forget semantics).
type ActionComplete struct {
	Base
	ID        string
	OutputKey string
	Success   bool
	Result    any
	Err       error
}

// Type implements Event.
func (ActionComplete) Type() EventType { return EventActionComplete }

// Response is a closed <response> body with variables already substituted.
type Response struct {
	Base
	Content  string
	IsFinal  bool
	Fallback bool
}

// Type implements Event.
func (Response) Type() EventType { return EventResponse }

// ContextFeedDelivered reports a dynamic feed received inline in the stream.
type ContextFeedDelivered struct {
	Base
	FeedID  string
	Content string
}

// Type implements Event.
func (ContextFeedDelivered) Type() EventType { return EventContextFeed }

// Error reports a parse or execution failure. It never aborts the stream.
type Error struct {
	Base
	Message string
	Context map[string]any
}

// Type implements Event.
func (Error) Type() EventType { return EventError }
