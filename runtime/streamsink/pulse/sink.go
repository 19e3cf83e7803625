// Package pulse exposes a streamsink.Sink implementation that publishes
// parser events to goa.design/pulse streams, the way goadesign-goa-ai's
// feature-level Pulse sink publishes runtime events: build a Redis client,
// pass it to the Pulse client, and hand the resulting sink to the loop.
package pulse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Trafexofive/Cortex-MK1/runtime/hooks"
)

type (
	// Options configures the Pulse sink.
	Options struct {
		// Client is the Pulse client used to publish events. Required.
		Client Client
		// StreamID derives the target Pulse stream from an event. Defaults
		// to "run/<RunID>".
		StreamID func(hooks.Event) (string, error)
		// MarshalEnvelope allows overriding the envelope serialization
		// (primarily for tests).
		MarshalEnvelope func(envelope) ([]byte, error)
	}

	// Sink publishes hooks.Event values into Pulse streams. Safe for
	// concurrent Send calls.
	Sink struct {
		client Client
		opts   sinkOptions
	}

	sinkOptions struct {
		streamID        func(hooks.Event) (string, error)
		marshalEnvelope func(envelope) ([]byte, error)
	}

	// envelope wraps a hook event for transmission over a Pulse stream.
	envelope struct {
		Type      string `json:"type"`
		RunID     string `json:"run_id"`
		Timestamp time.Time `json:"timestamp"`
		Payload   any    `json:"payload,omitempty"`
	}
)

// NewSink constructs a Pulse-backed sink. opts.Client is required;
// StreamID and MarshalEnvelope default to the built-in implementations.
func NewSink(opts Options) (*Sink, error) {
	if opts.Client == nil {
		return nil, errors.New("pulse: client is required")
	}
	cfg := sinkOptions{
		streamID:        defaultStreamID,
		marshalEnvelope: defaultMarshal,
	}
	if opts.StreamID != nil {
		cfg.streamID = opts.StreamID
	}
	if opts.MarshalEnvelope != nil {
		cfg.marshalEnvelope = opts.MarshalEnvelope
	}
	return &Sink{client: opts.Client, opts: cfg}, nil
}

// Send publishes event to the derived Pulse stream, wrapped in an envelope.
func (s *Sink) Send(ctx context.Context, event hooks.Event) error {
	streamID, err := s.opts.streamID(event)
	if err != nil {
		return err
	}
	handle, err := s.client.Stream(streamID)
	if err != nil {
		return err
	}
	env := envelope{
		Type:      string(event.Type()),
		RunID:     event.RunID(),
		Timestamp: time.Now().UTC(),
		Payload:   eventPayload(event),
	}
	payload, err := s.opts.marshalEnvelope(env)
	if err != nil {
		return err
	}
	_, err = handle.Add(ctx, env.Type, payload)
	return err
}

// Close releases the underlying Pulse client.
func (s *Sink) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

// defaultStreamID derives the Pulse stream name from the event's RunID.
func defaultStreamID(event hooks.Event) (string, error) {
	if event.RunID() == "" {
		return "", errors.New("pulse: event missing run id")
	}
	return fmt.Sprintf("run/%s", event.RunID()), nil
}

// defaultMarshal serializes an envelope to JSON.
func defaultMarshal(env envelope) ([]byte, error) {
	return json.Marshal(env)
}

// eventPayload strips the event down to its event-specific fields, since
// hooks.Event carries RunID and Type separately in the envelope already.
func eventPayload(event hooks.Event) any {
	switch e := event.(type) {
	case hooks.Thought:
		return map[string]any{"content": e.Content}
	case hooks.ActionStart:
		return map[string]any{"action": e.Action}
	case hooks.ActionComplete:
		payload := map[string]any{
			"id":         e.ID,
			"output_key": e.OutputKey,
			"success":    e.Success,
			"result":     e.Result,
		}
		if e.Err != nil {
			payload["error"] = e.Err.Error()
		}
		return payload
	case hooks.Response:
		return map[string]any{"content": e.Content, "is_final": e.IsFinal, "fallback": e.Fallback}
	case hooks.ContextFeedDelivered:
		return map[string]any{"feed_id": e.FeedID, "content": e.Content}
	case hooks.Error:
		return map[string]any{"message": e.Message, "context": e.Context}
	default:
		return nil
	}
}
