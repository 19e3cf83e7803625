// Package pulse provides a goa.design/pulse-backed streamsink.Sink for
// multi-process deployments: every parser event is published to a Redis
// stream keyed by run ID, the way goadesign-goa-ai's feature-level Pulse
// sink publishes runtime events.
package pulse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"goa.design/pulse/streaming"
	streamopts "goa.design/pulse/streaming/options"
)

// Client exposes the subset of Pulse operations the sink needs: opening a
// named stream and publishing to it.
type Client interface {
	Stream(name string, opts ...streamopts.Stream) (Stream, error)
	Close(ctx context.Context) error
}

// Stream is a handle to one Pulse stream.
type Stream interface {
	Add(ctx context.Context, event string, payload []byte) (string, error)
	Destroy(ctx context.Context) error
}

// ClientOptions configures a new Client.
type ClientOptions struct {
	// Redis is the connection Pulse streams are backed by. Required.
	Redis *redis.Client
	// StreamMaxLen bounds the number of entries kept per stream. Zero uses
	// Pulse's default.
	StreamMaxLen int
	// OperationTimeout bounds individual Add calls. Zero means no timeout.
	OperationTimeout time.Duration
}

type client struct {
	redis   *redis.Client
	maxLen  int
	timeout time.Duration
}

// New constructs a Pulse client backed by opts.Redis.
func New(opts ClientOptions) (Client, error) {
	if opts.Redis == nil {
		return nil, errors.New("pulse: redis client is required")
	}
	return &client{redis: opts.Redis, maxLen: opts.StreamMaxLen, timeout: opts.OperationTimeout}, nil
}

func (c *client) Stream(name string, opts ...streamopts.Stream) (Stream, error) {
	if name == "" {
		return nil, errors.New("pulse: stream name is required")
	}
	var streamOptions []streamopts.Stream
	if c.maxLen > 0 {
		streamOptions = append(streamOptions, streamopts.WithStreamMaxLen(c.maxLen))
	}
	streamOptions = append(streamOptions, opts...)
	str, err := streaming.NewStream(name, c.redis, streamOptions...)
	if err != nil {
		return nil, fmt.Errorf("pulse: create stream %q: %w", name, err)
	}
	return &handle{stream: str, timeout: c.timeout}, nil
}

func (c *client) Close(ctx context.Context) error {
	return c.redis.Close()
}

type handle struct {
	stream  *streaming.Stream
	timeout time.Duration
}

func (h *handle) Add(ctx context.Context, event string, payload []byte) (string, error) {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	return h.stream.Add(ctx, event, payload)
}

func (h *handle) Destroy(ctx context.Context) error {
	return h.stream.Destroy(ctx)
}
