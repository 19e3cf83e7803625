// Package anthropic adapts the Anthropic Claude Messages streaming API to
// loop.TokenSource: every text delta in the stream becomes a chunk fed to
// the parser, and stream completion signals the final chunk.
package anthropic

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
)

// MessagesClient captures the subset of the Anthropic SDK used by the
// adapter, so tests can substitute a fake.
type MessagesClient interface {
	NewStreaming(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion]
}

// Source streams one model turn's output as plain text chunks, ignoring
// tool-call and thinking blocks: the protocol's own tags ride inside the
// text the model emits, so no native tool-use configuration is sent.
type Source struct {
	msg         MessagesClient
	model       string
	maxTokens   int64
	temperature float64
}

// Options configures a new Source.
type Options struct {
	Model       string
	MaxTokens   int64
	Temperature float64
}

// New constructs a Source backed by msg.
func New(msg MessagesClient, opts Options) (*Source, error) {
	if msg == nil {
		return nil, errors.New("anthropic: messages client is required")
	}
	if opts.Model == "" {
		return nil, errors.New("anthropic: model is required")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Source{msg: msg, model: opts.Model, maxTokens: maxTokens, temperature: opts.Temperature}, nil
}

// NewFromAPIKey constructs a Source using the default Anthropic HTTP client
// authenticated with apiKey, which must be non-empty.
func NewFromAPIKey(apiKey string, opts Options) (*Source, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&c.Messages, opts)
}

// Stream implements loop.TokenSource.
func (s *Source) Stream(ctx context.Context, prompt string, onToken func(chunk string, isFinal bool) error) error {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(s.model),
		MaxTokens: s.maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	}
	if s.temperature > 0 {
		params.Temperature = sdk.Float(s.temperature)
	}

	stream := s.msg.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		return fmt.Errorf("anthropic: start stream: %w", err)
	}
	defer stream.Close()

	for stream.Next() {
		event := stream.Current()
		delta, ok := event.AsAny().(sdk.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		text, ok := delta.Delta.AsAny().(sdk.TextDelta)
		if !ok || text.Text == "" {
			continue
		}
		if err := onToken(text.Text, false); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("anthropic: stream: %w", err)
	}
	return onToken("", true)
}
