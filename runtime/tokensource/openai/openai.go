// Package openai adapts the OpenAI Responses streaming API to
// loop.TokenSource, watching response.output_text.delta events and
// ignoring function-call items: the protocol's tags ride inside plain
// text, so no native tool-use configuration is sent.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
)

// ResponsesClient captures the subset of the OpenAI SDK used by the
// adapter, so tests can substitute a fake.
type ResponsesClient interface {
	NewStreaming(ctx context.Context, body responses.ResponseNewParams, opts ...option.RequestOption) *ssestream.Stream[responses.ResponseStreamEventUnion]
}

// Source streams one model turn's output.Responses as plain text chunks.
type Source struct {
	client      ResponsesClient
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

// New constructs a Source backed by client.
func New(client ResponsesClient, opts Options) (*Source, error) {
	if client == nil {
		return nil, errors.New("openai: responses client is required")
	}
	if opts.Model == "" {
		return nil, errors.New("openai: model is required")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Source{client: client, model: opts.Model, maxTokens: maxTokens, temperature: opts.Temperature}, nil
}

// NewFromAPIKey constructs a Source using the default OpenAI HTTP client.
func NewFromAPIKey(apiKey string, opts Options) (*Source, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	c := openai.NewClient(option.WithAPIKey(apiKey))
	return New(&c.Responses, opts)
}

// Stream implements loop.TokenSource.
func (s *Source) Stream(ctx context.Context, prompt string, onToken func(chunk string, isFinal bool) error) error {
	params := responses.ResponseNewParams{
		Model:           shared.ResponsesModel(s.model),
		MaxOutputTokens: openai.Int(s.maxTokens),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(prompt, responses.EasyInputMessageRoleUser),
			},
		},
	}
	if s.temperature > 0 {
		params.Temperature = openai.Float(s.temperature)
	}

	stream := s.client.NewStreaming(ctx, params)
	defer stream.Close()

	for stream.Next() {
		event := stream.Current()
		if strings.TrimSpace(event.Type) != "response.output_text.delta" {
			continue
		}
		delta := event.Delta.OfString
		if delta == "" {
			continue
		}
		if err := onToken(delta, false); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("openai: stream: %w", err)
	}
	return onToken("", true)
}
