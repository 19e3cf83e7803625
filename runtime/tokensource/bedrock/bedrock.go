// Package bedrock adapts the AWS Bedrock Converse streaming API to
// loop.TokenSource: every text content-block delta becomes a chunk fed to
// the parser, and stream completion signals the final chunk.
package bedrock

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// RuntimeClient captures the subset of the AWS Bedrock runtime client used
// by the adapter, matching *bedrockruntime.Client so tests can substitute a
// fake.
type RuntimeClient interface {
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (StreamOutput, error)
}

// StreamOutput is the subset of the AWS ConverseStream output type required
// by the adapter. It is satisfied by *bedrockruntime.ConverseStreamOutput
// and simplifies unit testing with a fake implementation.
type StreamOutput interface {
	GetStream() *bedrockruntime.ConverseStreamEventStream
}

// Source streams one model turn's output as plain text chunks, ignoring
// tool-use content blocks: the protocol's own tags ride inside the text
// the model emits, so no native tool-use configuration is sent.
type Source struct {
	runtime     RuntimeClient
	model       string
	maxTokens   int32
	temperature float32
}

// Options configures a new Source.
type Options struct {
	Model       string
	MaxTokens   int32
	Temperature float32
}

// New constructs a Source backed by runtime.
func New(runtime RuntimeClient, opts Options) (*Source, error) {
	if runtime == nil {
		return nil, errors.New("bedrock: runtime client is required")
	}
	if opts.Model == "" {
		return nil, errors.New("bedrock: model is required")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Source{runtime: runtime, model: opts.Model, maxTokens: maxTokens, temperature: opts.Temperature}, nil
}

// NewFromClient constructs a Source backed by a real Bedrock runtime
// client, adapting its concrete ConverseStreamOutput return value to the
// StreamOutput interface the adapter is tested against.
func NewFromClient(client *bedrockruntime.Client, opts Options) (*Source, error) {
	return New(runtimeAdapter{client: client}, opts)
}

// runtimeAdapter narrows *bedrockruntime.Client's concrete return type to
// the StreamOutput interface.
type runtimeAdapter struct {
	client *bedrockruntime.Client
}

func (a runtimeAdapter) ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (StreamOutput, error) {
	return a.client.ConverseStream(ctx, params, optFns...)
}

// Stream implements loop.TokenSource.
func (s *Source) Stream(ctx context.Context, prompt string, onToken func(chunk string, isFinal bool) error) error {
	input := &bedrockruntime.ConverseStreamInput{
		ModelId: &s.model,
		Messages: []brtypes.Message{
			{
				Role:    brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: prompt}},
			},
		},
		InferenceConfig: &brtypes.InferenceConfiguration{
			MaxTokens: &s.maxTokens,
		},
	}
	if s.temperature > 0 {
		input.InferenceConfig.Temperature = &s.temperature
	}

	out, err := s.runtime.ConverseStream(ctx, input)
	if err != nil {
		return fmt.Errorf("bedrock: converse stream: %w", err)
	}
	stream := out.GetStream()
	if stream == nil {
		return errors.New("bedrock: stream output missing event stream")
	}
	defer stream.Close()

	events := stream.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				if err := stream.Err(); err != nil {
					return fmt.Errorf("bedrock: stream: %w", err)
				}
				return onToken("", true)
			}
			delta, ok := event.(*brtypes.ConverseStreamOutputMemberContentBlockDelta)
			if !ok {
				continue
			}
			text, ok := delta.Value.Delta.(*brtypes.ContentBlockDeltaMemberText)
			if !ok || text.Value == "" {
				continue
			}
			if err := onToken(text.Value, false); err != nil {
				return err
			}
		}
	}
}
