// Command cortexd wires a TokenSource, a dispatch Registry, and the
// AgentLoop together and runs one prompt to completion, the way
// goadesign-goa-ai's cmd/demo wires a planner and runtime together. The
// model provider is selected with CORTEX_PROVIDER (anthropic, openai, or
// bedrock); CORTEX_PULSE_ADDR additionally streams parser events to a
// Pulse/Redis stream when set.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/redis/go-redis/v9"

	"github.com/Trafexofive/Cortex-MK1/runtime/action"
	"github.com/Trafexofive/Cortex-MK1/runtime/engine/inmem"
	"github.com/Trafexofive/Cortex-MK1/runtime/hooks"
	"github.com/Trafexofive/Cortex-MK1/runtime/loop"
	"github.com/Trafexofive/Cortex-MK1/runtime/registry"
	"github.com/Trafexofive/Cortex-MK1/runtime/streamsink"
	"github.com/Trafexofive/Cortex-MK1/runtime/streamsink/pulse"
	"github.com/Trafexofive/Cortex-MK1/runtime/telemetry"
	"github.com/Trafexofive/Cortex-MK1/runtime/tokensource/anthropic"
	"github.com/Trafexofive/Cortex-MK1/runtime/tokensource/bedrock"
	"github.com/Trafexofive/Cortex-MK1/runtime/tokensource/openai"
)

func main() {
	ctx := context.Background()
	logger := telemetry.NewClueLogger()

	prompt := strings.Join(os.Args[1:], " ")
	if prompt == "" {
		prompt = "Say hello."
	}

	tokenSource, err := buildTokenSource()
	if err != nil {
		logger.Error(ctx, "cortexd: configure token source", "error", err)
		os.Exit(1)
	}

	bus := hooks.NewBus()
	if _, err := bus.Register(streamsink.AsSubscriber(streamsink.NewInMemSink())); err != nil {
		logger.Error(ctx, "cortexd: register in-memory sink", "error", err)
		os.Exit(1)
	}
	if addr := os.Getenv("CORTEX_PULSE_ADDR"); addr != "" {
		sink, err := buildPulseSink(addr)
		if err != nil {
			logger.Error(ctx, "cortexd: configure pulse sink", "error", err)
			os.Exit(1)
		}
		if _, err := bus.Register(streamsink.AsSubscriber(sink)); err != nil {
			logger.Error(ctx, "cortexd: register pulse sink", "error", err)
			os.Exit(1)
		}
	}

	reg := registry.New(registry.Options{})
	reg.Register(action.Tool, "echo", func(_ context.Context, act action.Action) (any, error) {
		return act.Parameters["text"], nil
	})

	eng := inmem.New(16)
	l := loop.New(loop.Options{
		TokenSource: tokenSource,
		Executor:    reg.Dispatch,
		Engine:      eng,
		Bus:         bus,
		Logger:      logger,
	})
	defer l.Close()

	response, err := l.Prompt(ctx, prompt)
	if err != nil {
		logger.Error(ctx, "cortexd: prompt failed", "error", err)
		os.Exit(1)
	}
	fmt.Println(response)
}

func buildTokenSource() (loop.TokenSource, error) {
	switch provider := strings.ToLower(os.Getenv("CORTEX_PROVIDER")); provider {
	case "", "anthropic":
		return anthropic.NewFromAPIKey(os.Getenv("ANTHROPIC_API_KEY"), anthropic.Options{
			Model: envOr("CORTEX_MODEL", "claude-opus-4-5"),
		})
	case "openai":
		return openai.NewFromAPIKey(os.Getenv("OPENAI_API_KEY"), openai.Options{
			Model: envOr("CORTEX_MODEL", "gpt-4.1"),
		})
	case "bedrock":
		cfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			return nil, fmt.Errorf("cortexd: load aws config: %w", err)
		}
		client := bedrockruntime.NewFromConfig(cfg)
		return bedrock.NewFromClient(client, bedrock.Options{
			Model: envOr("CORTEX_MODEL", "anthropic.claude-3-5-sonnet-20241022-v2:0"),
		})
	default:
		return nil, fmt.Errorf("cortexd: unknown provider %q", provider)
	}
}

func buildPulseSink(redisAddr string) (*pulse.Sink, error) {
	client, err := pulse.New(pulse.ClientOptions{Redis: redis.NewClient(&redis.Options{Addr: redisAddr})})
	if err != nil {
		return nil, err
	}
	return pulse.NewSink(pulse.Options{Client: client})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
