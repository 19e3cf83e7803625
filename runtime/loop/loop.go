// Package loop implements the per-conversation owner of the variable
// store, context-feed manager, and conversation history that drives the
// parser through as many model iterations as it takes to reach a final
// response.
package loop

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Trafexofive/Cortex-MK1/runtime/action"
	"github.com/Trafexofive/Cortex-MK1/runtime/contextfeed"
	"github.com/Trafexofive/Cortex-MK1/runtime/engine"
	"github.com/Trafexofive/Cortex-MK1/runtime/hooks"
	"github.com/Trafexofive/Cortex-MK1/runtime/parser"
	"github.com/Trafexofive/Cortex-MK1/runtime/scheduler"
	"github.com/Trafexofive/Cortex-MK1/runtime/telemetry"
	"github.com/Trafexofive/Cortex-MK1/runtime/varstore"
)

// maxHistoryRecordChars is the per-record truncation limit applied to
// conversation history.
const maxHistoryRecordChars = 100_000

// TokenSource streams a model's output for one prompt, invoking onToken
// in order for every chunk until is_final=true. It is the core's sole
// abstraction over a model provider; see runtime/tokensource for concrete
// adapters.
type TokenSource interface {
	Stream(ctx context.Context, prompt string, onToken func(chunk string, isFinal bool) error) error
}

// HistoryRecord is one entry of the conversation's (role, content) log.
type HistoryRecord struct {
	Role    string
	Content string
}

// Loop owns everything that survives across iterations of a single
// prompt call and across prompt calls for one conversation: the variable
// store, the context-feed manager, and the truncated history log.
type Loop struct {
	tokenSource  TokenSource
	executor     scheduler.Executor
	engine       engine.Engine
	bus          hooks.Bus
	logger       telemetry.Logger
	store        *varstore.Store
	feeds        *contextfeed.Manager
	iterationCap int
	prompt       PromptTemplate

	history []HistoryRecord
}

// Options configures a new Loop.
type Options struct {
	TokenSource  TokenSource
	Executor     scheduler.Executor
	Engine       engine.Engine
	Bus          hooks.Bus
	Logger       telemetry.Logger
	IterationCap int
	Prompt       PromptTemplate
	Invoker      contextfeed.Invoker
}

// New constructs a Loop with a fresh variable store and context-feed
// manager. IterationCap defaults to 10 if unset.
func New(opts Options) *Loop {
	logger := opts.Logger
	if logger == nil {
		logger, _, _ = telemetry.Noop()
	}
	cap := opts.IterationCap
	if cap <= 0 {
		cap = 10
	}
	l := &Loop{
		tokenSource:  opts.TokenSource,
		executor:     opts.Executor,
		engine:       opts.Engine,
		bus:          opts.Bus,
		logger:       logger,
		store:        varstore.New(),
		iterationCap: cap,
		prompt:       opts.Prompt,
	}
	l.feeds = contextfeed.New(contextfeed.Options{Invoker: opts.Invoker, Logger: logger})
	return l
}

// Close releases the Loop's background resources (the context-feed
// manager's periodic refresher).
func (l *Loop) Close() { l.feeds.Close() }

// Feeds exposes the context-feed manager so callers can seed feeds before
// the first Prompt call.
func (l *Loop) Feeds() *contextfeed.Manager { return l.feeds }

// Store exposes the variable store, mainly for tests and for callers that
// want to seed variables ahead of the first prompt.
func (l *Loop) Store() *varstore.Store { return l.store }

// CapExceeded is returned (wrapped in the successful result, not as an
// error) when iteration_cap is reached without a final response.
const CapExceeded = "iteration cap exceeded without a final response"

// Prompt runs the agent loop for one user turn: it appends user_input to
// history, then drives the parser through up to IterationCap+1 model
// iterations until a final Response is seen, returning its resolved
// content.
func (l *Loop) Prompt(ctx context.Context, userInput string) (string, error) {
	l.appendHistory("user", userInput)

	for k := 0; k <= l.iterationCap; k++ {
		runID := uuid.NewString()
		l.feeds.Refresh(ctx)

		promptText := l.buildPrompt(ctx)
		sched := scheduler.New(scheduler.Options{
			Executor: l.buildExecutor(),
			Engine:   l.engine,
			Store:    l.store,
			Bus:      l.bus,
			Logger:   l.logger,
			RunID:    runID,
		})
		p := parser.New(parser.Options{Store: l.store, Scheduler: sched, Bus: l.bus, RunID: runID})

		if l.tokenSource == nil {
			return "", fmt.Errorf("loop: no token source configured")
		}
		if err := l.tokenSource.Stream(ctx, promptText, func(chunk string, isFinal bool) error {
			return p.Feed(ctx, chunk, isFinal)
		}); err != nil {
			return "", err
		}

		if content, ok := p.SawFinalResponse(); ok {
			return content, nil
		}

		envelope, err := action.MarshalEnvelope(sched.Results())
		if err != nil {
			return "", fmt.Errorf("loop: marshal iteration envelope: %w", err)
		}
		l.appendHistory("assistant", fmt.Sprintf("<iteration_%d>%s</iteration_%d>", k, envelope, k))
	}

	return CapExceeded, nil
}

func (l *Loop) appendHistory(role, content string) {
	if len(content) > maxHistoryRecordChars {
		content = content[:maxHistoryRecordChars]
	}
	l.history = append(l.history, HistoryRecord{Role: role, Content: content})
}

// History returns a copy of the conversation log accumulated so far.
func (l *Loop) History() []HistoryRecord {
	out := make([]HistoryRecord, len(l.history))
	copy(out, l.history)
	return out
}
