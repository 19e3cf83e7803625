package parser

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Trafexofive/Cortex-MK1/runtime/action"
	"github.com/Trafexofive/Cortex-MK1/runtime/engine/inmem"
	"github.com/Trafexofive/Cortex-MK1/runtime/hooks"
	"github.com/Trafexofive/Cortex-MK1/runtime/scheduler"
	"github.com/Trafexofive/Cortex-MK1/runtime/varstore"
)

// eventRecorder collects every event published to a bus, in order, safe
// for concurrent publishes from scheduler background completions.
type eventRecorder struct {
	mu     sync.Mutex
	events []hooks.Event
}

func (r *eventRecorder) HandleEvent(_ context.Context, ev hooks.Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

func (r *eventRecorder) snapshot() []hooks.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]hooks.Event, len(r.events))
	copy(out, r.events)
	return out
}

func newHarness(t *testing.T, exec scheduler.Executor) (*Parser, *eventRecorder) {
	t.Helper()
	store := varstore.New()
	bus := hooks.NewBus()
	rec := &eventRecorder{}
	_, err := bus.Register(rec)
	require.NoError(t, err)

	sched := scheduler.New(scheduler.Options{
		Executor: exec,
		Engine:   inmem.New(0),
		Store:    store,
		Bus:      bus,
		RunID:    "run-1",
	})
	p := New(Options{Store: store, Scheduler: sched, Bus: bus, RunID: "run-1"})
	return p, rec
}

func TestSimpleFinalResponse(t *testing.T) {
	p, rec := newHarness(t, nil)

	err := p.Feed(context.Background(), `<thought>ok</thought><response final="true">Hi</response>`, true)
	require.NoError(t, err)

	events := rec.snapshot()
	require.Len(t, events, 2)

	thought, ok := events[0].(hooks.Thought)
	require.True(t, ok)
	assert.Equal(t, "ok", thought.Content)

	resp, ok := events[1].(hooks.Response)
	require.True(t, ok)
	assert.Equal(t, "Hi", resp.Content)
	assert.True(t, resp.IsFinal)
	assert.False(t, resp.Fallback)
}

func TestActionWithoutIDEmitsSynthesizedIDWarning(t *testing.T) {
	p, rec := newHarness(t, func(ctx context.Context, act action.Action) (any, error) {
		return "ok", nil
	})

	input := `<action type="tool" mode="sync">{"name":"noop","parameters":{}}</action>`
	require.NoError(t, p.Feed(context.Background(), input, true))

	events := rec.snapshot()
	require.Len(t, events, 3)

	warn, ok := events[0].(hooks.Error)
	require.True(t, ok, "expected a warning event before dispatch, got %T", events[0])
	assert.Equal(t, "action_id_synthesized", warn.Context["stage"])
	assert.NotEmpty(t, warn.Context["id"])

	assert.IsType(t, hooks.ActionStart{}, events[1])
	complete, ok := events[2].(hooks.ActionComplete)
	require.True(t, ok)
	assert.True(t, complete.Success)
}

func TestAsyncActionWithSubstitution(t *testing.T) {
	p, rec := newHarness(t, func(ctx context.Context, act action.Action) (any, error) {
		assert.Equal(t, "add", act.Name)
		return float64(7), nil
	})

	// Delivered as two chunks, the way a real token source would: the
	// action's ActionComplete must land before the response chunk arrives
	// for the $sum substitution below to see it, so this test waits for it
	// rather than feeding everything in one synchronous pass.
	first := `<thought>compute</thought>` +
		`<action type="tool" mode="async" id="a1">{"name":"add","parameters":{"x":2,"y":3},"output_key":"sum"}</action>`
	require.NoError(t, p.Feed(context.Background(), first, false))

	require.Eventually(t, func() bool {
		for _, ev := range rec.snapshot() {
			if ac, ok := ev.(hooks.ActionComplete); ok && ac.ID == "a1" {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)

	second := `<response final="true">= $sum</response>`
	require.NoError(t, p.Feed(context.Background(), second, true))

	events := rec.snapshot()
	require.Len(t, events, 4)
	assert.IsType(t, hooks.Thought{}, events[0])
	assert.IsType(t, hooks.ActionStart{}, events[1])
	ac, ok := events[2].(hooks.ActionComplete)
	require.True(t, ok)
	assert.True(t, ac.Success)
	resp, ok := events[3].(hooks.Response)
	require.True(t, ok)
	assert.Equal(t, "= 7", resp.Content)
	assert.True(t, resp.IsFinal)
}

func TestDependencyOrderingBlocksDependentUntilDependencyCompletes(t *testing.T) {
	release := make(chan struct{})
	var completedOrder []string
	var mu sync.Mutex
	p, rec := newHarness(t, func(ctx context.Context, act action.Action) (any, error) {
		if act.ID == "b1" {
			<-release
		}
		mu.Lock()
		completedOrder = append(completedOrder, act.ID)
		mu.Unlock()
		return "ok", nil
	})

	input := `<action type="tool" mode="async" id="b1">{"name":"noop","parameters":{}}</action>` +
		`<action type="tool" mode="async" id="b2">{"name":"noop","parameters":{},"depends_on":["b1"]}</action>`
	go func() {
		_ = p.Feed(context.Background(), input, false)
	}()

	close(release)

	assertEventuallyContainsActionComplete(t, rec, "b1")
	assertEventuallyContainsActionComplete(t, rec, "b2")

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"b1", "b2"}, completedOrder)
}

func assertEventuallyContainsActionComplete(t *testing.T, rec *eventRecorder, id string) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, ev := range rec.snapshot() {
			if ac, ok := ev.(hooks.ActionComplete); ok && ac.ID == id {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond, "timed out waiting for ActionComplete(%s)", id)
}

func TestFenceStrippingDoesNotTouchNonFenceBackticks(t *testing.T) {
	p, rec := newHarness(t, nil)

	input := "```xml\n<thought>has `backtick` inline</thought><response final=\"true\">ok</response>\n```\n"
	err := p.Feed(context.Background(), input, true)
	require.NoError(t, err)

	// The 21-byte thought is emitted in 10-byte slices: "has `backt",
	// "ick` inlin", then "e" on </thought>.
	events := rec.snapshot()
	require.Len(t, events, 4)
	joined := ""
	for _, ev := range events[:3] {
		joined += ev.(hooks.Thought).Content
	}
	assert.Equal(t, "has `backtick` inline", joined)
	assert.IsType(t, hooks.Response{}, events[3])
}

func TestLenientFallbackWhenModelEmitsNoTags(t *testing.T) {
	p, rec := newHarness(t, nil)

	err := p.Feed(context.Background(), "hello", true)
	require.NoError(t, err)

	events := rec.snapshot()
	require.Len(t, events, 1)
	resp := events[0].(hooks.Response)
	assert.Equal(t, "hello", resp.Content)
	assert.True(t, resp.IsFinal)
	assert.True(t, resp.Fallback)
}

func TestThoughtChunkingEmitsOnNewlineAndOnThreshold(t *testing.T) {
	p, rec := newHarness(t, nil)

	// "0123456789" is exactly thoughtChunkBytes long, so it should flush on
	// threshold before the closing tag is even seen.
	err := p.Feed(context.Background(), "<thought>0123456789", false)
	require.NoError(t, err)
	err = p.Feed(context.Background(), "abc\nxyz</thought>", true)
	require.NoError(t, err)

	var thoughts []string
	for _, ev := range rec.snapshot() {
		if th, ok := ev.(hooks.Thought); ok {
			thoughts = append(thoughts, th.Content)
		}
	}
	require.NotEmpty(t, thoughts)
	joined := ""
	for _, s := range thoughts {
		joined += s
	}
	assert.Equal(t, "0123456789abc\nxyz", joined)
}

func TestChunkingIsObservationallyEquivalentToWholeDelivery(t *testing.T) {
	input := `<thought>step one</thought><response final="true">done</response>`

	whole, recWhole := newHarness(t, nil)
	require.NoError(t, whole.Feed(context.Background(), input, true))

	chunked, recChunked := newHarness(t, nil)
	for i := 0; i < len(input); i++ {
		require.NoError(t, chunked.Feed(context.Background(), string(input[i]), i == len(input)-1))
	}

	assertSameContentSequence(t, recWhole.snapshot(), recChunked.snapshot())
}

func assertSameContentSequence(t *testing.T, a, b []hooks.Event) {
	t.Helper()
	extract := func(events []hooks.Event) []string {
		var out []string
		for _, ev := range events {
			switch e := ev.(type) {
			case hooks.Thought:
				out = append(out, "thought:"+e.Content)
			case hooks.Response:
				out = append(out, "response:"+e.Content)
			}
		}
		return out
	}
	assert.Equal(t, extract(a), extract(b))
}
