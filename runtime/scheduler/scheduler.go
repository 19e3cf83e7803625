// Package scheduler tracks depends_on edges between actions parsed out of
// one streamed response, dispatches each action once its dependencies are
// satisfied, and records results into the variable store under both id
// and output_key (failures under output_key only), applying dispatch-mode
// and ordering semantics per action type.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Trafexofive/Cortex-MK1/runtime/action"
	"github.com/Trafexofive/Cortex-MK1/runtime/engine"
	"github.com/Trafexofive/Cortex-MK1/runtime/hooks"
	"github.com/Trafexofive/Cortex-MK1/runtime/telemetry"
	"github.com/Trafexofive/Cortex-MK1/runtime/toolerrors"
	"github.com/Trafexofive/Cortex-MK1/runtime/varstore"
)

// Executor invokes the named action against whatever backs its Type
// (tool registry, sub-agent, relic, workflow engine, or LLM) and returns
// its result. Internal actions never reach an Executor; the agent loop
// intercepts them before they get here.
type Executor func(ctx context.Context, act action.Action) (any, error)

// Scheduler tracks one response's worth of depends_on edges and dispatches
// actions as their dependencies become satisfied. A Scheduler is scoped to
// a single parser run; construct a new one per run.
type Scheduler struct {
	executor Executor
	engine   engine.Engine
	store    *varstore.Store
	bus      hooks.Bus
	logger   telemetry.Logger
	runID    string

	mu        sync.Mutex
	completed map[string]bool
	seen      map[string]bool
	pending   []action.Action
	results   []action.Snapshot
}

// Options configures a new Scheduler.
type Options struct {
	Executor Executor
	Engine   engine.Engine
	Store    *varstore.Store
	Bus      hooks.Bus
	Logger   telemetry.Logger
	RunID    string
}

// New constructs a Scheduler. Bus and Logger may be left nil (events are
// then dropped, logs discarded). With a nil Engine, async actions run
// inline and fire_and_forget actions run on a plain goroutine.
func New(opts Options) *Scheduler {
	logger := opts.Logger
	if logger == nil {
		logger, _, _ = telemetry.Noop()
	}
	return &Scheduler{
		executor:  opts.Executor,
		engine:    opts.Engine,
		store:     opts.Store,
		bus:       opts.Bus,
		logger:    logger,
		runID:     opts.RunID,
		completed: make(map[string]bool),
		seen:      make(map[string]bool),
	}
}

// Submit registers act with the scheduler. If every entry in act.DependsOn
// is already completed, act dispatches immediately; otherwise it joins the
// pending list and is reconsidered every time another action completes.
//
// A duplicate id (one already submitted earlier in this run) is never
// silently accepted: Submit emits a warning hooks.Error and overwrites the
// earlier registration, dropping any still-pending entry for the same id
// in favor of this one. An id already dispatched or completed cannot be
// un-dispatched; the new submission still proceeds independently, and the
// variable store ends up holding whichever of the two completes last.
func (s *Scheduler) Submit(ctx context.Context, act action.Action) {
	s.mu.Lock()
	duplicate := s.seen[act.ID]
	s.seen[act.ID] = true
	if duplicate {
		idx := -1
		for i, p := range s.pending {
			if p.ID == act.ID {
				idx = i
				break
			}
		}
		if idx != -1 {
			s.pending = append(s.pending[:idx], s.pending[idx+1:]...)
		}
	}
	canRun := s.canRun(act)
	if canRun {
		s.mu.Unlock()
	} else {
		s.pending = append(s.pending, act)
		s.mu.Unlock()
	}
	if duplicate {
		_ = s.publish(ctx, hooks.Error{
			Base:    hooks.Base{RunIDValue: s.runID},
			Message: fmt.Sprintf("duplicate action id %q: overwriting earlier registration", act.ID),
			Context: map[string]any{"stage": "duplicate_action_id", "action_id": act.ID},
		})
	}
	if canRun {
		s.dispatch(ctx, act)
	}
}

// canRun reports whether every dependency of act has already completed.
// Callers must hold s.mu.
func (s *Scheduler) canRun(act action.Action) bool {
	for _, dep := range act.DependsOn {
		if !s.completed[dep] {
			return false
		}
	}
	return true
}

// dispatch routes act to its mode-specific execution path. Called with
// s.mu unheld.
func (s *Scheduler) dispatch(ctx context.Context, act action.Action) {
	_ = s.publish(ctx, hooks.ActionStart{Base: hooks.Base{RunIDValue: s.runID}, Action: act})

	switch act.Mode {
	case action.FireAndForget:
		s.dispatchFireAndForget(ctx, act)
	case action.Async:
		s.dispatchAsync(ctx, act)
	default: // action.Sync and anything unrecognized fall back to sync.
		result, err := s.runWithRetry(ctx, act)
		s.complete(ctx, act, result, err)
	}
}

// dispatchAsync runs act on the configured engine and rescans pending
// actions once it completes. If no engine was configured, it falls back to
// running inline.
func (s *Scheduler) dispatchAsync(ctx context.Context, act action.Action) {
	if s.engine == nil {
		result, err := s.runWithRetry(ctx, act)
		s.complete(ctx, act, result, err)
		return
	}
	var result any
	done := s.engine.Go(ctx, func(bgCtx context.Context) error {
		var err error
		result, err = s.runWithRetry(bgCtx, act)
		return err
	})
	go func() {
		err := <-done
		s.complete(ctx, act, result, err)
	}()
}

// dispatchFireAndForget marks act complete immediately with a synthetic
// result, then launches the real call in the background. A background
// failure is logged but never changes act's recorded outcome and never
// retriggers dependency resolution, since act is already complete.
func (s *Scheduler) dispatchFireAndForget(ctx context.Context, act action.Action) {
	synthetic := map[string]any{"status": "dispatched"}
	s.store.Put(act.ID, synthetic)
	if act.OutputKey != act.ID {
		s.store.Put(act.OutputKey, synthetic)
	}
	_ = s.publish(ctx, hooks.ActionComplete{
		Base: hooks.Base{RunIDValue: s.runID}, ID: act.ID, OutputKey: act.OutputKey,
		Success: true, Result: synthetic,
	})
	s.recordResult(action.Snapshot{ID: act.ID, OutputKey: act.OutputKey, Success: true, Result: synthetic})
	s.markCompleted(act.ID)
	s.rescan(ctx)

	runFn := func(bgCtx context.Context) error {
		_, err := s.runWithRetry(bgCtx, act)
		return err
	}
	if s.engine != nil {
		go func() {
			if err := <-s.engine.Go(ctx, runFn); err != nil {
				s.logger.Warn(ctx, "fire_and_forget action failed", "action_id", act.ID, "error", err)
			}
		}()
		return
	}
	go func() {
		if err := runFn(ctx); err != nil {
			s.logger.Warn(ctx, "fire_and_forget action failed", "action_id", act.ID, "error", err)
		}
	}()
}

// runWithRetry invokes the executor under a per-action timeout, retrying
// immediately up to act.RetryCount additional times on failure.
func (s *Scheduler) runWithRetry(ctx context.Context, act action.Action) (any, error) {
	if s.executor == nil {
		return nil, toolerrors.New("no executor configured", toolerrors.ReasonToolUnavailable)
	}
	timeout := time.Duration(act.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var lastErr error
	for attempt := 0; attempt <= act.RetryCount; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		result, err := s.executor(callCtx, act)
		cancel()
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// complete records act's outcome, marks it completed per skip_on_error,
// publishes the corresponding event, and rescans the pending list.
func (s *Scheduler) complete(ctx context.Context, act action.Action, result any, err error) {
	if err != nil {
		ae := toolerrors.FromError(err)
		s.store.Put(act.OutputKey, map[string]any{"error": ae.Error()})
		_ = s.publish(ctx, hooks.Error{
			Base: hooks.Base{RunIDValue: s.runID}, Message: ae.Error(),
			Context: map[string]any{"action_id": act.ID, "output_key": act.OutputKey},
		})
		_ = s.publish(ctx, hooks.ActionComplete{
			Base: hooks.Base{RunIDValue: s.runID}, ID: act.ID, OutputKey: act.OutputKey,
			Success: false, Err: ae,
		})
		s.recordResult(action.Snapshot{ID: act.ID, OutputKey: act.OutputKey, Success: false, Error: ae.Error()})
		if act.SkipOnError {
			s.markCompleted(act.ID)
		}
		// skip_on_error=false leaves act.ID unmarked: every dependent stays
		// pending forever.
		s.rescan(ctx)
		return
	}

	s.store.Put(act.ID, result)
	if act.OutputKey != act.ID {
		s.store.Put(act.OutputKey, result)
	}
	_ = s.publish(ctx, hooks.ActionComplete{
		Base: hooks.Base{RunIDValue: s.runID}, ID: act.ID, OutputKey: act.OutputKey,
		Success: true, Result: result,
	})
	s.recordResult(action.Snapshot{ID: act.ID, OutputKey: act.OutputKey, Success: true, Result: result})
	s.markCompleted(act.ID)
	s.rescan(ctx)
}

func (s *Scheduler) recordResult(snap action.Snapshot) {
	s.mu.Lock()
	s.results = append(s.results, snap)
	s.mu.Unlock()
}

// Results returns a snapshot of every action this Scheduler has completed
// (successfully or not) so far, in completion order. Used by the agent
// loop to build the <iteration_k> history envelope.
func (s *Scheduler) Results() []action.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]action.Snapshot, len(s.results))
	copy(out, s.results)
	return out
}

func (s *Scheduler) markCompleted(id string) {
	s.mu.Lock()
	s.completed[id] = true
	s.mu.Unlock()
}

// rescan walks pending in insertion order, dispatching the first runnable
// action it finds, and repeats from the start until a full pass finds
// nothing left to dispatch. This keeps dispatch order deterministic and
// independent of completion order.
func (s *Scheduler) rescan(ctx context.Context) {
	for {
		s.mu.Lock()
		idx := -1
		for i, act := range s.pending {
			if s.canRun(act) {
				idx = i
				break
			}
		}
		if idx == -1 {
			s.mu.Unlock()
			return
		}
		act := s.pending[idx]
		s.pending = append(s.pending[:idx], s.pending[idx+1:]...)
		s.mu.Unlock()
		s.dispatch(ctx, act)
	}
}

// Pending returns a snapshot of actions still waiting on a dependency.
func (s *Scheduler) Pending() []action.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]action.Action, len(s.pending))
	copy(out, s.pending)
	return out
}

func (s *Scheduler) publish(ctx context.Context, ev hooks.Event) error {
	if s.bus == nil {
		return nil
	}
	return s.bus.Publish(ctx, ev)
}
