// Package inmem implements engine.Engine as a bounded in-process goroutine
// pool. It is the default background-task backend: every async and
// fire_and_forget action runs here unless a durable backend (see
// runtime/engine/temporal) is configured.
package inmem

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/Trafexofive/Cortex-MK1/runtime/engine"
)

// Engine bounds the number of concurrently running background tasks with a
// weighted semaphore. A zero-value Engine has no bound.
type Engine struct {
	sem *semaphore.Weighted
}

// New constructs an Engine that allows at most maxConcurrent background
// tasks to run at once. maxConcurrent <= 0 means unbounded.
func New(maxConcurrent int64) *Engine {
	if maxConcurrent <= 0 {
		return &Engine{}
	}
	return &Engine{sem: semaphore.NewWeighted(maxConcurrent)}
}

// Go runs fn on a new goroutine, blocking the caller only long enough to
// acquire a slot in the pool (or to observe ctx cancellation while
// waiting). The returned channel receives fn's result exactly once.
func (e *Engine) Go(ctx context.Context, fn func(context.Context) error) <-chan error {
	done := make(chan error, 1)
	if e.sem != nil {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			done <- err
			close(done)
			return done
		}
	}
	go func() {
		if e.sem != nil {
			defer e.sem.Release(1)
		}
		done <- fn(ctx)
		close(done)
	}()
	return done
}

var _ engine.Engine = (*Engine)(nil)
