// Package engine abstracts the "background task" the scheduler dispatches
// async and fire_and_forget actions onto. The default backend (inmem) is a
// bounded goroutine pool; the temporal backend runs the same function as a
// durable Temporal activity so dispatch survives a process restart. Either
// way the scheduler's ordering and completion semantics are unchanged —
// only the durability of the dispatch changes.
package engine

import "context"

// Engine runs fn in the background and reports its outcome on the
// returned channel exactly once.
type Engine interface {
	Go(ctx context.Context, fn func(context.Context) error) <-chan error
}
