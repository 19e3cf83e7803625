package inmem

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGoRunsFnAndDeliversResult(t *testing.T) {
	e := New(0)
	done := e.Go(context.Background(), func(context.Context) error { return nil })
	require.NoError(t, <-done)
}

func TestGoDeliversFnError(t *testing.T) {
	e := New(0)
	boom := errors.New("boom")
	done := e.Go(context.Background(), func(context.Context) error { return boom })
	require.ErrorIs(t, <-done, boom)
}

func TestGoBoundsConcurrency(t *testing.T) {
	e := New(1)
	release := make(chan struct{})
	var running int32

	first := e.Go(context.Background(), func(context.Context) error {
		atomic.AddInt32(&running, 1)
		<-release
		return nil
	})

	// Give the first task a chance to acquire the single slot.
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	second := e.Go(ctx, func(context.Context) error {
		atomic.AddInt32(&running, 1)
		return nil
	})

	require.ErrorIs(t, <-second, context.DeadlineExceeded)
	require.Equal(t, int32(1), atomic.LoadInt32(&running))

	close(release)
	require.NoError(t, <-first)
}

func TestGoUnboundedAllowsConcurrentTasks(t *testing.T) {
	e := New(-1)
	const n = 8
	results := make([]<-chan error, n)
	for i := 0; i < n; i++ {
		results[i] = e.Go(context.Background(), func(context.Context) error { return nil })
	}
	for _, r := range results {
		require.NoError(t, <-r)
	}
}
