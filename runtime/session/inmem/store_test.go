package inmem

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Trafexofive/Cortex-MK1/runtime/session"
)

func TestCreateSessionIsIdempotentForActiveSessions(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	first, err := s.CreateSession(ctx, "sess-1", now)
	require.NoError(t, err)
	require.Equal(t, session.StatusActive, first.Status)

	second, err := s.CreateSession(ctx, "sess-1", now.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, first.CreatedAt, second.CreatedAt)
}

func TestCreateSessionAfterEndReturnsErrSessionEnded(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	_, err := s.CreateSession(ctx, "sess-1", now)
	require.NoError(t, err)
	_, err = s.EndSession(ctx, "sess-1", now.Add(time.Minute))
	require.NoError(t, err)

	_, err = s.CreateSession(ctx, "sess-1", now.Add(2*time.Minute))
	require.ErrorIs(t, err, session.ErrSessionEnded)
}

func TestLoadSessionNotFound(t *testing.T) {
	s := New()
	_, err := s.LoadSession(context.Background(), "missing")
	require.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestEndSessionIsIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()
	_, err := s.CreateSession(ctx, "sess-1", now)
	require.NoError(t, err)

	first, err := s.EndSession(ctx, "sess-1", now.Add(time.Minute))
	require.NoError(t, err)
	second, err := s.EndSession(ctx, "sess-1", now.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, first.EndedAt, second.EndedAt)
}

func TestUpsertRunPreservesStartedAt(t *testing.T) {
	s := New()
	ctx := context.Background()
	started := time.Now().Add(-time.Minute)

	err := s.UpsertRun(ctx, session.RunRecord{
		RunID:     "run-1",
		SessionID: "sess-1",
		Status:    session.RunStatusRunning,
		StartedAt: started,
	})
	require.NoError(t, err)

	err = s.UpsertRun(ctx, session.RunRecord{
		RunID:     "run-1",
		SessionID: "sess-1",
		Status:    session.RunStatusCompleted,
		History:   []session.HistoryRecord{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)

	run, err := s.LoadRun(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, session.RunStatusCompleted, run.Status)
	require.WithinDuration(t, started, run.StartedAt, time.Second)
	require.Len(t, run.History, 1)
}

func TestLoadRunNotFound(t *testing.T) {
	s := New()
	_, err := s.LoadRun(context.Background(), "missing")
	require.ErrorIs(t, err, session.ErrRunNotFound)
}

func TestListRunsBySessionOrdersByStartTime(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, s.UpsertRun(ctx, session.RunRecord{RunID: "run-2", SessionID: "sess-1", StartedAt: base.Add(time.Minute)}))
	require.NoError(t, s.UpsertRun(ctx, session.RunRecord{RunID: "run-1", SessionID: "sess-1", StartedAt: base}))
	require.NoError(t, s.UpsertRun(ctx, session.RunRecord{RunID: "run-3", SessionID: "sess-2", StartedAt: base}))

	runs, err := s.ListRunsBySession(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "run-1", runs[0].RunID)
	require.Equal(t, "run-2", runs[1].RunID)
}

func TestCloneRunIsolatesHistorySlice(t *testing.T) {
	s := New()
	ctx := context.Background()

	history := []session.HistoryRecord{{Role: "user", Content: "hi"}}
	require.NoError(t, s.UpsertRun(ctx, session.RunRecord{RunID: "run-1", SessionID: "sess-1", History: history}))

	run, err := s.LoadRun(ctx, "run-1")
	require.NoError(t, err)
	run.History[0].Content = "mutated"

	again, err := s.LoadRun(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, "hi", again.History[0].Content)
}
