// Package session defines durable conversation lifecycle and run metadata
// primitives sitting above the in-process AgentLoop: a Session groups the
// prompt calls ("runs") of one conversation, and a Store persists enough
// of each run's history to survive a process restart. inmem is the
// default Store; mongo backs multi-replica deployments.
package session

import (
	"context"
	"errors"
	"time"
)

type (
	// Session captures durable conversation lifecycle state.
	//
	// Contract:
	// - Session IDs are stable and caller-provided.
	// - Sessions are created explicitly (CreateSession) and ended explicitly
	//   (EndSession).
	// - Ended sessions are terminal: new runs must not start under one.
	Session struct {
		ID        string
		Status    Status
		CreatedAt time.Time
		EndedAt   *time.Time
	}

	// RunRecord captures persistent metadata and history for one
	// AgentLoop.Prompt call.
	RunRecord struct {
		// RunID is the durable identifier assigned to this run.
		RunID string
		// SessionID associates this run with its conversation.
		SessionID string
		// Status is the run's current lifecycle state.
		Status RunStatus
		// UserInput is the prompt text the run was started with.
		UserInput string
		// FinalResponse holds the resolved response content once the run
		// completes, empty while Status is RunStatusRunning.
		FinalResponse string
		// History is the run's (role, content) log, mirroring
		// loop.HistoryRecord.
		History []HistoryRecord
		// StartedAt records when the run began.
		StartedAt time.Time
		// UpdatedAt records when the run record was last written.
		UpdatedAt time.Time
	}

	// HistoryRecord mirrors loop.HistoryRecord without importing runtime/loop,
	// keeping session free of a dependency on the loop package.
	HistoryRecord struct {
		Role    string
		Content string
	}

	// Store persists session lifecycle state and run records. Implementations
	// must be durable: failures are surfaced to callers so the AgentLoop's
	// caller can fail fast when persistence is unavailable.
	Store interface {
		// CreateSession creates (or returns) an active session.
		// Idempotent for active sessions. Returns ErrSessionEnded when the
		// session exists but is terminal.
		CreateSession(ctx context.Context, sessionID string, createdAt time.Time) (Session, error)
		// LoadSession loads an existing session. Returns ErrSessionNotFound
		// when the session does not exist.
		LoadSession(ctx context.Context, sessionID string) (Session, error)
		// EndSession ends a session and returns its terminal state.
		// Idempotent: ending an already-ended session returns the stored
		// session.
		EndSession(ctx context.Context, sessionID string, endedAt time.Time) (Session, error)

		// UpsertRun inserts or updates a run record.
		UpsertRun(ctx context.Context, run RunRecord) error
		// LoadRun loads a run record. Returns ErrRunNotFound when missing.
		LoadRun(ctx context.Context, runID string) (RunRecord, error)
		// ListRunsBySession lists runs for the given session, oldest first.
		ListRunsBySession(ctx context.Context, sessionID string) ([]RunRecord, error)
	}

	// Status is the lifecycle state of a Session.
	Status string

	// RunStatus is the lifecycle state of a RunRecord.
	RunStatus string
)

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"

	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

var (
	// ErrSessionNotFound indicates a session does not exist in the store.
	ErrSessionNotFound = errors.New("session: not found")
	// ErrSessionEnded indicates a session exists but is ended.
	ErrSessionEnded = errors.New("session: ended")
	// ErrRunNotFound indicates a run record does not exist in the store.
	ErrRunNotFound = errors.New("session: run not found")
)
