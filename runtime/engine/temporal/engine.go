// Package temporal implements engine.Engine on top of Temporal: every
// background task the scheduler dispatches is executed as a Temporal
// workflow wrapping a single generic activity, giving async and
// fire_and_forget actions Temporal's retry policy, visibility, and crash
// recovery instead of a bare goroutine. The action closure itself still
// runs in this process's worker (a Go func() cannot cross a process
// boundary); what survives a worker restart is Temporal's record of the
// attempt, matching the durability story a workflow engine is meant to
// provide here.
package temporal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/Trafexofive/Cortex-MK1/runtime/engine"
)

const (
	workflowName = "CortexActionWorkflow"
	activityName = "CortexRunAction"
)

// Options configures a new Engine.
type Options struct {
	// Client is a pre-configured Temporal client. If nil, the engine
	// creates a lazy client from ClientOptions.
	Client client.Client
	// ClientOptions configures a lazily-created client when Client is nil.
	ClientOptions client.Options
	// TaskQueue is the queue the engine's worker polls. Required.
	TaskQueue string
	// DisableTracing skips installing the OTEL tracing interceptor.
	DisableTracing bool
}

// Engine dispatches background tasks as Temporal workflow executions.
type Engine struct {
	client      client.Client
	closeClient bool
	taskQueue   string
	worker      worker.Worker

	startOnce sync.Once

	mu      sync.Mutex
	pending map[string]func(context.Context) error
}

// New constructs a Temporal-backed Engine and registers its workflow and
// activity on a worker for opts.TaskQueue.
func New(opts Options) (*Engine, error) {
	if opts.TaskQueue == "" {
		return nil, fmt.Errorf("temporal engine: task queue is required")
	}

	cli := opts.Client
	closeClient := false
	if cli == nil {
		clientOpts := opts.ClientOptions
		if !opts.DisableTracing {
			tracer, err := temporalotel.NewTracingInterceptor(temporalotel.TracerOptions{})
			if err != nil {
				return nil, fmt.Errorf("temporal engine: configure tracing: %w", err)
			}
			clientOpts.Interceptors = append(clientOpts.Interceptors, tracer)
		}
		var err error
		cli, err = client.NewLazyClient(clientOpts)
		if err != nil {
			return nil, fmt.Errorf("temporal engine: create client: %w", err)
		}
		closeClient = true
	}

	e := &Engine{
		client:      cli,
		closeClient: closeClient,
		taskQueue:   opts.TaskQueue,
		pending:     make(map[string]func(context.Context) error),
	}

	w := worker.New(cli, opts.TaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(e.runActionWorkflow, workflow.RegisterOptions{Name: workflowName})
	w.RegisterActivityWithOptions(e.runActionActivity, activity.RegisterOptions{Name: activityName})
	e.worker = w

	return e, nil
}

// Start begins polling opts.TaskQueue for workflow and activity tasks.
// Idempotent: subsequent calls are no-ops.
func (e *Engine) Start() error {
	var startErr error
	e.startOnce.Do(func() {
		startErr = e.worker.Start()
	})
	return startErr
}

// Close stops the worker and, if this Engine created its own Temporal
// client, closes it.
func (e *Engine) Close() {
	e.worker.Stop()
	if e.closeClient {
		e.client.Close()
	}
}

// Go starts a Temporal workflow execution that runs fn via CortexRunAction
// and reports its outcome on the returned channel exactly once.
func (e *Engine) Go(ctx context.Context, fn func(context.Context) error) <-chan error {
	done := make(chan error, 1)
	token := uuid.NewString()

	e.mu.Lock()
	e.pending[token] = fn
	e.mu.Unlock()

	run, err := e.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "cortex-action-" + token,
		TaskQueue: e.taskQueue,
	}, workflowName, token)
	if err != nil {
		e.forget(token)
		done <- fmt.Errorf("temporal engine: start workflow: %w", err)
		close(done)
		return done
	}

	go func() {
		defer e.forget(token)
		done <- run.Get(ctx, nil)
		close(done)
	}()
	return done
}

func (e *Engine) forget(token string) {
	e.mu.Lock()
	delete(e.pending, token)
	e.mu.Unlock()
}

func (e *Engine) runActionWorkflow(ctx workflow.Context, token string) error {
	ao := workflow.ActivityOptions{StartToCloseTimeout: 5 * time.Minute}
	ctx = workflow.WithActivityOptions(ctx, ao)
	return workflow.ExecuteActivity(ctx, activityName, token).Get(ctx, nil)
}

func (e *Engine) runActionActivity(ctx context.Context, token string) error {
	e.mu.Lock()
	fn, ok := e.pending[token]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("temporal engine: no pending action for token %q", token)
	}
	return fn(ctx)
}

var _ engine.Engine = (*Engine)(nil)
