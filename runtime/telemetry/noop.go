package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type (
	noopLogger struct{}
	noopMetrics struct{}
	noopTracer  struct{}
	noopSpan    struct{}
)

// Noop returns a Logger, Metrics, and Tracer that discard everything.
// Used as the default when a caller does not configure telemetry.
func Noop() (Logger, Metrics, Tracer) {
	return noopLogger{}, noopMetrics{}, noopTracer{}
}

func (noopLogger) Debug(context.Context, string, ...any) {}
func (noopLogger) Info(context.Context, string, ...any)  {}
func (noopLogger) Warn(context.Context, string, ...any)  {}
func (noopLogger) Error(context.Context, string, ...any) {}

func (noopMetrics) IncCounter(string, float64, ...string)          {}
func (noopMetrics) RecordTimer(string, time.Duration, ...string) {}

func (noopTracer) Start(ctx context.Context, _ string, _ ...trace.SpanStartOption) (context.Context, Span) {
	return ctx, noopSpan{}
}

func (noopSpan) End(...trace.SpanEndOption)                  {}
func (noopSpan) AddEvent(string, ...any)                      {}
func (noopSpan) SetStatus(codes.Code, string)                 {}
func (noopSpan) RecordError(error, ...trace.EventOption)      {}
