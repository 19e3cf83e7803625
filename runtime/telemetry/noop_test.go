package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
)

func TestNoopLoggerDiscardsEverything(t *testing.T) {
	logger, _, _ := Noop()
	ctx := context.Background()
	require.NotPanics(t, func() {
		logger.Debug(ctx, "debug", "k", "v")
		logger.Info(ctx, "info")
		logger.Warn(ctx, "warn", "k", 1)
		logger.Error(ctx, "error", errors.New("boom"))
	})
}

func TestNoopMetricsDiscardsEverything(t *testing.T) {
	_, metrics, _ := Noop()
	require.NotPanics(t, func() {
		metrics.IncCounter("requests", 1, "route=/x")
		metrics.RecordTimer("latency", 5*time.Millisecond)
	})
}

func TestNoopTracerReturnsUsableSpan(t *testing.T) {
	_, _, tracer := Noop()
	ctx := context.Background()
	spanCtx, span := tracer.Start(ctx, "op")
	require.Equal(t, ctx, spanCtx)
	require.NotPanics(t, func() {
		span.AddEvent("evt")
		span.SetStatus(codes.Error, "failed")
		span.RecordError(errors.New("boom"))
		span.End()
	})
}
