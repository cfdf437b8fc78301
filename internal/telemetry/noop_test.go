package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/codes"

	"github.com/tdd-orchestrator/tdd/internal/telemetry"
)

func TestNoopLoggerDiscardsEverythingWithoutPanicking(t *testing.T) {
	ctx := context.Background()
	logger := telemetry.NewNoopLogger()

	assert.NotPanics(t, func() {
		logger.Debug(ctx, "debug", "k", "v")
		logger.Info(ctx, "info", "k", "v")
		logger.Warn(ctx, "warn", "k", "v")
		logger.Error(ctx, "error", "k", errors.New("boom"))
	})
}

func TestNoopMetricsDiscardsEverythingWithoutPanicking(t *testing.T) {
	metrics := telemetry.NewNoopMetrics()
	assert.NotPanics(t, func() {
		metrics.IncCounter("calls", 1, "phase", "plan")
		metrics.RecordTimer("latency", time.Second, "phase", "plan")
		metrics.RecordGauge("queue_depth", 3, "phase", "plan")
	})
}

func TestNoopTracerProducesUsableSpans(t *testing.T) {
	tracer := telemetry.NewNoopTracer()
	ctx := context.Background()

	newCtx, span := tracer.Start(ctx, "do-work")
	assert.Equal(t, ctx, newCtx, "the noop tracer must not fabricate a new context")
	assert.NotPanics(t, func() {
		span.AddEvent("step", "n", 1)
		span.SetStatus(codes.Error, "failed")
		span.RecordError(errors.New("boom"))
		span.End()
	})

	assert.NotPanics(t, func() { tracer.Span(ctx).End() })
}
