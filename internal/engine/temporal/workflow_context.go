package temporal

import (
	"context"
	"time"

	sdktemporal "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/tdd-orchestrator/tdd/internal/engine"
	"github.com/tdd-orchestrator/tdd/internal/telemetry"
)

// workflowContext adapts a Temporal workflow.Context to engine.WorkflowContext.
type workflowContext struct {
	engine *Engine
	ctx    workflow.Context
}

func newWorkflowContext(e *Engine, ctx workflow.Context) *workflowContext {
	return &workflowContext{engine: e, ctx: ctx}
}

func (w *workflowContext) Context() context.Context {
	return context.Background()
}

func (w *workflowContext) WorkflowID() string {
	return workflow.GetInfo(w.ctx).WorkflowExecution.ID
}

func (w *workflowContext) RunID() string {
	return workflow.GetInfo(w.ctx).WorkflowExecution.RunID
}

func (w *workflowContext) ExecuteActivity(_ context.Context, req engine.ActivityRequest, result any) error {
	actx := w.activityContext(req.Queue, req.RetryPolicy, req.Timeout)
	return workflow.ExecuteActivity(actx, req.Name, req.Input).Get(actx, result)
}

func (w *workflowContext) ExecuteActivityAsync(_ context.Context, req engine.ActivityRequest) (engine.Future, error) {
	actx := w.activityContext(req.Queue, req.RetryPolicy, req.Timeout)
	fut := workflow.ExecuteActivity(actx, req.Name, req.Input)
	return &future{ctx: actx, fut: fut}, nil
}

func (w *workflowContext) activityContext(queue string, rp engine.RetryPolicy, timeout time.Duration) workflow.Context {
	opts := workflow.ActivityOptions{TaskQueue: queue}
	if timeout > 0 {
		opts.StartToCloseTimeout = timeout
	} else {
		opts.StartToCloseTimeout = 10 * time.Minute
	}
	if policy := convertRetryPolicy(rp); policy != nil {
		opts.RetryPolicy = policy
	} else {
		opts.RetryPolicy = &sdktemporal.RetryPolicy{MaximumAttempts: 1}
	}
	return workflow.WithActivityOptions(w.ctx, opts)
}

func (w *workflowContext) SignalChannel(name string) engine.SignalChannel {
	return &signalChannel{ctx: w.ctx, ch: workflow.GetSignalChannel(w.ctx, name)}
}

func (w *workflowContext) Logger() telemetry.Logger   { return w.engine.logger }
func (w *workflowContext) Metrics() telemetry.Metrics { return w.engine.metrics }
func (w *workflowContext) Tracer() telemetry.Tracer   { return w.engine.tracer }

func (w *workflowContext) Now() time.Time {
	return workflow.Now(w.ctx)
}

func (w *workflowContext) NewTimer(_ context.Context, d time.Duration) (engine.Future, error) {
	return &future{ctx: w.ctx, fut: workflow.NewTimer(w.ctx, d)}, nil
}

type future struct {
	ctx workflow.Context
	fut workflow.Future
}

func (f *future) Get(_ context.Context, result any) error {
	return f.fut.Get(f.ctx, result)
}

func (f *future) IsReady() bool {
	return f.fut.IsReady()
}

type signalChannel struct {
	ctx workflow.Context
	ch  workflow.ReceiveChannel
}

func (s *signalChannel) Receive(_ context.Context, dest any) error {
	s.ch.Receive(s.ctx, dest)
	return nil
}

func (s *signalChannel) ReceiveAsync(dest any) bool {
	return s.ch.ReceiveAsync(dest)
}
