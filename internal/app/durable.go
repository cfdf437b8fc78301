package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"

	"github.com/tdd-orchestrator/tdd/internal/config"
	"github.com/tdd-orchestrator/tdd/internal/durableworkflow"
	"github.com/tdd-orchestrator/tdd/internal/engine"
	temporalengine "github.com/tdd-orchestrator/tdd/internal/engine/temporal"
	"github.com/tdd-orchestrator/tdd/internal/model"
	"github.com/tdd-orchestrator/tdd/internal/phaseexec"
	"github.com/tdd-orchestrator/tdd/internal/telemetry"
)

// durableTaskQueue is the single Temporal task queue this binary uses: one
// worker process handles both the workflow and its RunPhase activity.
const durableTaskQueue = "tdd-tasks"

// Runner is satisfied by both the in-process Workflow Driver and
// durableRunner below, so run/resume can drive a workflow without knowing
// which backend is active (SPEC_FULL.md §5: when TDD_TEMPORAL_HOST is
// configured, the Workflow Driver runs inside a Temporal workflow (C12)
// instead of a bare in-process loop).
type Runner interface {
	Run(ctx context.Context, featureRequest string) model.WorkflowResult
	Resume(ctx context.Context, state model.HandoffState, featureRequest string) model.WorkflowResult
}

// durableRunner adapts engine.Engine plus the registered TDDWorkflow
// definition to the Runner interface.
type durableRunner struct {
	eng *temporalengine.Engine
}

// buildDurableRunner constructs a Temporal engine adapter pointed at
// cfg.TemporalHost, registers TDDWorkflow and its RunPhase activity, and
// returns a Runner backed by it. The client is lazy (client.NewLazyClient
// under the hood), so this succeeds without a reachable Temporal server;
// the first StartWorkflow call is where a real connection is required.
func buildDurableRunner(cfg config.Config, executor *phaseexec.Executor, logger telemetry.Logger) (*durableRunner, error) {
	eng, err := temporalengine.New(temporalengine.Options{
		ClientOptions: &client.Options{HostPort: cfg.TemporalHost},
		WorkerOptions: temporalengine.WorkerOptions{TaskQueue: durableTaskQueue},
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("app: build temporal engine: %w", err)
	}

	ctx := context.Background()
	if err := eng.RegisterWorkflow(ctx, engine.WorkflowDefinition{
		Name:      durableworkflow.WorkflowName,
		TaskQueue: durableTaskQueue,
		Handler:   durableworkflow.Workflow,
	}); err != nil {
		return nil, fmt.Errorf("app: register durable workflow: %w", err)
	}
	if err := eng.RegisterActivity(ctx, durableworkflow.NewRunPhaseActivity(executor)); err != nil {
		return nil, fmt.Errorf("app: register run-phase activity: %w", err)
	}

	return &durableRunner{eng: eng}, nil
}

func (r *durableRunner) Run(ctx context.Context, featureRequest string) model.WorkflowResult {
	return r.start(ctx, durableworkflow.Input{FeatureRequest: featureRequest})
}

func (r *durableRunner) Resume(ctx context.Context, state model.HandoffState, featureRequest string) model.WorkflowResult {
	return r.start(ctx, durableworkflow.Input{FeatureRequest: featureRequest, InitialState: state})
}

func (r *durableRunner) start(ctx context.Context, input durableworkflow.Input) model.WorkflowResult {
	handle, err := r.eng.StartWorkflow(ctx, engine.WorkflowStartRequest{
		ID:        "tdd-" + uuid.NewString(),
		Workflow:  durableworkflow.WorkflowName,
		TaskQueue: durableTaskQueue,
		Input:     input,
	})
	if err != nil {
		return model.WorkflowResult{Success: false, ErrorMessage: fmt.Sprintf("app: start durable workflow: %v", err)}
	}

	var result model.WorkflowResult
	if err := handle.Wait(ctx, &result); err != nil {
		return model.WorkflowResult{Success: false, ErrorMessage: fmt.Sprintf("app: await durable workflow: %v", err)}
	}
	return result
}

// Close shuts down the Temporal client this runner created.
func (r *durableRunner) Close() error { return r.eng.Close() }
