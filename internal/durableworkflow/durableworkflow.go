// Package durableworkflow wires the Workflow Driver's state machine onto
// the Durable Execution Adapter (engine.Engine): the deterministic
// PLAN/RED/GREEN/REFACTOR transition logic runs inline as workflow code,
// while every phase attempt — which talks to an LLM, runs bash, and shells
// out to git — runs as a single activity, RunPhaseActivity.
package durableworkflow

import (
	"context"
	"fmt"

	"github.com/tdd-orchestrator/tdd/internal/classify"
	"github.com/tdd-orchestrator/tdd/internal/engine"
	"github.com/tdd-orchestrator/tdd/internal/model"
	"github.com/tdd-orchestrator/tdd/internal/outparser"
	"github.com/tdd-orchestrator/tdd/internal/phaseexec"
)

// WorkflowName is the name this workflow is registered under.
const WorkflowName = "TDDWorkflow"

// RunPhaseActivityName is the name the single activity is registered
// under.
const RunPhaseActivityName = "RunPhase"

// MaxCycles mirrors workflow.MaxCycles: a hard cap on PLAN→RED→GREEN→
// REFACTOR passes, terminating the workflow in failure to prevent runaway
// loops (spec.md §4.9).
const MaxCycles = 100

// Input starts a durable workflow run.
type Input struct {
	FeatureRequest string
	InitialState   model.HandoffState
}

// RunPhaseInput is the serializable payload RunPhaseActivity receives.
type RunPhaseInput struct {
	Phase          model.Phase
	State          model.HandoffState
	FeatureRequest string
}

// NewRunPhaseActivity binds executor to an engine.ActivityDefinition. The
// executor itself (holding the LLM client, dispatcher, repo, and handoff
// store) is constructed once per worker process and captured by closure;
// only the (phase, state, featureRequest) triple crosses the
// activity boundary as data.
func NewRunPhaseActivity(executor *phaseexec.Executor) engine.ActivityDefinition {
	return engine.ActivityDefinition{
		Name: RunPhaseActivityName,
		Handler: func(ctx context.Context, input any) (any, error) {
			in, ok := input.(RunPhaseInput)
			if !ok {
				return nil, fmt.Errorf("durableworkflow: RunPhaseActivity received unexpected input type %T", input)
			}
			result := executor.RunPhase(ctx, in.Phase, in.State, in.FeatureRequest)
			return result, nil
		},
	}
}

// Workflow is the WorkflowFunc registered under WorkflowName. It replays
// the same state machine as workflow.Driver, but every phase attempt goes
// through ctx.ExecuteActivity instead of calling the Phase Executor
// in-process, so phase execution survives a worker crash and resumes from
// Temporal's own history rather than from the Handoff Store.
func Workflow(ctx engine.WorkflowContext, rawInput any) (any, error) {
	input, ok := rawInput.(Input)
	if !ok {
		return nil, fmt.Errorf("durableworkflow: unexpected input type %T", rawInput)
	}

	state := input.InitialState
	if state.Timestamp.IsZero() {
		state = model.NewInitial(ctx.Now())
	}
	phaseToRun := state.Phase
	if phaseToRun == "" {
		phaseToRun = model.PhasePlan
	}

	var results []model.PhaseResult
	cycles := 0

	for {
		if phaseToRun == model.PhaseComplete {
			return model.WorkflowResult{
				Success:         true,
				FinalState:      state,
				CompletedCycles: cycles,
				PhaseResults:    results,
			}, nil
		}
		if cycles >= MaxCycles {
			return model.WorkflowResult{
				Success:      false,
				FinalState:   state,
				PhaseResults: results,
				ErrorMessage: fmt.Sprintf("durableworkflow: exceeded max cycles (%d)", MaxCycles),
			}, nil
		}

		result, proceeded, err := runWithRetry(ctx, phaseToRun, state, input.FeatureRequest, &results)
		if err != nil {
			return model.WorkflowResult{Success: false, FinalState: state, PhaseResults: results, ErrorMessage: err.Error()}, nil
		}
		if !proceeded {
			return model.WorkflowResult{
				Success:      false,
				FinalState:   result.UpdatedState,
				PhaseResults: results,
				ErrorMessage: fmt.Sprintf("durableworkflow: phase %s: %s", phaseToRun, result.ErrorMessage),
			}, nil
		}

		nextState, nextPhase, err := applyTransition(ctx, phaseToRun, result)
		if err != nil {
			return model.WorkflowResult{
				Success:      false,
				FinalState:   result.UpdatedState,
				PhaseResults: results,
				ErrorMessage: fmt.Sprintf("durableworkflow: phase %s: %s", phaseToRun, err.Error()),
			}, nil
		}

		if phaseToRun == model.PhaseRefactor {
			cycles++
		}
		state = nextState
		phaseToRun = nextPhase
	}
}

func runWithRetry(
	ctx engine.WorkflowContext,
	phase model.Phase,
	state model.HandoffState,
	featureRequest string,
	results *[]model.PhaseResult,
) (model.PhaseResult, bool, error) {
	attempt := 0
	for {
		attempt++
		var result model.PhaseResult
		err := ctx.ExecuteActivity(ctx.Context(), engine.ActivityRequest{
			Name:  RunPhaseActivityName,
			Input: RunPhaseInput{Phase: phase, State: state, FeatureRequest: featureRequest},
		}, &result)
		if err != nil {
			return model.PhaseResult{ExecutedPhase: phase, UpdatedState: state, ErrorMessage: err.Error()}, false, nil
		}
		*results = append(*results, result)

		if result.Success {
			return result, true, nil
		}

		kind := classify.Classify(phase, result.AgentResponseText+"\n"+result.ErrorMessage)
		action := classify.SelectAction(kind, phase, state.RetryCount)

		switch action {
		case classify.ActionContinue:
			return result, true, nil
		case classify.ActionAbort:
			return result, false, nil
		case classify.ActionRollbackAndRetry:
			// No rollback happens here: the workflow holds no repository
			// handle and the activity only calls RunPhase, so the workspace
			// is not reset and the retry proceeds with the failure attached
			// to state below, as for RETRY_WITH_CONTEXT.
		case classify.ActionWaitAndRetry:
			timer, err := ctx.NewTimer(ctx.Context(), classify.Backoff(attempt))
			if err != nil {
				return result, false, err
			}
			if err := timer.Get(ctx.Context(), nil); err != nil {
				return result, false, err
			}
		case classify.ActionRetryWithContext:
			// retry immediately, with the failure attached to state below
		}

		details := model.ErrorDetails{Type: string(kind), Message: result.ErrorMessage}
		state = state.WithFailure(result.ErrorMessage, details, ctx.Now())
	}
}

// applyTransition mirrors workflow.Driver's applyTransition exactly, using
// ctx.Now() as the replay-safe clock instead of a Clock capability.
func applyTransition(ctx engine.WorkflowContext, phase model.Phase, result model.PhaseResult) (model.HandoffState, model.Phase, error) {
	state := result.UpdatedState

	switch phase {
	case model.PhasePlan:
		test, err := outparser.ExtractCurrentTest(result.AgentResponseText)
		if err != nil {
			return state, "", fmt.Errorf("output parser: %w", err)
		}
		out := state.ClearError()
		out.Timestamp = ctx.Now()
		if test == nil {
			out.Phase = model.PhaseComplete
			out.NextPhase = ""
			out.CurrentTest = nil
			out.PendingTests = nil
			return out, model.PhaseComplete, nil
		}
		out.CurrentTest = test
		out.PendingTests = removeString(out.PendingTests, test.Description)
		return out, model.PhaseRed, nil

	case model.PhaseRefactor:
		out := state.ClearError()
		if out.CurrentTest != nil {
			out.CompletedTests = append(out.CompletedTests, out.CurrentTest.Description)
			out.PendingTests = removeString(out.PendingTests, out.CurrentTest.Description)
		}
		out.CurrentTest = nil
		out.CycleNumber++
		out.Timestamp = ctx.Now()
		return out, model.PhasePlan, nil

	default: // RED, GREEN
		return state, state.NextPhase, nil
	}
}

func removeString(ss []string, target string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}
