// Package workflow implements the Workflow Driver (spec.md §4.9): the
// top-level PLAN → RED → GREEN → REFACTOR → PLAN state machine, with
// per-phase retry, rollback, and a hard cycle cap.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/tdd-orchestrator/tdd/internal/classify"
	"github.com/tdd-orchestrator/tdd/internal/gitops"
	"github.com/tdd-orchestrator/tdd/internal/model"
	"github.com/tdd-orchestrator/tdd/internal/outparser"
	"github.com/tdd-orchestrator/tdd/internal/phaseexec"
	"github.com/tdd-orchestrator/tdd/internal/telemetry"
)

// MaxCycles hard-caps the number of PLAN→RED→GREEN→REFACTOR passes a single
// run may take, terminating the workflow in failure to prevent runaway
// loops (spec.md §4.9).
const MaxCycles = 100

// Clock abstracts time.Now so tests can control timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Sleeper abstracts backoff waits so tests never actually sleep, and so
// cancellation can interrupt a wait in flight.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Driver runs the top-level state machine.
type Driver struct {
	executor *phaseexec.Executor
	repo     *gitops.Repo
	clock    Clock
	sleeper  Sleeper
	logger   telemetry.Logger
}

// Option configures a Driver at construction time.
type Option func(*Driver)

// WithClock overrides the default wall-clock time source.
func WithClock(c Clock) Option { return func(d *Driver) { d.clock = c } }

// WithSleeper overrides the default real-time backoff sleeper.
func WithSleeper(s Sleeper) Option { return func(d *Driver) { d.sleeper = s } }

// WithLogger attaches a structured logger.
func WithLogger(l telemetry.Logger) Option { return func(d *Driver) { d.logger = l } }

// New constructs a Driver.
func New(executor *phaseexec.Executor, repo *gitops.Repo, opts ...Option) *Driver {
	d := &Driver{
		executor: executor,
		repo:     repo,
		clock:    systemClock{},
		sleeper:  realSleeper{},
		logger:   telemetry.NewNoopLogger(),
	}
	for _, o := range opts {
		if o != nil {
			o(d)
		}
	}
	return d
}

// Run drives featureRequest through the full state machine, starting fresh
// at PLAN, cycle 1 (spec.md §4.9).
func (d *Driver) Run(ctx context.Context, featureRequest string) model.WorkflowResult {
	state := model.NewInitial(d.clock.Now())
	return d.loop(ctx, state, model.PhasePlan, featureRequest)
}

// Resume continues a workflow from a previously observed state — typically
// the Handoff Store's latest record — picking up at that record's
// nextPhase, since the record's own phase field names what already ran.
func (d *Driver) Resume(ctx context.Context, state model.HandoffState, featureRequest string) model.WorkflowResult {
	phaseToRun := state.NextPhase
	if phaseToRun == "" {
		phaseToRun = state.Phase
	}
	return d.loop(ctx, state, phaseToRun, featureRequest)
}

func (d *Driver) loop(ctx context.Context, state model.HandoffState, phaseToRun model.Phase, featureRequest string) model.WorkflowResult {
	var results []model.PhaseResult
	cycles := 0
	lastGoodCommit := ""

	for {
		if phaseToRun == model.PhaseComplete {
			return model.WorkflowResult{
				Success:         true,
				FinalState:      state,
				CompletedCycles: cycles,
				PhaseResults:    results,
			}
		}
		if cycles >= MaxCycles {
			return model.WorkflowResult{
				Success:      false,
				FinalState:   state,
				PhaseResults: results,
				ErrorMessage: fmt.Sprintf("workflow: exceeded max cycles (%d)", MaxCycles),
			}
		}

		result, proceeded, err := d.runWithRetry(ctx, phaseToRun, state, featureRequest, &lastGoodCommit, &results)
		if err != nil {
			return model.WorkflowResult{
				Success:      false,
				FinalState:   state,
				PhaseResults: results,
				ErrorMessage: err.Error(),
			}
		}
		if !proceeded {
			return model.WorkflowResult{
				Success:      false,
				FinalState:   result.UpdatedState,
				PhaseResults: results,
				ErrorMessage: fmt.Sprintf("workflow: phase %s: %s", phaseToRun, result.ErrorMessage),
			}
		}

		nextState, nextPhase, err := d.applyTransition(phaseToRun, result)
		if err != nil {
			return model.WorkflowResult{
				Success:      false,
				FinalState:   result.UpdatedState,
				PhaseResults: results,
				ErrorMessage: fmt.Sprintf("workflow: phase %s: %s", phaseToRun, err.Error()),
			}
		}

		if phaseToRun == model.PhaseRefactor {
			cycles++
		}
		state = nextState
		phaseToRun = nextPhase
	}
}

// runWithRetry wraps one Phase Executor call in the retry/rollback/backoff
// loop of spec.md §4.9: up to MAX_RETRIES_PER_PHASE+1 attempts, consulting
// the Recovery Strategy between attempts.
//
// proceeded is true when the workflow should continue composing the next
// state from result, even if result.Success is false — this covers the
// CONTINUE recovery action, where a classified TEST_FAILURE in RED is the
// expected outcome rather than a real error.
func (d *Driver) runWithRetry(
	ctx context.Context,
	phase model.Phase,
	state model.HandoffState,
	featureRequest string,
	lastGoodCommit *string,
	results *[]model.PhaseResult,
) (model.PhaseResult, bool, error) {
	attempt := 0
	for {
		attempt++
		result := d.executor.RunPhase(ctx, phase, state, featureRequest)
		*results = append(*results, result)

		if result.Success {
			if result.CommitID != "" {
				*lastGoodCommit = result.CommitID
			}
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
			if *lastGoodCommit != "" {
				if err := d.repo.Rollback(ctx, *lastGoodCommit); err != nil {
					return result, false, fmt.Errorf("rollback to %s: %w", *lastGoodCommit, err)
				}
			}
		case classify.ActionWaitAndRetry:
			if err := d.sleeper.Sleep(ctx, classify.Backoff(attempt)); err != nil {
				return result, false, fmt.Errorf("backoff sleep: %w", err)
			}
		case classify.ActionRetryWithContext:
			// fall through: retry immediately, with the failure attached
			// to state below as context for the next attempt's prompt.
		}

		details := model.ErrorDetails{Type: string(kind), Message: result.ErrorMessage}
		state = state.WithFailure(result.ErrorMessage, details, d.clock.Now())
		d.logger.Warn(ctx, "phase attempt failed, retrying", "phase", phase, "attempt", attempt, "kind", kind, "action", action)
	}
}

// applyTransition composes the Workflow Driver's own state mutations on top
// of a successful (or CONTINUE-recovered) PhaseResult: PLAN's test
// selection via the Output Parser, and REFACTOR's completed/pending
// bookkeeping and cycle increment (spec.md §4.9's transition table). It
// returns the state to carry forward and the phase to run next; RED and
// GREEN need no composition beyond what the Phase Executor already wrote,
// so the next phase there is simply result.UpdatedState.NextPhase.
func (d *Driver) applyTransition(phase model.Phase, result model.PhaseResult) (model.HandoffState, model.Phase, error) {
	state := result.UpdatedState

	switch phase {
	case model.PhasePlan:
		test, err := outparser.ExtractCurrentTest(result.AgentResponseText)
		if err != nil {
			return state, "", fmt.Errorf("output parser: %w", err)
		}
		out := state.ClearError()
		out.Timestamp = d.clock.Now()
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
		out.Timestamp = d.clock.Now()
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
