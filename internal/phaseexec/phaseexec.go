// Package phaseexec implements the Phase Executor (spec.md §4.7): it runs
// exactly one phase of the Red-Green-Refactor cycle, gluing together the
// Prompt Builder, Agent Invoker, Repository Operations, and Handoff Store.
package phaseexec

import (
	"context"
	"fmt"
	"time"

	"github.com/tdd-orchestrator/tdd/internal/gitops"
	"github.com/tdd-orchestrator/tdd/internal/handoff"
	"github.com/tdd-orchestrator/tdd/internal/invoker"
	"github.com/tdd-orchestrator/tdd/internal/model"
	"github.com/tdd-orchestrator/tdd/internal/promptbuilder"
	"github.com/tdd-orchestrator/tdd/internal/telemetry"
)

// Clock abstracts time.Now so tests can control timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// AgentResolver maps a phase to the agent configuration that executes it.
// COMPLETE is never resolved: RunPhase rejects it before consulting the
// resolver.
type AgentResolver func(phase model.Phase) (invoker.AgentConfig, error)

// Executor runs one phase to a PhaseResult.
type Executor struct {
	invoker  *invoker.Invoker
	repo     *gitops.Repo
	handoffs *handoff.Store
	resolve  AgentResolver
	clock    Clock
	logger   telemetry.Logger
}

// Option configures an Executor at construction time.
type Option func(*Executor)

// WithClock overrides the default wall-clock time source.
func WithClock(c Clock) Option {
	return func(e *Executor) { e.clock = c }
}

// WithLogger attaches a structured logger.
func WithLogger(l telemetry.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// New constructs an Executor.
func New(inv *invoker.Invoker, repo *gitops.Repo, handoffs *handoff.Store, resolve AgentResolver, opts ...Option) *Executor {
	e := &Executor{
		invoker:  inv,
		repo:     repo,
		handoffs: handoffs,
		resolve:  resolve,
		clock:    systemClock{},
		logger:   telemetry.NewNoopLogger(),
	}
	for _, o := range opts {
		if o != nil {
			o(e)
		}
	}
	return e
}

// RunPhase executes phase against state, per spec.md §4.7's algorithm.
// COMPLETE is invalid input and always yields a failure PhaseResult,
// consistent with step 1's rejection rather than a panic, since an
// invalid phase request is a programmer error the caller should be able
// to observe and log rather than crash on.
func (e *Executor) RunPhase(ctx context.Context, phase model.Phase, state model.HandoffState, featureRequest string) model.PhaseResult {
	if phase == model.PhaseComplete {
		return e.failure(phase, state, "phaseexec: COMPLETE is not a runnable phase")
	}

	cfg, err := e.resolve(phase)
	if err != nil {
		return e.failure(phase, state, fmt.Sprintf("resolve agent config: %v", err))
	}

	prompt, err := promptbuilder.Build(phase, state, featureRequest)
	if err != nil {
		return e.failure(phase, state, fmt.Sprintf("build prompt: %v", err))
	}

	// before is best-effort: an empty workspace has no HEAD yet, which is
	// not itself an error, only a signal that any commit found afterward
	// is necessarily new.
	before, _ := e.repo.LatestCommit(ctx)

	agentResp, err := e.invoker.Run(ctx, cfg, prompt)
	if err != nil {
		return e.failure(phase, state, fmt.Sprintf("invoke agent: %v", err))
	}

	after, err := e.repo.LatestCommit(ctx)
	if err != nil {
		return e.failure(phase, state, fmt.Sprintf("query latest commit: %v", err))
	}
	var commitID string
	if after != before {
		commitID = after
	}

	next, err := phase.Next()
	if err != nil {
		return e.failure(phase, state, fmt.Sprintf("resolve next phase: %v", err))
	}

	updated := state.ClearError()
	updated.Phase = phase
	updated.NextPhase = next
	updated.Timestamp = e.clock.Now()

	result := model.PhaseResult{
		ExecutedPhase:     phase,
		UpdatedState:      updated,
		CommitID:          commitID,
		AgentResponseText: agentResp.FinalText,
		Success:           true,
	}

	if commitID == "" {
		result.ErrorMessage = "phaseexec: agent produced no commit"
		return result
	}
	if err := e.handoffs.Write(ctx, commitID, updated); err != nil {
		return e.failure(phase, state, fmt.Sprintf("write handoff record: %v", err))
	}
	return result
}

func (e *Executor) failure(phase model.Phase, stateAtEntry model.HandoffState, message string) model.PhaseResult {
	e.logger.Error(context.Background(), "phase execution failed", "phase", phase, "error", message)
	return model.PhaseResult{
		ExecutedPhase: phase,
		UpdatedState:  stateAtEntry,
		Success:       false,
		ErrorMessage:  message,
	}
}
