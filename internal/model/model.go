// Package model defines the data shared across every component of the TDD
// orchestrator: the phase enum, the test selection record, and the handoff
// state that the Phase Executor and Workflow Driver compose and the Handoff
// Store persists.
//
// Values here are immutable by convention: builders copy a HandoffState,
// mutate the copy, and hand back a fresh value. No component holds a
// pointer into another component's state.
package model

import (
	"fmt"
	"time"
)

// Phase is one step in a Red-Green-Refactor cycle.
type Phase string

const (
	// PhasePlan selects the next test (or signals completion).
	PhasePlan Phase = "PLAN"
	// PhaseRed writes a failing test.
	PhaseRed Phase = "RED"
	// PhaseGreen makes the failing test pass.
	PhaseGreen Phase = "GREEN"
	// PhaseRefactor cleans up while keeping tests green.
	PhaseRefactor Phase = "REFACTOR"
	// PhaseComplete is terminal; it is never executed.
	PhaseComplete Phase = "COMPLETE"
)

// Valid reports whether p is one of the five closed phase values.
func (p Phase) Valid() bool {
	switch p {
	case PhasePlan, PhaseRed, PhaseGreen, PhaseRefactor, PhaseComplete:
		return true
	default:
		return false
	}
}

// Next returns the phase that follows p in the cycle, per spec.md §4.9's
// transition table. PhaseComplete has no successor; REFACTOR loops back to
// PLAN, closing one cycle.
func (p Phase) Next() (Phase, error) {
	switch p {
	case PhasePlan:
		return PhaseRed, nil
	case PhaseRed:
		return PhaseGreen, nil
	case PhaseGreen:
		return PhaseRefactor, nil
	case PhaseRefactor:
		return PhasePlan, nil
	default:
		return "", fmt.Errorf("model: phase %q has no successor", p)
	}
}

// RequiresCurrentTest reports whether HandoffState.CurrentTest must be
// present when the workflow is in phase p (invariant P4 / spec.md §3.2).
func (p Phase) RequiresCurrentTest() bool {
	switch p {
	case PhaseRed, PhaseGreen, PhaseRefactor:
		return true
	default:
		return false
	}
}

// TestResult is the outcome of running the project's test suite.
type TestResult string

const (
	// TestResultPass indicates the suite ran green.
	TestResultPass TestResult = "PASS"
	// TestResultFail indicates at least one test failed.
	TestResultFail TestResult = "FAIL"
)

// TestCase is an immutable selection made by the Test List Agent: which
// behavior to cover next, and where its test and implementation live.
//
// All three fields are required; a TestCase with any blank field is not a
// valid value and construction helpers reject it (see outparser).
type TestCase struct {
	// Description is human prose naming the behavior under test.
	Description string `json:"description"`
	// TestFile is the workspace-relative path to the test file.
	TestFile string `json:"testFile"`
	// ImplFile is the workspace-relative path to the implementation file.
	ImplFile string `json:"implFile"`
}

// Valid reports whether every field of t is non-empty.
func (t TestCase) Valid() bool {
	return t.Description != "" && t.TestFile != "" && t.ImplFile != ""
}

// ErrorDetails is a short category tag plus the underlying message, attached
// to a HandoffState when a phase has failed.
type ErrorDetails struct {
	// Type is a short category tag, e.g. "CompilationError", "TestFailure".
	Type string `json:"type"`
	// Message is the free-form underlying error text.
	Message string `json:"message"`
}

// MaxRetriesPerPhase bounds HandoffState.RetryCount (invariant P6).
const MaxRetriesPerPhase = 3

// HandoffState is the core shared record: the orchestrator's full state at
// one point in time, attached to the commit that produced it.
//
// HandoffState is a value type. Callers that want to "mutate" a state
// construct a new value (With* helpers below) rather than writing through a
// shared pointer; this keeps the Workflow Driver's retry/rollback logic free
// of aliasing bugs.
type HandoffState struct {
	// Phase is the phase that produced this state.
	Phase Phase `json:"phase"`
	// NextPhase is the phase the workflow will execute next. Absent (zero
	// value) only when Phase is PhaseComplete.
	NextPhase Phase `json:"nextPhase"`
	// CycleNumber counts completed-or-in-progress PLAN→RED→GREEN→REFACTOR
	// passes, starting at 1.
	CycleNumber int `json:"cycleNumber"`
	// CurrentTest is the test selected for the active cycle. Present iff
	// Phase is RED, GREEN, or REFACTOR (invariant P4).
	CurrentTest *TestCase `json:"currentTest"`
	// CompletedTests holds descriptions of tests finished in prior cycles,
	// oldest first.
	CompletedTests []string `json:"completedTests"`
	// PendingTests holds descriptions not yet attempted.
	PendingTests []string `json:"pendingTests"`
	// TestResult is the last observed suite outcome, if any.
	TestResult *TestResult `json:"testResult"`
	// Error is a human message describing the last failure, if any.
	Error *string `json:"error"`
	// ErrorDetails categorizes Error, if any.
	ErrorDetails *ErrorDetails `json:"errorDetails"`
	// RetryCount is the number of retries attempted for the current phase
	// since its last success, bounded by MaxRetriesPerPhase (invariant P6).
	RetryCount int `json:"retryCount"`
	// Timestamp records the last mutation.
	Timestamp time.Time `json:"timestamp"`
}

// NewInitial constructs the HandoffState a workflow starts from: PLAN phase,
// cycle 1, no tests attempted yet.
func NewInitial(now time.Time) HandoffState {
	return HandoffState{
		Phase:       PhasePlan,
		NextPhase:   PhaseRed,
		CycleNumber: 1,
		Timestamp:   now,
	}
}

// Clone returns a deep copy of s so callers can mutate the result without
// aliasing slices or pointers held by s.
func (s HandoffState) Clone() HandoffState {
	out := s
	if s.CurrentTest != nil {
		tc := *s.CurrentTest
		out.CurrentTest = &tc
	}
	if s.TestResult != nil {
		tr := *s.TestResult
		out.TestResult = &tr
	}
	if s.Error != nil {
		e := *s.Error
		out.Error = &e
	}
	if s.ErrorDetails != nil {
		ed := *s.ErrorDetails
		out.ErrorDetails = &ed
	}
	out.CompletedTests = append([]string(nil), s.CompletedTests...)
	out.PendingTests = append([]string(nil), s.PendingTests...)
	return out
}

// ClearError returns a copy of s with Error, ErrorDetails cleared and
// RetryCount reset to zero, as required after a successful phase transition
// (invariant P5).
func (s HandoffState) ClearError() HandoffState {
	out := s.Clone()
	out.Error = nil
	out.ErrorDetails = nil
	out.RetryCount = 0
	return out
}

// WithFailure returns a copy of s recording a failed attempt: Error,
// ErrorDetails set and RetryCount incremented.
func (s HandoffState) WithFailure(message string, details ErrorDetails, now time.Time) HandoffState {
	out := s.Clone()
	out.Error = &message
	out.ErrorDetails = &details
	out.RetryCount++
	out.Timestamp = now
	return out
}

// Validate checks s against the invariants of spec.md §3/§8 (P2–P4), plus
// the single-state part of P6: RetryCount within [0, MaxRetriesPerPhase]. It
// does not check P1 (monotonic cycle number), which is a trace-level
// property across states, not of a single state in isolation.
func (s HandoffState) Validate() error {
	if !s.Phase.Valid() {
		return fmt.Errorf("model: invalid phase %q", s.Phase)
	}
	if s.CycleNumber < 1 {
		return fmt.Errorf("model: cycle number must be >= 1, got %d", s.CycleNumber)
	}
	if s.RetryCount < 0 || s.RetryCount > MaxRetriesPerPhase {
		return fmt.Errorf("model: retry count %d out of [0,%d]", s.RetryCount, MaxRetriesPerPhase)
	}
	if s.Phase.RequiresCurrentTest() && s.CurrentTest == nil {
		return fmt.Errorf("model: phase %q requires a current test", s.Phase)
	}
	if s.Phase == PhaseComplete {
		if s.CurrentTest != nil {
			return fmt.Errorf("model: phase COMPLETE must not carry a current test")
		}
		if len(s.PendingTests) != 0 {
			return fmt.Errorf("model: phase COMPLETE must have no pending tests")
		}
	}
	pending := make(map[string]bool, len(s.PendingTests))
	for _, d := range s.PendingTests {
		pending[d] = true
	}
	for _, d := range s.CompletedTests {
		if pending[d] {
			return fmt.Errorf("model: test %q is both completed and pending", d)
		}
	}
	return nil
}

// PhaseResult is the outcome of running one phase, produced by the Phase
// Executor and consumed by the Workflow Driver.
type PhaseResult struct {
	// ExecutedPhase is the phase that ran.
	ExecutedPhase Phase
	// UpdatedState is the HandoffState after the phase, whether it
	// succeeded or failed.
	UpdatedState HandoffState
	// CommitID is the commit the agent produced, if any.
	CommitID string
	// AgentResponseText is the agent's final turn text.
	AgentResponseText string
	// Success indicates the phase completed without error.
	Success bool
	// ErrorMessage explains a failure; empty when Success is true.
	ErrorMessage string
}

// WorkflowResult is the top-level output of a full workflow run.
type WorkflowResult struct {
	// Success indicates the workflow reached PhaseComplete.
	Success bool
	// FinalState is the last HandoffState observed.
	FinalState HandoffState
	// CompletedCycles counts full PLAN→RED→GREEN→REFACTOR passes.
	CompletedCycles int
	// PhaseResults records every phase attempt in execution order,
	// including failed attempts that were retried.
	PhaseResults []PhaseResult
	// ErrorMessage names the exhausted phase and the last underlying
	// message when Success is false.
	ErrorMessage string
}
