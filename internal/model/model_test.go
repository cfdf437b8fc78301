package model

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseNext(t *testing.T) {
	cases := []struct {
		from Phase
		want Phase
	}{
		{PhasePlan, PhaseRed},
		{PhaseRed, PhaseGreen},
		{PhaseGreen, PhaseRefactor},
		{PhaseRefactor, PhasePlan},
	}
	for _, c := range cases {
		got, err := c.from.Next()
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}

	_, err := PhaseComplete.Next()
	assert.Error(t, err)
}

func TestPhaseRequiresCurrentTest(t *testing.T) {
	assert.True(t, PhaseRed.RequiresCurrentTest())
	assert.True(t, PhaseGreen.RequiresCurrentTest())
	assert.True(t, PhaseRefactor.RequiresCurrentTest())
	assert.False(t, PhasePlan.RequiresCurrentTest())
	assert.False(t, PhaseComplete.RequiresCurrentTest())
}

func TestNewInitial(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewInitial(now)
	assert.Equal(t, PhasePlan, s.Phase)
	assert.Equal(t, PhaseRed, s.NextPhase)
	assert.Equal(t, 1, s.CycleNumber)
	require.NoError(t, s.Validate())
}

func TestCloneIsDeep(t *testing.T) {
	tc := TestCase{Description: "d", TestFile: "t", ImplFile: "i"}
	result := TestResultPass
	errMsg := "boom"
	s := HandoffState{
		Phase:          PhaseRed,
		CurrentTest:    &tc,
		TestResult:     &result,
		Error:          &errMsg,
		ErrorDetails:   &ErrorDetails{Type: "x", Message: "y"},
		CompletedTests: []string{"a"},
		PendingTests:   []string{"b"},
	}
	clone := s.Clone()

	clone.CurrentTest.Description = "mutated"
	clone.CompletedTests[0] = "mutated"
	clone.PendingTests[0] = "mutated"
	*clone.Error = "mutated"

	assert.Equal(t, "d", s.CurrentTest.Description)
	assert.Equal(t, "a", s.CompletedTests[0])
	assert.Equal(t, "b", s.PendingTests[0])
	assert.Equal(t, "boom", *s.Error)
}

func TestClearErrorResetsRetryState(t *testing.T) {
	s := HandoffState{
		Phase:        PhaseGreen,
		CurrentTest:  &TestCase{Description: "d", TestFile: "t", ImplFile: "i"},
		Error:        stringPtr("bad"),
		ErrorDetails: &ErrorDetails{Type: "CompilationError", Message: "bad"},
		RetryCount:   2,
	}
	cleared := s.ClearError()
	assert.Nil(t, cleared.Error)
	assert.Nil(t, cleared.ErrorDetails)
	assert.Zero(t, cleared.RetryCount)
}

func TestWithFailureIncrementsRetryCount(t *testing.T) {
	s := HandoffState{Phase: PhaseGreen, CurrentTest: &TestCase{Description: "d", TestFile: "t", ImplFile: "i"}}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	next := s.WithFailure("compile failed", ErrorDetails{Type: "CompilationError", Message: "compile failed"}, now)
	assert.Equal(t, 1, next.RetryCount)
	require.NotNil(t, next.Error)
	assert.Equal(t, "compile failed", *next.Error)
	assert.Equal(t, now, next.Timestamp)
	assert.Zero(t, s.RetryCount, "original state must not be mutated")
}

func TestValidateRejectsInvariantViolations(t *testing.T) {
	valid := func() HandoffState {
		return HandoffState{Phase: PhaseRed, CycleNumber: 1, CurrentTest: &TestCase{Description: "d", TestFile: "t", ImplFile: "i"}}
	}

	require.NoError(t, valid().Validate())

	bad := valid()
	bad.Phase = "NOT_A_PHASE"
	assert.Error(t, bad.Validate())

	bad = valid()
	bad.CycleNumber = 0
	assert.Error(t, bad.Validate())

	bad = valid()
	bad.RetryCount = MaxRetriesPerPhase + 1
	assert.Error(t, bad.Validate())

	bad = valid()
	bad.CurrentTest = nil
	assert.Error(t, bad.Validate(), "RED requires a current test")

	complete := HandoffState{Phase: PhaseComplete, CycleNumber: 1}
	require.NoError(t, complete.Validate())
	complete.CurrentTest = &TestCase{Description: "d", TestFile: "t", ImplFile: "i"}
	assert.Error(t, complete.Validate())

	overlap := HandoffState{
		Phase:          PhasePlan,
		CycleNumber:    1,
		CompletedTests: []string{"shared"},
		PendingTests:   []string{"shared"},
	}
	assert.Error(t, overlap.Validate())
}

// TestPhaseCycleIsClosedProperty checks that calling Next on any non-terminal
// phase never errors and yields a valid phase that is itself non-terminal.
func TestPhaseCycleIsClosedProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	nonTerminal := gen.OneConstOf(PhasePlan, PhaseRed, PhaseGreen, PhaseRefactor)

	properties.Property("Next() of a non-terminal phase is always valid and non-terminal", prop.ForAll(
		func(p Phase) bool {
			next, err := p.Next()
			return err == nil && next.Valid() && next != PhaseComplete
		},
		nonTerminal,
	))

	properties.TestingRun(t)
}

func stringPtr(s string) *string { return &s }
