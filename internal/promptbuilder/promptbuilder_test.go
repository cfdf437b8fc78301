package promptbuilder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdd-orchestrator/tdd/internal/model"
)

func TestBuildPlanPhaseFirstCycleIncludesFeatureRequest(t *testing.T) {
	state := model.NewInitial(time.Now())
	prompt, err := Build(model.PhasePlan, state, "add a login form")
	require.NoError(t, err)
	assert.Contains(t, prompt, "# Phase: PLAN")
	assert.Contains(t, prompt, "add a login form")
	assert.Contains(t, prompt, "This is a new feature")
	assert.Contains(t, prompt, "(none yet)")
}

func TestBuildPlanPhaseLaterCycleOmitsNewFeatureLanguage(t *testing.T) {
	state := model.HandoffState{Phase: model.PhasePlan, CycleNumber: 2, CompletedTests: []string{"first test"}}
	prompt, err := Build(model.PhasePlan, state, "")
	require.NoError(t, err)
	assert.Contains(t, prompt, "- [x] first test")
	assert.Contains(t, prompt, "Select the next pending test")
	assert.NotContains(t, prompt, "This is a new feature")
}

func TestBuildPhaseRequiringCurrentTestErrorsWhenAbsent(t *testing.T) {
	state := model.HandoffState{Phase: model.PhaseRed, CycleNumber: 1}
	_, err := Build(model.PhaseRed, state, "")
	assert.Error(t, err)
}

func TestBuildRedGreenRefactorIncludeCurrentTest(t *testing.T) {
	tc := model.TestCase{Description: "validates email format", TestFile: "email_test.go", ImplFile: "email.go"}
	for _, phase := range []model.Phase{model.PhaseRed, model.PhaseGreen, model.PhaseRefactor} {
		state := model.HandoffState{Phase: phase, CycleNumber: 1, CurrentTest: &tc}
		prompt, err := Build(phase, state, "")
		require.NoError(t, err)
		assert.Contains(t, prompt, "validates email format")
		assert.Contains(t, prompt, "email_test.go")
		assert.Contains(t, prompt, "email.go")
	}
}

func TestBuildIncludesErrorContextWhenPresent(t *testing.T) {
	tc := model.TestCase{Description: "d", TestFile: "t", ImplFile: "i"}
	msg := "compile failed"
	state := model.HandoffState{
		Phase:        model.PhaseGreen,
		CycleNumber:  1,
		CurrentTest:  &tc,
		Error:        &msg,
		ErrorDetails: &model.ErrorDetails{Type: "CompilationError", Message: "undefined: foo"},
		RetryCount:   1,
	}
	prompt, err := Build(model.PhaseGreen, state, "")
	require.NoError(t, err)
	assert.Contains(t, prompt, "## Error Context")
	assert.Contains(t, prompt, "compile failed")
	assert.Contains(t, prompt, "CompilationError")
}

func TestBuildCompletePhaseIsRejected(t *testing.T) {
	_, err := Build(model.PhaseComplete, model.HandoffState{Phase: model.PhaseComplete, CycleNumber: 1}, "")
	assert.Error(t, err)
}
