package classify

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/tdd-orchestrator/tdd/internal/model"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		phase  model.Phase
		output string
		want   Kind
	}{
		{"compilation error wins over everything", model.PhaseGreen, "error TS2304: Cannot find name 'foo'.\nFAIL", KindCompilation},
		{"red phase success with no failures is unexpected pass", model.PhaseRed, "OK (3 tests)", KindUnexpectedPass},
		{"red phase with failures is a normal test failure", model.PhaseRed, "FAILURES!\n1) it fails", KindTestFailure},
		{"green phase test failure", model.PhaseGreen, "Tests run: 5, Failures: 1", KindTestFailure},
		{"timeout", model.PhaseGreen, "context deadline exceeded: timed out waiting for response", KindTimeout},
		{"rate limit", model.PhaseGreen, "received 429 Too Many Requests: rate limit exceeded", KindRateLimit},
		{"network", model.PhaseGreen, "dial tcp 10.0.0.1:443: connection refused", KindNetwork},
		{"unknown", model.PhaseGreen, "something entirely unrelated happened", KindUnknown},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, Classify(c.phase, c.output))
		})
	}
}

func TestRequiresRollback(t *testing.T) {
	assert.False(t, RequiresRollback(KindTestFailure, model.PhaseRed), "a failing test in RED is the expected outcome")
	assert.True(t, RequiresRollback(KindTestFailure, model.PhaseGreen))
	assert.True(t, RequiresRollback(KindTestFailure, model.PhaseRefactor))
	assert.False(t, RequiresRollback(KindTimeout, model.PhaseGreen))
}

func TestSelectAction(t *testing.T) {
	assert.Equal(t, ActionAbort, SelectAction(KindUnknown, model.PhaseGreen, model.MaxRetriesPerPhase))
	assert.Equal(t, ActionContinue, SelectAction(KindTestFailure, model.PhaseRed, 0))
	assert.Equal(t, ActionRollbackAndRetry, SelectAction(KindTestFailure, model.PhaseGreen, 0))
	assert.Equal(t, ActionRollbackAndRetry, SelectAction(KindTestFailure, model.PhaseRefactor, 0))
	assert.Equal(t, ActionWaitAndRetry, SelectAction(KindTimeout, model.PhaseGreen, 0))
	assert.Equal(t, ActionWaitAndRetry, SelectAction(KindRateLimit, model.PhaseGreen, 0))
	assert.Equal(t, ActionWaitAndRetry, SelectAction(KindNetwork, model.PhaseGreen, 0))
	assert.Equal(t, ActionRetryWithContext, SelectAction(KindCompilation, model.PhaseGreen, 0))
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, Backoff(1), Backoff(0), "attempts below 1 clamp to the first attempt's delay")
	cases := map[int]int64{1: 1, 2: 2, 3: 4}
	for attempt, wantSeconds := range cases {
		assert.Equal(t, wantSeconds, int64(Backoff(attempt).Seconds()))
	}
}

// TestSelectActionAlwaysAbortsAtRetryLimitProperty checks invariant P6
// (bounded retries): regardless of kind or phase, reaching the retry limit
// always selects ABORT, never any other action.
func TestSelectActionAlwaysAbortsAtRetryLimitProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	kinds := gen.OneConstOf(KindCompilation, KindTestFailure, KindUnexpectedPass, KindTimeout, KindRateLimit, KindNetwork, KindUnknown)
	phases := gen.OneConstOf(model.PhasePlan, model.PhaseRed, model.PhaseGreen, model.PhaseRefactor)

	properties.Property("retry count at or beyond the limit always aborts", prop.ForAll(
		func(kind Kind, phase model.Phase, overshoot int) bool {
			retryCount := model.MaxRetriesPerPhase + overshoot
			return SelectAction(kind, phase, retryCount) == ActionAbort
		},
		kinds, phases, gen.IntRange(0, 10),
	))

	properties.TestingRun(t)
}
