package agentconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdd-orchestrator/tdd/internal/model"
)

func TestResolverCoversAllFourRunnablePhases(t *testing.T) {
	resolve := Resolver("claude-test-model")

	cases := map[model.Phase]string{
		model.PhasePlan:     "Test List",
		model.PhaseRed:      "Test",
		model.PhaseGreen:    "Implementing",
		model.PhaseRefactor: "Refactor",
	}
	for phase, wantName := range cases {
		cfg, err := resolve(phase)
		require.NoError(t, err, "phase %s", phase)
		assert.Equal(t, wantName, cfg.Name)
		assert.Equal(t, "claude-test-model", cfg.Model)
		assert.NotEmpty(t, cfg.SystemPrompt)
		assert.Len(t, cfg.ToolSchemas, 6, "every role shares the same six-tool closed set")
	}
}

func TestResolverRejectsComplete(t *testing.T) {
	resolve := Resolver("m")
	_, err := resolve(model.PhaseComplete)
	assert.Error(t, err)
}

func TestResolverRolesShareIdenticalToolSchemas(t *testing.T) {
	resolve := Resolver("m")
	plan, err := resolve(model.PhasePlan)
	require.NoError(t, err)
	red, err := resolve(model.PhaseRed)
	require.NoError(t, err)
	assert.Equal(t, plan.ToolSchemas, red.ToolSchemas, "roles differ only by system prompt, never tool access")
}
