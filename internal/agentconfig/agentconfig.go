// Package agentconfig supplies the AgentResolver (spec.md §4.7's "resolve
// AgentConfig for phase") mapping each Phase to one of the four fixed role
// personas — Test List, Test, Implementing, Refactor — that together drive
// the Red-Green-Refactor loop. The four roles are data, not types: dispatch
// is by phase-enum lookup in a fixed table (spec.md's design notes), never
// by inheritance or per-role structs.
package agentconfig

import (
	"fmt"

	"github.com/tdd-orchestrator/tdd/internal/invoker"
	"github.com/tdd-orchestrator/tdd/internal/llmclient"
	"github.com/tdd-orchestrator/tdd/internal/model"
	"github.com/tdd-orchestrator/tdd/internal/schema"
)

const (
	testListPrompt = `You are the Test List agent in an autonomous Red-Green-Refactor loop.
Given the feature request and the current state of the repository, pick the
single next test case to drive out. Respond with your reasoning followed by
a fenced JSON block shaped like:
{"currentTest": {"description": "...", "testFile": "...", "implFile": "..."}}
If every test in the feature is already covered, respond with
{"currentTest": null} instead. Never write code in this role.`

	redPrompt = `You are the Test agent in an autonomous Red-Green-Refactor loop.
Write exactly one failing test for the test case described in the prompt,
in the project's existing test framework and style. Do not write
implementation code. Run the test suite to confirm the new test fails for
the expected reason, then commit your change.`

	greenPrompt = `You are the Implementing agent in an autonomous Red-Green-Refactor loop.
Write the minimum implementation code needed to make the currently failing
test pass, without modifying the test itself. Run the test suite to confirm
it passes, then commit your change.`

	refactorPrompt = `You are the Refactor agent in an autonomous Red-Green-Refactor loop.
With the test suite green, improve the implementation's and test's
structure and clarity without changing observable behavior. Re-run the test
suite after every change to confirm it stays green, then commit. If nothing
needs improving, commit a no-op message stating so.`
)

// toolDefinitions advertises the Tool Dispatcher's six tools, schema'd
// identically for every role: roles are differentiated only by system
// prompt (spec.md's overview), never by tool access.
func toolDefinitions() []llmclient.ToolDefinition {
	descriptions := map[string]string{
		"Read":  "Read a file's contents from the workspace.",
		"Write": "Write a file's full contents, creating or overwriting it.",
		"Edit":  "Replace one exact string occurrence in an existing file.",
		"Bash":  "Run a shell command in the workspace, subject to a timeout.",
		"Glob":  "List workspace files matching a glob pattern.",
		"Grep":  "Search workspace file contents by regular expression.",
	}
	schemas := schema.ToolSchemas()
	defs := make([]llmclient.ToolDefinition, 0, len(schemas))
	for _, name := range []string{"Read", "Write", "Edit", "Bash", "Glob", "Grep"} {
		defs = append(defs, llmclient.ToolDefinition{
			Name:        name,
			Description: descriptions[name],
			InputSchema: schemas[name],
		})
	}
	return defs
}

// Resolver builds an invoker.AgentResolver bound to defaultModel.
func Resolver(defaultModel string) func(phase model.Phase) (invoker.AgentConfig, error) {
	tools := toolDefinitions()
	table := map[model.Phase]invoker.AgentConfig{
		model.PhasePlan: {
			Name:         "Test List",
			SystemPrompt: testListPrompt,
			ToolSchemas:  tools,
			Model:        defaultModel,
		},
		model.PhaseRed: {
			Name:         "Test",
			SystemPrompt: redPrompt,
			ToolSchemas:  tools,
			Model:        defaultModel,
		},
		model.PhaseGreen: {
			Name:         "Implementing",
			SystemPrompt: greenPrompt,
			ToolSchemas:  tools,
			Model:        defaultModel,
		},
		model.PhaseRefactor: {
			Name:         "Refactor",
			SystemPrompt: refactorPrompt,
			ToolSchemas:  tools,
			Model:        defaultModel,
		},
	}
	return func(phase model.Phase) (invoker.AgentConfig, error) {
		cfg, ok := table[phase]
		if !ok {
			return invoker.AgentConfig{}, fmt.Errorf("agentconfig: no agent configured for phase %q", phase)
		}
		return cfg, nil
	}
}
