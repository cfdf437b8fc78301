// Package promptbuilder implements the Prompt Builder (spec.md §4.6): a
// pure function from (phase, state, featureRequest) to the prompt string
// sent to the phase's agent. It never decides workflow policy, only
// serializes state for the agent to act on.
package promptbuilder

import (
	"fmt"
	"strings"

	"github.com/tdd-orchestrator/tdd/internal/model"
)

// Build renders the prompt for phase given the current state and, for the
// initial PLAN invocation, the feature request driving the whole workflow.
func Build(phase model.Phase, state model.HandoffState, featureRequest string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# Phase: %s\n\n", phase)
	fmt.Fprintf(&b, "Cycle: %d\n\n", state.CycleNumber)

	if phase.RequiresCurrentTest() {
		if state.CurrentTest == nil {
			return "", fmt.Errorf("promptbuilder: phase %q requires a current test", phase)
		}
		writeCurrentTest(&b, *state.CurrentTest)
	}

	switch phase {
	case model.PhasePlan:
		writePlanSection(&b, state, featureRequest)
	case model.PhaseRed:
		b.WriteString("Write a single failing test for the behavior described above. Do not implement the behavior yet. Run the test suite to confirm it fails for the right reason, then commit with a `test:` prefix.\n\n")
	case model.PhaseGreen:
		b.WriteString("Write the minimal implementation that makes the failing test pass. Avoid speculative generality. Run the test suite to confirm it passes, then commit with a `feat:` or `fix:` prefix.\n\n")
	case model.PhaseRefactor:
		b.WriteString("Improve the implementation and/or test without changing observable behavior. Run the test suite to confirm it still passes, mark the completed test in test-list.md, then commit with a `refactor:` prefix.\n\n")
	default:
		return "", fmt.Errorf("promptbuilder: phase %q has no prompt", phase)
	}

	writeErrorContext(&b, state)

	return b.String(), nil
}

func writeCurrentTest(b *strings.Builder, tc model.TestCase) {
	fmt.Fprintf(b, "## Current Test\n\n- Description: %s\n- Test file: %s\n- Implementation file: %s\n\n", tc.Description, tc.TestFile, tc.ImplFile)
}

func writePlanSection(b *strings.Builder, state model.HandoffState, featureRequest string) {
	fmt.Fprintf(b, "## Feature Request\n\n%s\n\n", featureRequest)

	b.WriteString("## Completed Tests\n\n")
	if len(state.CompletedTests) == 0 {
		b.WriteString("(none yet)\n\n")
	} else {
		for _, d := range state.CompletedTests {
			fmt.Fprintf(b, "- [x] %s\n", d)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Pending Tests\n\n")
	if len(state.PendingTests) == 0 {
		b.WriteString("(none yet)\n\n")
	} else {
		for _, d := range state.PendingTests {
			fmt.Fprintf(b, "- [ ] %s\n", d)
		}
		b.WriteString("\n")
	}

	if state.CycleNumber == 1 && len(state.CompletedTests) == 0 {
		b.WriteString("This is a new feature. Break it down into a test list and select the first test to write. ")
	} else {
		b.WriteString("Select the next pending test to write, or report that the feature is complete. ")
	}
	b.WriteString("Report your selection as a fenced JSON code block with a single `currentTest` key, whose value is either `null` (feature complete) or an object with `description`, `testFile`, and `implFile` string fields.\n\n")
}

func writeErrorContext(b *strings.Builder, state model.HandoffState) {
	if state.Error == nil {
		return
	}
	b.WriteString("## Error Context\n\n")
	fmt.Fprintf(b, "Retry: %d\n", state.RetryCount)
	fmt.Fprintf(b, "Error: %s\n", *state.Error)
	if state.ErrorDetails != nil {
		fmt.Fprintf(b, "Error type: %s\n", state.ErrorDetails.Type)
		fmt.Fprintf(b, "Error details: %s\n", state.ErrorDetails.Message)
	}
	b.WriteString("\n")
}
