package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// misuseError marks a failure as usage error (exit code 2), distinguishing
// it from a workflow failure (exit code 1) per spec.md §6's CLI exit-code
// table.
type misuseError struct{ err error }

func (m *misuseError) Error() string { return m.err.Error() }
func (m *misuseError) Unwrap() error { return m.err }

func misuse(err error) error {
	return &misuseError{err: err}
}

var rootCmd = &cobra.Command{
	Use:   "tdd",
	Short: "Autonomous Red-Green-Refactor orchestrator",
	Long: `tdd drives an external LLM through a strict Red-Green-Refactor loop
over a Git-versioned project: it selects the next test, writes it, makes it
pass, refactors, and commits a structured handoff record after every phase
so a crashed or interrupted run can always resume.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI and exits with the code spec.md §6 prescribes for
// the command that ran: 0 success, 1 failure, 2 misuse.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		os.Exit(0)
	}
	var mu *misuseError
	if errors.As(err, &mu) {
		fmt.Fprintln(os.Stderr, "tdd:", mu.Error())
		os.Exit(2)
	}
	fmt.Fprintln(os.Stderr, "tdd:", err)
	os.Exit(1)
}
