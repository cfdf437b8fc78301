package main

import (
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/tdd-orchestrator/tdd/internal/app"
	"github.com/tdd-orchestrator/tdd/internal/config"
)

var commitSHA = regexp.MustCompile(`^[0-9a-f]{40}$`)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "rollback <commit>",
		Short: "Roll the workspace back to a prior commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sha := args[0]
			if !commitSHA.MatchString(sha) {
				return misuse(fmt.Errorf("rollback requires a 40-char hex commit, got %q", sha))
			}

			cfg, err := config.Load()
			if err != nil {
				return misuse(err)
			}
			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return misuse(err)
			}

			if err := a.Repo.Rollback(cmd.Context(), sha); err != nil {
				return fmt.Errorf("rollback to %s: %w", sha, err)
			}
			fmt.Println("tdd: rolled back to", sha)
			return nil
		},
	})
}
