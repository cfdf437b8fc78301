package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/tdd-orchestrator/tdd/internal/app"
	"github.com/tdd-orchestrator/tdd/internal/config"
	"github.com/tdd-orchestrator/tdd/internal/handoff"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "history",
		Short: "Print the ordered list of handoff records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			records, err := allRecords(cmd, a)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		},
	})
}

// allRecords prefers the History Index (C14) when configured, falling back
// to a direct Handoff Store walk (SPEC_FULL.md §6).
func allRecords(cmd *cobra.Command, a *app.App) ([]handoff.Record, error) {
	if a.History != nil {
		records, err := a.History.ListAll(cmd.Context())
		if err == nil {
			return records, nil
		}
	}
	return a.Handoffs.ListAll(cmd.Context())
}
