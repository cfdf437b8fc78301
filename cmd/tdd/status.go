package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tdd-orchestrator/tdd/internal/app"
	"github.com/tdd-orchestrator/tdd/internal/config"
	"github.com/tdd-orchestrator/tdd/internal/handoff"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the current HandoffState",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// status always exits 0 (spec.md §6): an empty or missing
			// record is reported, not treated as an error.
			cfg, err := config.Load()
			if err != nil {
				fmt.Fprintln(os.Stdout, "tdd: no status available:", err)
				return nil
			}
			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				fmt.Fprintln(os.Stdout, "tdd: no status available:", err)
				return nil
			}

			record, ok, err := latestRecord(cmd, a)
			if err != nil || !ok {
				fmt.Fprintln(os.Stdout, "tdd: no handoff record found")
				return nil
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(record)
			return nil
		},
	})
}

// latestRecord prefers the History Index (C14) when configured, falling
// back to a direct Handoff Store walk (SPEC_FULL.md §6).
func latestRecord(cmd *cobra.Command, a *app.App) (handoff.Record, bool, error) {
	if a.History != nil {
		rec, ok, err := a.History.FindLatest(cmd.Context())
		if err == nil && ok {
			return rec, true, nil
		}
	}
	return a.Handoffs.FindLatest(cmd.Context())
}
