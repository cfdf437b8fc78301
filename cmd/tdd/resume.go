package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "resume",
		Short: "Resume a crashed or interrupted run from its last handoff record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, err := newAppWithLock(cmd.Context())
			if err != nil {
				return err
			}
			defer releaseLock(cmd.Context(), a)
			defer a.Close()

			record, ok, err := a.Handoffs.FindLatest(ctx)
			if err != nil {
				return fmt.Errorf("find latest handoff record: %w", err)
			}
			if !ok {
				return misuse(fmt.Errorf("no handoff record found; nothing to resume"))
			}

			// resume carries no feature request of its own; the original
			// request lived only in the PLAN agent's first prompt and is
			// not itself persisted in HandoffState, so RED/GREEN/REFACTOR
			// (which never consult featureRequest, per promptbuilder) and
			// a subsequent PLAN pass proceed from CurrentTest/PendingTests
			// alone.
			result := a.Workflow.Resume(ctx, record.State, "")
			return reportResult(a, result)
		},
	})
}
