package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/tdd-orchestrator/tdd/internal/app"
	"github.com/tdd-orchestrator/tdd/internal/model"
)

// reportResult mirrors every commit produced this run into the History
// Index (write-through: Mongo never becomes the source of truth, it is
// only ever populated alongside a Handoff Store write that already
// succeeded), prints the outcome, and maps success/failure onto the
// command's return value for Execute's exit-code logic.
func reportResult(a *app.App, result model.WorkflowResult) error {
	mirrorToHistoryIndex(a, result)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)

	if !result.Success {
		return fmt.Errorf("workflow failed: %s", result.ErrorMessage)
	}
	return nil
}

func mirrorToHistoryIndex(a *app.App, result model.WorkflowResult) {
	if a.History == nil {
		return
	}
	ctx := context.Background()
	for _, pr := range result.PhaseResults {
		if pr.CommitID == "" {
			continue
		}
		_ = a.History.Write(ctx, pr.CommitID, pr.UpdatedState, pr.UpdatedState.Timestamp)
	}
}
