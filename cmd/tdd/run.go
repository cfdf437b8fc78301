package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tdd-orchestrator/tdd/internal/app"
	"github.com/tdd-orchestrator/tdd/internal/config"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "run <feature-request>",
		Short: "Start a new Red-Green-Refactor run against a feature request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			featureRequest, err := resolveFeatureRequest(args[0])
			if err != nil {
				return misuse(err)
			}
			a, lockCtx, err := newAppWithLock(cmd.Context())
			if err != nil {
				return err
			}
			defer releaseLock(context.Background(), a)
			defer a.Close()

			result := a.Workflow.Run(lockCtx, featureRequest)
			return reportResult(a, result)
		},
	})
}

// resolveFeatureRequest accepts either inline text or a path ending in
// ".md" (spec.md §6's run argument shape).
func resolveFeatureRequest(arg string) (string, error) {
	if strings.HasSuffix(arg, ".md") {
		raw, err := os.ReadFile(arg)
		if err != nil {
			return "", fmt.Errorf("read feature request file %s: %w", arg, err)
		}
		return string(raw), nil
	}
	return arg, nil
}

// newAppWithLock builds an App and, if a Workspace Lock is configured,
// acquires it and starts its renewal heartbeat. Failure to acquire is a
// misuse exit (SPEC_FULL.md §5), not a retryable phase error, since a
// concurrent run on the same workspace is a usage error.
func newAppWithLock(ctx context.Context) (*app.App, context.Context, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, misuse(err)
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, nil, misuse(err)
	}
	if a.Lock != nil {
		if err := a.Lock.Acquire(ctx); err != nil {
			return nil, nil, misuse(fmt.Errorf("acquire workspace lock: %w", err))
		}
		heartbeatCtx, cancel := context.WithCancel(ctx)
		errs := a.Lock.Heartbeat(heartbeatCtx, 10*time.Second)
		go func() {
			if err, ok := <-errs; ok && err != nil {
				cancel()
			}
		}()
	}
	return a, ctx, nil
}

func releaseLock(ctx context.Context, a *app.App) {
	if a.Lock != nil {
		_ = a.Lock.Release(ctx)
	}
}
