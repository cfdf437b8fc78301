// Package engine defines the Durable Execution Adapter: a pluggable
// interface so the TDD workflow can run against Temporal, an in-memory
// stand-in for tests, or another durable backend without the Workflow
// Driver itself changing.
package engine

import (
	"context"
	"time"

	"github.com/tdd-orchestrator/tdd/internal/telemetry"
)

type (
	// Engine abstracts workflow/activity registration and execution so
	// adapters (Temporal, in-memory, or custom) can be swapped without
	// touching the workflow definition.
	Engine interface {
		// RegisterWorkflow registers a workflow definition with the engine.
		// Must be called during service initialization before starting the
		// worker pool. Returns an error if the name is already registered.
		RegisterWorkflow(ctx context.Context, def WorkflowDefinition) error

		// RegisterActivity registers an activity definition. Activities are
		// short-lived, non-deterministic tasks invoked from workflows — in
		// this domain, principally one RunPhase call per phase attempt.
		RegisterActivity(ctx context.Context, def ActivityDefinition) error

		// StartWorkflow initiates a new workflow execution and returns a
		// handle for interacting with it. req.ID must be unique for the
		// engine instance.
		StartWorkflow(ctx context.Context, req WorkflowStartRequest) (WorkflowHandle, error)
	}

	// WorkflowDefinition binds a workflow handler to a logical name and
	// default queue.
	WorkflowDefinition struct {
		// Name is the logical identifier registered with the engine (e.g.
		// "TDDWorkflow").
		Name string
		// TaskQueue is the default queue used when starting new workflows.
		TaskQueue string
		// Handler is the workflow function invoked by the engine.
		Handler WorkflowFunc
	}

	// WorkflowFunc is the workflow entry point. It must be deterministic:
	// given the same input and the same sequence of activity results, it
	// must produce the same sequence of engine calls. All non-deterministic
	// work (LLM calls, git, bash) belongs in an Activity, never inline here.
	WorkflowFunc func(ctx WorkflowContext, input any) (any, error)

	// WorkflowContext exposes engine operations to a running workflow.
	// Implementations must ensure deterministic replay.
	//
	// Thread-safety: bound to a single workflow execution; must not be
	// shared across goroutines.
	WorkflowContext interface {
		// Context returns the Go context for the workflow. In deterministic
		// engines (Temporal) this is a special replay-aware context.
		Context() context.Context

		// WorkflowID returns the unique identifier for this execution.
		WorkflowID() string

		// RunID returns the engine-assigned run identifier.
		RunID() string

		// ExecuteActivity schedules an activity and blocks for its result,
		// decoding it into result.
		ExecuteActivity(ctx context.Context, req ActivityRequest, result any) error

		// ExecuteActivityAsync schedules an activity without blocking,
		// returning a Future resolved later via Get.
		ExecuteActivityAsync(ctx context.Context, req ActivityRequest) (Future, error)

		// SignalChannel returns a channel for the named signal (used for
		// external cancellation/rollback requests mid-workflow).
		SignalChannel(name string) SignalChannel

		// Logger returns a logger scoped to this workflow execution.
		Logger() telemetry.Logger

		// Metrics returns a metrics recorder scoped to this execution.
		Metrics() telemetry.Metrics

		// Tracer returns a tracer for spans within the workflow.
		Tracer() telemetry.Tracer

		// Now returns the current workflow time in a replay-safe manner.
		Now() time.Time

		// NewTimer returns a Future that resolves once d has elapsed,
		// measured on the engine's replay-safe clock. Workflow code must
		// use this instead of time.Sleep for any in-workflow wait (e.g.
		// the Wait-and-Retry recovery action's backoff).
		NewTimer(ctx context.Context, d time.Duration) (Future, error)
	}

	// Future represents a pending activity result.
	Future interface {
		// Get blocks until the activity completes and decodes its result
		// into result. Safe to call more than once.
		Get(ctx context.Context, result any) error

		// IsReady reports whether Get will not block.
		IsReady() bool
	}

	// ActivityDefinition registers an activity handler.
	ActivityDefinition struct {
		Name    string
		Handler ActivityFunc
		Options ActivityOptions
	}

	// ActivityFunc handles an activity invocation. Unlike workflows,
	// activities may perform I/O: LLM calls, git, bash.
	ActivityFunc func(ctx context.Context, input any) (any, error)

	// ActivityOptions configures retry and timeout for an activity.
	ActivityOptions struct {
		Queue       string
		RetryPolicy RetryPolicy
		Timeout     time.Duration
	}

	// WorkflowStartRequest describes how to launch a workflow execution.
	WorkflowStartRequest struct {
		ID               string
		Workflow         string
		TaskQueue        string
		Input            any
		Memo             map[string]any
		SearchAttributes map[string]any
		RetryPolicy      RetryPolicy
	}

	// ActivityRequest contains what's needed to schedule an activity from
	// within a workflow.
	ActivityRequest struct {
		Name        string
		Input       any
		Queue       string
		RetryPolicy RetryPolicy
		Timeout     time.Duration
	}

	// WorkflowHandle lets callers interact with a running workflow.
	WorkflowHandle interface {
		// Wait blocks until the workflow completes, decoding its result.
		Wait(ctx context.Context, result any) error
		// Signal sends an asynchronous message to the workflow.
		Signal(ctx context.Context, name string, payload any) error
		// Cancel requests cancellation of the workflow.
		Cancel(ctx context.Context) error
	}

	// RetryPolicy defines retry semantics shared by workflows and
	// activities. Zero-valued fields mean the engine uses its defaults.
	RetryPolicy struct {
		MaxAttempts        int
		InitialInterval    time.Duration
		BackoffCoefficient float64
	}

	// SignalChannel exposes signal delivery in an engine-agnostic way.
	SignalChannel interface {
		Receive(ctx context.Context, dest any) error
		ReceiveAsync(dest any) bool
	}
)
