// Package dispatch implements the Tool Dispatcher (spec.md §4.1): it
// executes one tool call against a fixed workspace root and returns a
// structured result. Tool failures never panic or return a Go error across
// the dispatch boundary — they come back as a failure-typed ToolResult so
// the Agent Invoker can hand them to the model as a tool_result block and
// let the model recover within the same invocation (spec.md §7).
package dispatch

import (
	"context"
	"fmt"

	"github.com/tdd-orchestrator/tdd/internal/schema"
	"github.com/tdd-orchestrator/tdd/internal/telemetry"
	"github.com/tdd-orchestrator/tdd/internal/toolerrors"
)

// ToolResult is the tagged outcome of one tool call: exactly one of Output
// or Err is meaningful, discriminated by Ok.
type ToolResult struct {
	// Ok is true when the tool executed successfully.
	Ok bool
	// Output is the tool's textual result. Meaningful only when Ok.
	Output string
	// Err is the failure, including dispatcher-level failures (unknown tool
	// name) and per-tool failures (missing file, timeout, ...). Meaningful
	// only when !Ok.
	Err error
}

// Success builds an ok ToolResult.
func Success(output string) ToolResult { return ToolResult{Ok: true, Output: output} }

// Failure builds a failed ToolResult from an error.
func Failure(err error) ToolResult { return ToolResult{Ok: false, Err: err} }

// Failuref builds a failed ToolResult from a format string.
func Failuref(format string, args ...any) ToolResult {
	return Failure(toolerrors.Errorf(format, args...))
}

// Handler executes one recognized tool against inputs and returns its
// result. Handlers never return a Go error: any failure is encoded as a
// failed ToolResult so Dispatch has a single, uniform failure path.
type Handler func(ctx context.Context, d *Dispatcher, inputs map[string]any) ToolResult

// Dispatcher scopes every tool invocation to a fixed workspace root and
// enforces the per-Bash-call timeout from spec.md §4.1 / §6.
type Dispatcher struct {
	root         string
	bashTimeout  int // seconds; spec.md §6 default 120
	validator    *schema.Validator
	handlers     map[string]Handler
	logger       telemetry.Logger
	grepMaxMatch int
	skipDirNames map[string]bool
	binaryExtSet map[string]bool
}

// Option configures a Dispatcher at construction time.
type Option func(*Dispatcher)

// WithBashTimeout overrides the default 120s Bash wall-clock timeout.
func WithBashTimeout(seconds int) Option {
	return func(d *Dispatcher) {
		if seconds > 0 {
			d.bashTimeout = seconds
		}
	}
}

// WithLogger attaches a structured logger; the zero value is a noop logger.
func WithLogger(l telemetry.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// New constructs a Dispatcher rooted at workspaceRoot, registering the six
// tools of spec.md §4.1's closed set. validator may be nil to skip schema
// validation (e.g. in unit tests that exercise a single handler directly).
func New(workspaceRoot string, validator *schema.Validator, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		root:         workspaceRoot,
		bashTimeout:  120,
		validator:    validator,
		logger:       telemetry.NewNoopLogger(),
		grepMaxMatch: 100,
		skipDirNames: map[string]bool{
			"node_modules": true, "target": true, "build": true,
			"dist": true, "__pycache__": true,
		},
		binaryExtSet: map[string]bool{
			".class": true, ".jar": true, ".war": true, ".ear": true,
			".zip": true, ".tar": true, ".gz": true, ".png": true,
			".jpg": true, ".jpeg": true, ".gif": true, ".ico": true,
			".pdf": true, ".exe": true, ".dll": true, ".so": true, ".dylib": true,
		},
	}
	d.handlers = map[string]Handler{
		"Read":  handleRead,
		"Write": handleWrite,
		"Edit":  handleEdit,
		"Bash":  handleBash,
		"Glob":  handleGlob,
		"Grep":  handleGrep,
	}
	for _, o := range opts {
		if o != nil {
			o(d)
		}
	}
	return d
}

// Dispatch executes one tool call. Unknown tool names surface as a
// dispatcher-level failure distinct from any per-tool failure (spec.md
// §4.1), and schema violations are reported before the handler runs.
func (d *Dispatcher) Dispatch(ctx context.Context, toolName string, inputs map[string]any) ToolResult {
	handler, ok := d.handlers[toolName]
	if !ok {
		return Failuref("dispatch: unrecognized tool %q", toolName)
	}
	if d.validator != nil {
		if err := d.validator.Validate(toolName, inputs); err != nil {
			return Failure(toolerrors.NewWithCause(fmt.Sprintf("invalid input for tool %q", toolName), err))
		}
	}
	d.logger.Debug(ctx, "dispatching tool call", "tool", toolName)
	result := handler(ctx, d, inputs)
	if !result.Ok {
		d.logger.Debug(ctx, "tool call failed", "tool", toolName, "error", result.Err)
	}
	return result
}

func stringInput(inputs map[string]any, key string) (string, bool) {
	v, ok := inputs[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
