// Package toolerrors provides a structured error type for tool dispatch
// failures. ToolError preserves causal chains (errors.Is/As via Unwrap)
// while still reducing cleanly to the plain failure string that the Tool
// Dispatcher hands back to the model as a tool result (spec.md §4.1, §7).
package toolerrors

import (
	"errors"
	"fmt"
)

// ToolError is a tool-dispatch failure that keeps its message and causal
// chain distinct, so dispatcher-level code can classify a failure (timeout,
// missing file, non-unique anchor, ...) without losing the original error
// for logging.
type ToolError struct {
	// Message is the human-readable summary returned to the model.
	Message string
	// Cause links to the underlying tool error, if any.
	Cause *ToolError
}

// New constructs a ToolError from a plain message.
func New(message string) *ToolError {
	if message == "" {
		message = "tool error"
	}
	return &ToolError{Message: message}
}

// Errorf formats a ToolError per a format specifier.
func Errorf(format string, args ...any) *ToolError {
	return New(fmt.Sprintf(format, args...))
}

// NewWithCause constructs a ToolError wrapping an underlying error.
func NewWithCause(message string, cause error) *ToolError {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &ToolError{Message: message, Cause: FromError(cause)}
}

// FromError converts an arbitrary error into a ToolError chain, reusing an
// existing ToolError chain found via errors.As rather than flattening it.
func FromError(err error) *ToolError {
	if err == nil {
		return nil
	}
	var te *ToolError
	if errors.As(err, &te) {
		return te
	}
	return &ToolError{Message: err.Error(), Cause: FromError(errors.Unwrap(err))}
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Unwrap exposes the causal chain to errors.Is/As.
func (e *ToolError) Unwrap() error {
	if e == nil || e.Cause == nil {
		return nil
	}
	return e.Cause
}
