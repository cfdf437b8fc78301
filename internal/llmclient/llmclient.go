// Package llmclient defines the LLM capability abstraction the Agent
// Invoker (spec.md §4.4) drives: one opaque Capability implementation per
// provider, so swapping Anthropic for Bedrock or OpenAI never touches the
// conversation loop itself (spec.md §9, "capabilities over static
// globals").
package llmclient

import (
	"context"
	"errors"
)

// Role is the speaker of one message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Part is one piece of a message: plain text, a tool-use request, or a
// tool result. Exactly one concrete type implements Part per message
// entry; the Agent Invoker type-switches over it when assembling the next
// turn.
type Part interface{ isPart() }

// TextPart is plain assistant/user/system prose.
type TextPart struct{ Text string }

func (TextPart) isPart() {}

// ToolUsePart is a model-issued tool call, identified by an opaque,
// provider-scoped ID used to pair it with its ToolResultPart.
type ToolUsePart struct {
	ID    string
	Name  string
	Input map[string]any
}

func (ToolUsePart) isPart() {}

// ToolResultPart carries a tool's outcome back to the model, keyed by the
// ToolUsePart.ID it answers.
type ToolResultPart struct {
	ToolUseID string
	Content   string
	IsError   bool
}

func (ToolResultPart) isPart() {}

// Message is one turn in the conversation.
type Message struct {
	Role  Role
	Parts []Part
}

// ToolDefinition advertises one callable tool to the model, named and
// schema'd exactly as the Tool Dispatcher's six-tool closed set (spec.md
// §4.1): the JSON Schema documents from internal/schema.ToolSchemas.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema any
}

// Request is one LLM invocation: a conversation plus the tools on offer.
type Request struct {
	SystemPrompt string
	Messages     []Message
	Tools        []ToolDefinition
	Model        string
	MaxTokens    int
	Temperature  float64
}

// StopReason classifies why the model stopped generating.
type StopReason string

const (
	StopReasonEndTurn   StopReason = "end_turn"
	StopReasonToolUse   StopReason = "tool_use"
	StopReasonMaxTokens StopReason = "max_tokens"
)

// Response is one model reply.
type Response struct {
	Text       string
	ToolCalls  []ToolUsePart
	StopReason StopReason
}

// ErrRateLimited is wrapped into the error returned by Capability.Complete
// when the provider reports the request was throttled, so the Phase
// Executor's Error Classifier (spec.md §4.8) can recognize it regardless
// of which provider raised it.
var ErrRateLimited = errors.New("llmclient: rate limited")

// Capability is the one method every provider adapter implements: a
// single non-streaming request/response round trip. The Agent Invoker
// owns the multi-turn tool_use loop; adapters never loop themselves.
type Capability interface {
	Complete(ctx context.Context, req Request) (Response, error)
}
