// Package invoker implements the Agent Invoker (spec.md §4.4): it drives
// one agent's tool-use conversation with an LLM capability to a terminal
// stop, dispatching every tool call the model requests along the way.
package invoker

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/tdd-orchestrator/tdd/internal/dispatch"
	"github.com/tdd-orchestrator/tdd/internal/llmclient"
	"github.com/tdd-orchestrator/tdd/internal/telemetry"
)

// AgentConfig names an agent persona and the tools it may call.
type AgentConfig struct {
	Name         string
	SystemPrompt string
	ToolSchemas  []llmclient.ToolDefinition
	Model        string
}

// ToolCallRecord is one tool invocation made during the conversation,
// recorded in emission order regardless of outcome.
type ToolCallRecord struct {
	Name   string
	Input  map[string]any
	Result dispatch.ToolResult
}

// AgentResponse is the terminal outcome of running one agent to
// completion (spec.md §4.4).
type AgentResponse struct {
	FinalText string
	Turns     int
	ToolCalls []ToolCallRecord
}

// Invoker runs one agent's conversation loop against an LLM capability,
// dispatching tool calls through a Dispatcher.
type Invoker struct {
	llm        llmclient.Capability
	dispatcher *dispatch.Dispatcher
	logger     telemetry.Logger
	maxTurns   int
	limiter    *rate.Limiter
}

// Option configures an Invoker at construction time.
type Option func(*Invoker)

// WithLogger attaches a structured logger.
func WithLogger(l telemetry.Logger) Option {
	return func(i *Invoker) { i.logger = l }
}

// WithMaxTurns bounds the number of model replies a single invocation may
// take before the loop is aborted as a runaway conversation. Zero means
// unbounded; spec.md does not mandate a cap, but runaway tool_use loops
// are a real failure mode worth bounding defensively.
func WithMaxTurns(n int) Option {
	return func(i *Invoker) { i.maxTurns = n }
}

// WithRateLimit bounds the rate of LLM requests this Invoker issues, smoothing
// bursts of tool_use turns so they stay under the provider's own rate limit
// rather than relying solely on Recovery Strategy's WAIT_AND_RETRY to react
// after a RATE_LIMIT error has already occurred.
func WithRateLimit(requestsPerSecond float64, burst int) Option {
	return func(i *Invoker) { i.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst) }
}

// New constructs an Invoker.
func New(llm llmclient.Capability, dispatcher *dispatch.Dispatcher, opts ...Option) *Invoker {
	i := &Invoker{
		llm:        llm,
		dispatcher: dispatcher,
		logger:     telemetry.NewNoopLogger(),
		maxTurns:   50,
	}
	for _, o := range opts {
		if o != nil {
			o(i)
		}
	}
	return i
}

// Run executes cfg's agent against userPrompt, looping tool_use turns
// until the model stops for a non-tool_use reason (spec.md §4.4's
// conversation-loop protocol).
func (i *Invoker) Run(ctx context.Context, cfg AgentConfig, userPrompt string) (AgentResponse, error) {
	messages := []llmclient.Message{
		{Role: llmclient.RoleUser, Parts: []llmclient.Part{llmclient.TextPart{Text: userPrompt}}},
	}

	resp := AgentResponse{}
	for {
		if i.maxTurns > 0 && resp.Turns >= i.maxTurns {
			return resp, fmt.Errorf("invoker: agent %q exceeded max turns (%d)", cfg.Name, i.maxTurns)
		}
		req := llmclient.Request{
			SystemPrompt: cfg.SystemPrompt,
			Messages:     messages,
			Tools:        cfg.ToolSchemas,
			Model:        cfg.Model,
		}
		if i.limiter != nil {
			if err := i.limiter.Wait(ctx); err != nil {
				return resp, fmt.Errorf("invoker: agent %q: rate limiter: %w", cfg.Name, err)
			}
		}
		reply, err := i.llm.Complete(ctx, req)
		if err != nil {
			return resp, fmt.Errorf("invoker: agent %q: %w", cfg.Name, err)
		}
		resp.Turns++
		resp.FinalText = reply.Text

		if reply.StopReason != llmclient.StopReasonToolUse || len(reply.ToolCalls) == 0 {
			return resp, nil
		}

		assistantParts := make([]llmclient.Part, 0, len(reply.ToolCalls)+1)
		if reply.Text != "" {
			assistantParts = append(assistantParts, llmclient.TextPart{Text: reply.Text})
		}
		for _, tc := range reply.ToolCalls {
			assistantParts = append(assistantParts, tc)
		}
		messages = append(messages, llmclient.Message{Role: llmclient.RoleAssistant, Parts: assistantParts})

		resultParts := make([]llmclient.Part, 0, len(reply.ToolCalls))
		for _, tc := range reply.ToolCalls {
			i.logger.Debug(ctx, "invoker dispatching tool call", "agent", cfg.Name, "tool", tc.Name)
			result := i.dispatcher.Dispatch(ctx, tc.Name, tc.Input)
			resp.ToolCalls = append(resp.ToolCalls, ToolCallRecord{Name: tc.Name, Input: tc.Input, Result: result})

			part := llmclient.ToolResultPart{ToolUseID: tc.ID}
			if result.Ok {
				part.Content = result.Output
			} else {
				part.Content = result.Err.Error()
				part.IsError = true
			}
			resultParts = append(resultParts, part)
		}
		messages = append(messages, llmclient.Message{Role: llmclient.RoleUser, Parts: resultParts})
	}
}
