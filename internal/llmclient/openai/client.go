// Package openai adapts github.com/openai/openai-go's Chat Completions API
// into the orchestrator's llmclient.Capability. Tool calls round-trip
// through the provider's function-calling shape: ToolDefinition becomes a
// function tool, and a ToolUsePart becomes a tool_call/tool_result pair
// keyed by the provider's call ID, mirroring the translation the
// Anthropic and Bedrock adapters perform for their own wire shapes.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/tdd-orchestrator/tdd/internal/llmclient"
)

// ChatClient is the subset of the SDK client the adapter needs, satisfied
// by &sdk.Client{}.Chat.Completions.
type ChatClient interface {
	New(ctx context.Context, body sdk.ChatCompletionNewParams, opts ...option.RequestOption) (*sdk.ChatCompletion, error)
}

// Options configures the adapter's defaults.
type Options struct {
	DefaultModel string
	MaxTokens    int
	Temperature  float64
}

// Client implements llmclient.Capability on top of OpenAI Chat Completions.
type Client struct {
	chat         ChatClient
	defaultModel string
	maxTokens    int
	temperature  float64
}

// New builds an adapter from a Chat Completions client.
func New(chat ChatClient, opts Options) (*Client, error) {
	if chat == nil {
		return nil, errors.New("openai: chat client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("openai: default model identifier is required")
	}
	return &Client{chat: chat, defaultModel: opts.DefaultModel, maxTokens: opts.MaxTokens, temperature: opts.Temperature}, nil
}

// NewFromAPIKey constructs a client talking to the real OpenAI API.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&c.Chat.Completions, Options{DefaultModel: defaultModel})
}

// Complete issues one Chat Completions request and translates the reply.
func (c *Client) Complete(ctx context.Context, req llmclient.Request) (llmclient.Response, error) {
	params, err := c.prepareRequest(req)
	if err != nil {
		return llmclient.Response{}, err
	}
	resp, err := c.chat.New(ctx, *params)
	if err != nil {
		if isRateLimited(err) {
			return llmclient.Response{}, fmt.Errorf("%w: %w", llmclient.ErrRateLimited, err)
		}
		return llmclient.Response{}, fmt.Errorf("openai: chat completions: %w", err)
	}
	return translateResponse(resp), nil
}

func (c *Client) prepareRequest(req llmclient.Request) (*sdk.ChatCompletionNewParams, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("openai: messages are required")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}
	messages, err := encodeMessages(req.SystemPrompt, req.Messages)
	if err != nil {
		return nil, err
	}
	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(modelID),
		Messages: messages,
	}
	if tools := encodeTools(req.Tools); len(tools) > 0 {
		params.Tools = tools
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	if maxTokens > 0 {
		params.MaxCompletionTokens = sdk.Int(int64(maxTokens))
	}
	temp := req.Temperature
	if temp <= 0 {
		temp = c.temperature
	}
	if temp > 0 {
		params.Temperature = sdk.Float(temp)
	}
	return &params, nil
}

func encodeMessages(systemPrompt string, msgs []llmclient.Message) ([]sdk.ChatCompletionMessageParamUnion, error) {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(msgs)+1)
	if systemPrompt != "" {
		out = append(out, sdk.SystemMessage(systemPrompt))
	}
	for _, m := range msgs {
		var text string
		var toolCalls []sdk.ChatCompletionMessageToolCallParam
		var toolResults []sdk.ChatCompletionMessageParamUnion
		for _, part := range m.Parts {
			switch v := part.(type) {
			case llmclient.TextPart:
				text += v.Text
			case llmclient.ToolUsePart:
				raw, err := json.Marshal(v.Input)
				if err != nil {
					return nil, fmt.Errorf("openai: marshal tool call %q arguments: %w", v.Name, err)
				}
				toolCalls = append(toolCalls, sdk.ChatCompletionMessageToolCallParam{
					ID: v.ID,
					Function: sdk.ChatCompletionMessageToolCallFunctionParam{
						Name:      v.Name,
						Arguments: string(raw),
					},
				})
			case llmclient.ToolResultPart:
				toolResults = append(toolResults, sdk.ToolMessage(v.Content, v.ToolUseID))
			}
		}
		switch m.Role {
		case llmclient.RoleUser:
			if text != "" {
				out = append(out, sdk.UserMessage(text))
			}
		case llmclient.RoleAssistant:
			if len(toolCalls) > 0 {
				msg := sdk.ChatCompletionAssistantMessageParam{ToolCalls: toolCalls}
				if text != "" {
					msg.Content.OfString = sdk.String(text)
				}
				out = append(out, sdk.ChatCompletionMessageParamUnion{OfAssistant: &msg})
			} else if text != "" {
				out = append(out, sdk.AssistantMessage(text))
			}
		case llmclient.RoleSystem:
			if text != "" {
				out = append(out, sdk.SystemMessage(text))
			}
		}
		out = append(out, toolResults...)
	}
	if len(out) == 0 {
		return nil, errors.New("openai: at least one user/assistant message is required")
	}
	return out, nil
}

func encodeTools(defs []llmclient.ToolDefinition) []sdk.ChatCompletionToolParam {
	if len(defs) == 0 {
		return nil
	}
	tools := make([]sdk.ChatCompletionToolParam, 0, len(defs))
	for _, def := range defs {
		tools = append(tools, sdk.ChatCompletionToolParam{
			Function: sdk.FunctionDefinitionParam{
				Name:        def.Name,
				Description: sdk.String(def.Description),
				Parameters:  sdk.FunctionParameters(toParamMap(def.InputSchema)),
			},
		})
	}
	return tools
}

func toParamMap(schema any) map[string]any {
	raw, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{"type": "object"}
	}
	return m
}

func translateResponse(resp *sdk.ChatCompletion) llmclient.Response {
	out := llmclient.Response{StopReason: llmclient.StopReasonEndTurn}
	if len(resp.Choices) == 0 {
		return out
	}
	choice := resp.Choices[0]
	out.Text = choice.Message.Content
	for _, tc := range choice.Message.ToolCalls {
		var input map[string]any
		_ = json.Unmarshal([]byte(tc.Function.Arguments), &input)
		out.ToolCalls = append(out.ToolCalls, llmclient.ToolUsePart{ID: tc.ID, Name: tc.Function.Name, Input: input})
	}
	if len(out.ToolCalls) > 0 {
		out.StopReason = llmclient.StopReasonToolUse
	} else if choice.FinishReason == "length" {
		out.StopReason = llmclient.StopReasonMaxTokens
	}
	return out
}

func isRateLimited(err error) bool {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
