// Package bedrock adapts the AWS Bedrock Converse API into the
// orchestrator's llmclient.Capability, condensed from the production
// Bedrock model adapter: system and conversational messages are split,
// tool schemas are encoded as Bedrock documents, and tool_use/text blocks
// in the reply are translated back into the generic Response shape.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"

	"github.com/tdd-orchestrator/tdd/internal/llmclient"
)

// RuntimeClient is the subset of *bedrockruntime.Client the adapter needs.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Options configures the Bedrock adapter's defaults.
type Options struct {
	DefaultModel string
	MaxTokens    int
	Temperature  float32
}

// Client implements llmclient.Capability on top of Bedrock Converse.
type Client struct {
	runtime      RuntimeClient
	defaultModel string
	maxTokens    int
	temperature  float32
}

// New builds an adapter from a Bedrock runtime client.
func New(runtime RuntimeClient, opts Options) (*Client, error) {
	if runtime == nil {
		return nil, errors.New("bedrock: runtime client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("bedrock: default model identifier is required")
	}
	return &Client{
		runtime:      runtime,
		defaultModel: opts.DefaultModel,
		maxTokens:    opts.MaxTokens,
		temperature:  opts.Temperature,
	}, nil
}

// Complete issues one Converse call and translates the reply.
func (c *Client) Complete(ctx context.Context, req llmclient.Request) (llmclient.Response, error) {
	conversation, system, err := encodeMessages(req.Messages)
	if err != nil {
		return llmclient.Response{}, err
	}
	toolConfig, _, sanToCanon, err := encodeTools(req.Tools)
	if err != nil {
		return llmclient.Response{}, err
	}

	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}
	in := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(modelID),
		Messages: conversation,
		System:   system,
	}
	if toolConfig != nil {
		in.ToolConfig = toolConfig
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	temp := req.Temperature
	if temp <= 0 {
		temp = float64(c.temperature)
	}
	if maxTokens > 0 || temp > 0 {
		cfg := brtypes.InferenceConfiguration{}
		if maxTokens > 0 {
			cfg.MaxTokens = aws.Int32(int32(maxTokens))
		}
		if temp > 0 {
			cfg.Temperature = aws.Float32(float32(temp))
		}
		in.InferenceConfig = &cfg
	}

	out, err := c.runtime.Converse(ctx, in)
	if err != nil {
		if isThrottled(err) {
			return llmclient.Response{}, fmt.Errorf("%w: %w", llmclient.ErrRateLimited, err)
		}
		return llmclient.Response{}, fmt.Errorf("bedrock: converse: %w", err)
	}
	return translateResponse(out, sanToCanon)
}

func encodeMessages(msgs []llmclient.Message) ([]brtypes.Message, []brtypes.SystemContentBlock, error) {
	conversation := make([]brtypes.Message, 0, len(msgs))
	var system []brtypes.SystemContentBlock
	for _, m := range msgs {
		if m.Role == llmclient.RoleSystem {
			for _, p := range m.Parts {
				if v, ok := p.(llmclient.TextPart); ok && v.Text != "" {
					system = append(system, &brtypes.SystemContentBlockMemberText{Value: v.Text})
				}
			}
			continue
		}
		blocks := make([]brtypes.ContentBlock, 0, len(m.Parts))
		for _, part := range m.Parts {
			switch v := part.(type) {
			case llmclient.TextPart:
				if v.Text != "" {
					blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: v.Text})
				}
			case llmclient.ToolUsePart:
				tb := brtypes.ToolUseBlock{Name: aws.String(v.Name), Input: toDocument(v.Input)}
				if v.ID != "" {
					tb.ToolUseId = aws.String(v.ID)
				}
				blocks = append(blocks, &brtypes.ContentBlockMemberToolUse{Value: tb})
			case llmclient.ToolResultPart:
				tr := brtypes.ToolResultBlock{
					ToolUseId: aws.String(v.ToolUseID),
					Content: []brtypes.ToolResultContentBlock{
						&brtypes.ToolResultContentBlockMemberText{Value: v.Content},
					},
				}
				blocks = append(blocks, &brtypes.ContentBlockMemberToolResult{Value: tr})
			}
		}
		if len(blocks) == 0 {
			continue
		}
		role := brtypes.ConversationRoleAssistant
		if m.Role == llmclient.RoleUser {
			role = brtypes.ConversationRoleUser
		}
		conversation = append(conversation, brtypes.Message{Role: role, Content: blocks})
	}
	if len(conversation) == 0 {
		return nil, nil, errors.New("bedrock: at least one user/assistant message is required")
	}
	return conversation, system, nil
}

func encodeTools(defs []llmclient.ToolDefinition) (*brtypes.ToolConfiguration, map[string]string, map[string]string, error) {
	if len(defs) == 0 {
		return nil, nil, nil, nil
	}
	toolList := make([]brtypes.Tool, 0, len(defs))
	canonToSan := make(map[string]string, len(defs))
	sanToCanon := make(map[string]string, len(defs))
	for _, def := range defs {
		if def.Name == "" {
			continue
		}
		canonToSan[def.Name] = def.Name
		sanToCanon[def.Name] = def.Name
		spec := brtypes.ToolSpecification{
			Name:        aws.String(def.Name),
			Description: aws.String(def.Description),
			InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: toDocument(def.InputSchema)},
		}
		toolList = append(toolList, &brtypes.ToolMemberToolSpec{Value: spec})
	}
	if len(toolList) == 0 {
		return nil, nil, nil, nil
	}
	return &brtypes.ToolConfiguration{Tools: toolList}, canonToSan, sanToCanon, nil
}

func translateResponse(output *bedrockruntime.ConverseOutput, nameMap map[string]string) (llmclient.Response, error) {
	if output == nil {
		return llmclient.Response{}, errors.New("bedrock: response is nil")
	}
	resp := llmclient.Response{StopReason: llmclient.StopReason(output.StopReason)}
	msg, ok := output.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return resp, nil
	}
	for _, block := range msg.Value.Content {
		switch v := block.(type) {
		case *brtypes.ContentBlockMemberText:
			resp.Text += v.Value
		case *brtypes.ContentBlockMemberToolUse:
			name := ""
			if v.Value.Name != nil {
				name = *v.Value.Name
				if canonical, ok := nameMap[name]; ok {
					name = canonical
				}
			}
			id := ""
			if v.Value.ToolUseId != nil {
				id = *v.Value.ToolUseId
			}
			var input map[string]any
			if raw := decodeDocument(v.Value.Input); len(raw) > 0 {
				_ = json.Unmarshal(raw, &input)
			}
			resp.ToolCalls = append(resp.ToolCalls, llmclient.ToolUsePart{ID: id, Name: name, Input: input})
		}
	}
	if resp.StopReason == "" {
		resp.StopReason = llmclient.StopReasonEndTurn
	}
	return resp, nil
}

func toDocument(v any) document.Interface {
	if m, ok := v.(map[string]any); ok {
		return lazyDocument(m)
	}
	if v == nil {
		return lazyDocument(map[string]any{"type": "object"})
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return lazyDocument(map[string]any{"type": "object"})
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return lazyDocument(map[string]any{"type": "object"})
	}
	return lazyDocument(m)
}

func decodeDocument(doc document.Interface) json.RawMessage {
	if doc == nil {
		return nil
	}
	data, err := doc.MarshalSmithyDocument()
	if err != nil {
		return nil
	}
	return json.RawMessage(data)
}

type lazyDocument map[string]any

func (d lazyDocument) MarshalSmithyDocument() ([]byte, error) { return json.Marshal(map[string]any(d)) }
func (d lazyDocument) UnmarshalSmithyDocument(v any) error {
	data, err := json.Marshal(map[string]any(d))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func isThrottled(err error) bool {
	var apiErr smithy.APIError
	if ok := asAPIError(err, &apiErr); ok {
		return apiErr.ErrorCode() == "ThrottlingException"
	}
	return false
}

func asAPIError(err error, target *smithy.APIError) bool {
	for err != nil {
		if ae, ok := err.(smithy.APIError); ok {
			*target = ae
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
