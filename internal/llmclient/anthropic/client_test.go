package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdd-orchestrator/tdd/internal/llmclient"
)

type stubMessagesClient struct {
	lastParams sdk.MessageNewParams
	resp       *sdk.Message
	err        error
}

func (s *stubMessagesClient) New(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) (*sdk.Message, error) {
	s.lastParams = body
	return s.resp, s.err
}

func textRequest(text string) llmclient.Request {
	return llmclient.Request{
		Messages: []llmclient.Message{{Role: llmclient.RoleUser, Parts: []llmclient.Part{llmclient.TextPart{Text: text}}}},
	}
}

func TestNewRequiresMessagesClient(t *testing.T) {
	_, err := New(nil, Options{DefaultModel: "claude-3-5-sonnet"})
	assert.Error(t, err)
}

func TestNewRequiresDefaultModel(t *testing.T) {
	_, err := New(&stubMessagesClient{}, Options{})
	assert.Error(t, err)
}

func TestCompleteTranslatesTextOnlyReply(t *testing.T) {
	stub := &stubMessagesClient{resp: &sdk.Message{
		Content:    []sdk.ContentBlockUnion{{Type: "text", Text: "world"}},
		StopReason: sdk.StopReasonEndTurn,
	}}
	cl, err := New(stub, Options{DefaultModel: "claude-3-5-sonnet", MaxTokens: 128})
	require.NoError(t, err)

	resp, err := cl.Complete(context.Background(), textRequest("hello"))
	require.NoError(t, err)
	assert.Equal(t, "world", resp.Text)
	assert.Equal(t, llmclient.StopReasonEndTurn, resp.StopReason)
	assert.Equal(t, int64(128), stub.lastParams.MaxTokens)
}

func TestCompleteTranslatesToolUseReplyRestoringCanonicalName(t *testing.T) {
	stub := &stubMessagesClient{}
	cl, err := New(stub, Options{DefaultModel: "claude-3-5-sonnet", MaxTokens: 128})
	require.NoError(t, err)

	req := textRequest("call tool")
	req.Tools = []llmclient.ToolDefinition{{Name: "test.tool", Description: "a tool", InputSchema: map[string]any{"type": "object"}}}

	sanitized := sanitizeToolName("test.tool")
	stub.resp = &sdk.Message{
		Content:    []sdk.ContentBlockUnion{{Type: "tool_use", Name: sanitized, ID: "tool-1", Input: json.RawMessage(`{"x":1}`)}},
		StopReason: sdk.StopReasonToolUse,
	}

	resp, err := cl.Complete(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "test.tool", resp.ToolCalls[0].Name, "the provider-safe sanitized name must be mapped back to the canonical tool name")
	assert.Equal(t, "tool-1", resp.ToolCalls[0].ID)
	assert.Equal(t, float64(1), resp.ToolCalls[0].Input["x"])
}

func TestCompleteWrapsRateLimitError(t *testing.T) {
	stub := &stubMessagesClient{err: &sdk.Error{StatusCode: 429}}
	cl, err := New(stub, Options{DefaultModel: "claude-3-5-sonnet", MaxTokens: 64})
	require.NoError(t, err)

	_, err = cl.Complete(context.Background(), textRequest("hi"))
	assert.True(t, errors.Is(err, llmclient.ErrRateLimited))
}

func TestCompleteRequiresAtLeastOneMessage(t *testing.T) {
	cl, err := New(&stubMessagesClient{}, Options{DefaultModel: "claude-3-5-sonnet", MaxTokens: 64})
	require.NoError(t, err)
	_, err = cl.Complete(context.Background(), llmclient.Request{})
	assert.Error(t, err)
}

func TestCompleteRequiresPositiveMaxTokens(t *testing.T) {
	cl, err := New(&stubMessagesClient{}, Options{DefaultModel: "claude-3-5-sonnet"})
	require.NoError(t, err)
	_, err = cl.Complete(context.Background(), textRequest("hi"))
	assert.Error(t, err)
}

func TestSanitizeToolNamePassesThroughSafeNames(t *testing.T) {
	assert.Equal(t, "Read", sanitizeToolName("Read"))
}

func TestSanitizeToolNameReplacesUnsafeRunes(t *testing.T) {
	assert.Equal(t, "a_b_c", sanitizeToolName("a.b c"))
}

func TestEncodeToolsRejectsCollidingSanitizedNames(t *testing.T) {
	defs := []llmclient.ToolDefinition{
		{Name: "a.b", InputSchema: map[string]any{"type": "object"}},
		{Name: "a b", InputSchema: map[string]any{"type": "object"}},
	}
	_, _, _, err := encodeTools(defs)
	assert.Error(t, err)
}
