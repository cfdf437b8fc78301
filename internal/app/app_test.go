package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdd-orchestrator/tdd/internal/config"
)

func baseConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		ProjectRoot: t.TempDir(),
		TestCommand: "go test ./...",
		Model:       "claude-test-model",
		LLMProvider: config.ProviderAnthropic,
	}
}

func TestNewFailsFastWhenNoTestFrameworkDetectedAndNoOverride(t *testing.T) {
	cfg := baseConfig(t)
	cfg.TestCommand = ""

	_, err := New(context.Background(), cfg)
	assert.ErrorContains(t, err, "aborting before first phase")
}

func TestNewRequiresAnthropicAPIKeyForAnthropicProvider(t *testing.T) {
	cfg := baseConfig(t)
	cfg.AnthropicAPIKey = ""

	_, err := New(context.Background(), cfg)
	assert.ErrorContains(t, err, "ANTHROPIC_API_KEY")
}

func TestNewRequiresOpenAIAPIKeyForOpenAIProvider(t *testing.T) {
	cfg := baseConfig(t)
	cfg.LLMProvider = config.ProviderOpenAI
	cfg.OpenAIAPIKey = ""

	_, err := New(context.Background(), cfg)
	assert.ErrorContains(t, err, "OPENAI_API_KEY")
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	cfg := baseConfig(t)
	cfg.LLMProvider = config.LLMProvider("not-a-real-provider")

	_, err := New(context.Background(), cfg)
	assert.ErrorContains(t, err, "unknown llm provider")
}

func TestNewSucceedsWithAnthropicProviderAndNoOptionalComponents(t *testing.T) {
	cfg := baseConfig(t)
	cfg.AnthropicAPIKey = "test-key"

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, a.Repo)
	assert.NotNil(t, a.Handoffs)
	assert.NotNil(t, a.Executor)
	assert.NotNil(t, a.Driver)
	assert.Same(t, a.Driver, a.Workflow, "Workflow must run in-process when TemporalHost is unset")
	assert.Equal(t, "go test ./...", a.TestCommand)
	assert.Nil(t, a.Lock, "Lock must stay nil when LockRedisURL is unset")
	assert.Nil(t, a.History, "History must stay nil when HistoryMongoURL is unset")
	assert.NoError(t, a.Close())
}

func TestNewSelectsDurableWorkflowWhenTemporalHostIsConfigured(t *testing.T) {
	cfg := baseConfig(t)
	cfg.AnthropicAPIKey = "test-key"
	cfg.TemporalHost = "127.0.0.1:0"

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotSame(t, a.Driver, a.Workflow, "Workflow must be the durable runner when TemporalHost is set")
	assert.NotNil(t, a.Workflow)
	assert.NoError(t, a.Close())
}

func TestNewFailsOnUnparsableLockRedisURL(t *testing.T) {
	cfg := baseConfig(t)
	cfg.AnthropicAPIKey = "test-key"
	cfg.LockRedisURL = "://not-a-url"

	_, err := New(context.Background(), cfg)
	assert.ErrorContains(t, err, "lock.redis_url")
}

func TestBuildLockAcceptsValidRedisURL(t *testing.T) {
	cfg := baseConfig(t)
	cfg.LockRedisURL = "redis://localhost:6379/0"

	l, err := buildLock(cfg)
	require.NoError(t, err)
	assert.NotNil(t, l)
}
