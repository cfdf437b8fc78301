// Package app wires Configuration (C16) into a runnable instance of every
// other component: the Repository Operations handle, Tool Dispatcher,
// Agent Invoker, Phase Executor, Workflow Driver, Handoff Store, and the
// optional Workspace Lock / History Index. The CLI (C17) is the only
// caller; kept separate so command files stay thin.
package app

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	goredis "github.com/redis/go-redis/v9"
	mongooptions "go.mongodb.org/mongo-driver/v2/mongo/options"

	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/tdd-orchestrator/tdd/internal/agentconfig"
	"github.com/tdd-orchestrator/tdd/internal/config"
	"github.com/tdd-orchestrator/tdd/internal/dispatch"
	"github.com/tdd-orchestrator/tdd/internal/gitops"
	"github.com/tdd-orchestrator/tdd/internal/handoff"
	"github.com/tdd-orchestrator/tdd/internal/historyindex"
	"github.com/tdd-orchestrator/tdd/internal/invoker"
	"github.com/tdd-orchestrator/tdd/internal/llmclient"
	"github.com/tdd-orchestrator/tdd/internal/llmclient/anthropic"
	"github.com/tdd-orchestrator/tdd/internal/llmclient/bedrock"
	"github.com/tdd-orchestrator/tdd/internal/llmclient/openai"
	"github.com/tdd-orchestrator/tdd/internal/lock"
	"github.com/tdd-orchestrator/tdd/internal/phaseexec"
	"github.com/tdd-orchestrator/tdd/internal/schema"
	"github.com/tdd-orchestrator/tdd/internal/telemetry"
	"github.com/tdd-orchestrator/tdd/internal/testframework"
	"github.com/tdd-orchestrator/tdd/internal/workflow"
)

// App bundles the constructed components for one run.
type App struct {
	Config      config.Config
	Repo        *gitops.Repo
	Handoffs    *handoff.Store
	Executor    *phaseexec.Executor
	Driver      *workflow.Driver
	TestCommand string

	// Workflow is what run/resume actually drive: Driver itself unless
	// Config.TemporalHost is set, in which case it is a durableRunner
	// running the same state machine inside a Temporal workflow (C12).
	Workflow Runner

	// Lock is nil unless Config.LockRedisURL is set.
	Lock *lock.Lock
	// History is nil unless Config.HistoryMongoURL is set.
	History *historyindex.Index

	durable *durableRunner
}

// New constructs an App from cfg. It resolves the test framework eagerly
// (spec.md §6: "the workflow aborts before the first phase" if none is
// found and test.command is unset) so callers can fail fast before ever
// touching the LLM provider.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	testCmd, err := testframework.Detect(cfg.ProjectRoot, cfg.TestCommand)
	if err != nil {
		return nil, err
	}

	repo := gitops.New(cfg.ProjectRoot)
	handoffs := handoff.New(repo)

	llm, err := buildLLMClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	logger := telemetry.NewClueLogger()

	validator, err := schema.NewValidator(schema.ToolSchemas())
	if err != nil {
		return nil, fmt.Errorf("app: build tool schema validator: %w", err)
	}
	dispatcher := dispatch.New(cfg.ProjectRoot, validator,
		dispatch.WithBashTimeout(cfg.BashTimeoutSeconds),
		dispatch.WithLogger(logger),
	)

	inv := invoker.New(llm, dispatcher,
		invoker.WithLogger(logger),
		invoker.WithRateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
	)
	executor := phaseexec.New(inv, repo, handoffs, agentconfig.Resolver(cfg.Model), phaseexec.WithLogger(logger))
	driver := workflow.New(executor, repo, workflow.WithLogger(logger))

	a := &App{
		Config:      cfg,
		Repo:        repo,
		Handoffs:    handoffs,
		Executor:    executor,
		Driver:      driver,
		TestCommand: testCmd,
		Workflow:    driver,
	}

	if cfg.TemporalHost != "" {
		durable, err := buildDurableRunner(cfg, executor, logger)
		if err != nil {
			return nil, err
		}
		a.Workflow = durable
		a.durable = durable
	}

	if cfg.LockRedisURL != "" {
		l, err := buildLock(cfg)
		if err != nil {
			return nil, err
		}
		a.Lock = l
	}
	if cfg.HistoryMongoURL != "" {
		h, err := buildHistoryIndex(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.History = h
	}

	return a, nil
}

// Close releases resources App.New acquired outside the workspace itself
// (currently: the Temporal client behind a durable Workflow). Safe to call
// on an App that never configured a durable runner.
func (a *App) Close() error {
	if a.durable != nil {
		return a.durable.Close()
	}
	return nil
}

func buildLLMClient(ctx context.Context, cfg config.Config) (llmclient.Capability, error) {
	switch cfg.LLMProvider {
	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("app: ANTHROPIC_API_KEY is required for the anthropic provider")
		}
		return anthropic.NewFromAPIKey(cfg.AnthropicAPIKey, cfg.Model)
	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("app: OPENAI_API_KEY is required for the openai provider")
		}
		return openai.NewFromAPIKey(cfg.OpenAIAPIKey, cfg.Model)
	case config.ProviderBedrock:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("app: load AWS config for bedrock: %w", err)
		}
		runtime := bedrockruntime.NewFromConfig(awsCfg)
		return bedrock.New(runtime, bedrock.Options{DefaultModel: cfg.Model})
	default:
		return nil, fmt.Errorf("app: unknown llm provider %q", cfg.LLMProvider)
	}
}

func buildLock(cfg config.Config) (*lock.Lock, error) {
	opts, err := goredis.ParseURL(cfg.LockRedisURL)
	if err != nil {
		return nil, fmt.Errorf("app: parse lock.redis_url: %w", err)
	}
	rdb := goredis.NewClient(opts)
	return lock.New(lock.Config{Redis: rdb, Key: "tdd:lock:" + cfg.ProjectRoot})
}

func buildHistoryIndex(ctx context.Context, cfg config.Config) (*historyindex.Index, error) {
	client, err := mongodriver.Connect(mongooptions.Client().ApplyURI(cfg.HistoryMongoURL))
	if err != nil {
		return nil, fmt.Errorf("app: connect to history.mongo_url: %w", err)
	}
	return historyindex.New(historyindex.Options{Client: client, Database: "tdd"})
}
