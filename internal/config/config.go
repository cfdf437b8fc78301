// Package config implements Configuration (C16): environment variables
// layered over an optional workspace-relative tdd.properties file
// (spec.md §6, extended by SPEC_FULL.md §6). Environment variables always
// win over the file, and both win over the documented defaults.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	defaultMaxRetries          = 3
	defaultBashTimeout         = 120
	defaultRateLimitPerSecond  = 2.0
	defaultRateLimitBurst      = 4
	propertiesFile             = "tdd.properties"
)

// LLMProvider selects which Agent Invoker adapter (C11) backs the Agent
// Invoker.
type LLMProvider string

const (
	ProviderAnthropic LLMProvider = "anthropic"
	ProviderBedrock    LLMProvider = "bedrock"
	ProviderOpenAI     LLMProvider = "openai"
)

// Config is the fully resolved configuration for one run.
type Config struct {
	// ProjectRoot is the workspace the workflow operates on.
	ProjectRoot string
	// MaxRetries holds TDD_MAX_RETRIES (default 3). Nothing reads it: the
	// per-phase retry bound is the constant model.MaxRetriesPerPhase.
	MaxRetries int
	// Model is an opaque model identifier passed through to the Agent
	// Invoker; interpretation is provider-specific.
	Model string
	// AnthropicAPIKey authenticates the default provider.
	AnthropicAPIKey string
	// OpenAIAPIKey authenticates the openai provider.
	OpenAIAPIKey string
	// LLMProvider selects the Agent Invoker adapter.
	LLMProvider LLMProvider
	// BashTimeoutSeconds bounds Tool Dispatcher Bash calls.
	BashTimeoutSeconds int
	// RateLimitPerSecond bounds the steady-state rate of Agent Invoker LLM
	// requests; RateLimitBurst bounds how many may fire back-to-back before
	// that rate is enforced.
	RateLimitPerSecond float64
	RateLimitBurst     int
	// TestCommand overrides test-framework auto-detection (C18) when set.
	TestCommand string
	// LockRedisURL enables the Workspace Lock (C13) when non-empty.
	LockRedisURL string
	// HistoryMongoURL enables the History Index (C14) when non-empty.
	HistoryMongoURL string
	// TemporalHost enables the Durable Execution Adapter (C12) when
	// non-empty.
	TemporalHost string
}

// Load resolves Config from the process environment, layered over
// propertiesFile in projectRoot if present. projectRoot itself is
// resolved first: TDD_PROJECT_ROOT, else the process's current
// directory.
func Load() (Config, error) {
	root := os.Getenv("TDD_PROJECT_ROOT")
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("config: resolve project root: %w", err)
		}
		root = wd
	}

	props, err := readProperties(filepath.Join(root, propertiesFile))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		ProjectRoot:        root,
		MaxRetries:         defaultMaxRetries,
		BashTimeoutSeconds: defaultBashTimeout,
		RateLimitPerSecond: defaultRateLimitPerSecond,
		RateLimitBurst:     defaultRateLimitBurst,
		LLMProvider:        ProviderAnthropic,
		AnthropicAPIKey:    os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		Model:              os.Getenv("TDD_MODEL"),
	}

	if v, ok := props["bash.timeout"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: tdd.properties bash.timeout: %w", err)
		}
		cfg.BashTimeoutSeconds = n
	}
	if v, ok := props["test.command"]; ok {
		cfg.TestCommand = v
	}
	if v, ok := props["llm.provider"]; ok {
		cfg.LLMProvider = LLMProvider(v)
	}
	if v, ok := props["llm.model"]; ok {
		cfg.Model = v
	}
	if v, ok := props["lock.redis_url"]; ok {
		cfg.LockRedisURL = v
	}
	if v, ok := props["history.mongo_url"]; ok {
		cfg.HistoryMongoURL = v
	}
	if v, ok := props["llm.rate_limit_per_second"]; ok {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("config: tdd.properties llm.rate_limit_per_second: %w", err)
		}
		cfg.RateLimitPerSecond = n
	}
	if v, ok := props["llm.rate_limit_burst"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: tdd.properties llm.rate_limit_burst: %w", err)
		}
		cfg.RateLimitBurst = n
	}

	if v := os.Getenv("TDD_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: TDD_MAX_RETRIES: %w", err)
		}
		cfg.MaxRetries = n
	}
	if v := os.Getenv("TDD_LLM_PROVIDER"); v != "" {
		cfg.LLMProvider = LLMProvider(v)
	}
	if v := os.Getenv("TDD_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("TDD_LOCK_REDIS_URL"); v != "" {
		cfg.LockRedisURL = v
	}
	if v := os.Getenv("TDD_HISTORY_MONGO_URL"); v != "" {
		cfg.HistoryMongoURL = v
	}
	if v := os.Getenv("TDD_TEMPORAL_HOST"); v != "" {
		cfg.TemporalHost = v
	}

	switch cfg.LLMProvider {
	case ProviderAnthropic, ProviderBedrock, ProviderOpenAI:
	default:
		return Config{}, fmt.Errorf("config: unknown llm provider %q", cfg.LLMProvider)
	}

	return cfg, nil
}

// readProperties parses a key=value file, one assignment per line. Blank
// lines and lines starting with # are ignored. A missing file is not an
// error — the config file is optional (spec.md §6).
func readProperties(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	props := map[string]string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("config: %s: malformed line %q", path, line)
		}
		props[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return props, nil
}
