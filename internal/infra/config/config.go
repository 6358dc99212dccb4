package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Engine       EngineConfig       `yaml:"engine"`
	LLM          LLMConfig          `yaml:"llm"`
	SessionCache SessionCacheConfig `yaml:"session_cache"`
	ProfileStore ProfileStoreConfig `yaml:"profile_store"`
	Channel      ChannelConfig      `yaml:"channel"`
	Report       ReportConfig       `yaml:"report"`
	Logger       LoggerConfig       `yaml:"logger"`
	Tracer       TracerConfig       `yaml:"tracer"`
}

// EngineConfig holds orchestrator-level settings.
type EngineConfig struct {
	// AgentTimeout bounds each downstream agent call.
	AgentTimeout time.Duration `yaml:"agent_timeout"`
	// HistoryTokenBudget bounds the history slice handed to the
	// conversational agent, measured in model tokens.
	HistoryTokenBudget int `yaml:"history_token_budget"`
}

// LLMConfig holds language-model provider settings.
type LLMConfig struct {
	Provider      string        `yaml:"provider"` // "bedrock"
	Region        string        `yaml:"region"`
	Model         string        `yaml:"model"`
	AnalysisModel string        `yaml:"analysis_model"` // defaults to Model
	MaxTokens     int           `yaml:"max_tokens"`
	Temperature   float64       `yaml:"temperature"`
	Breaker       BreakerConfig `yaml:"breaker"`
}

// BreakerConfig tunes the circuit breaker wrapped around the provider.
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// SessionCacheConfig holds ephemeral-store settings.
type SessionCacheConfig struct {
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

// ProfileStoreConfig holds durable-store settings.
type ProfileStoreConfig struct {
	Path string `yaml:"path"` // SQLite database file
}

// ChannelConfig holds channel adapter settings.
type ChannelConfig struct {
	Type          string  `yaml:"type"` // "telegram"
	Token         string  `yaml:"token"`
	SendPerSecond float64 `yaml:"send_per_second"`
	SendBurst     int     `yaml:"send_burst"`
}

// ReportConfig holds the scheduled-report settings.
type ReportConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"` // cron expression
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
	Output string `yaml:"output"` // stdout, stderr, or file path
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // "stdout" or "noop"
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} references with environment values. Unset
// variables expand to the empty string.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(m []byte) []byte {
		name := envPattern.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// Load reads, expands, parses, and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(expandEnv(data), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a config populated with defaults; Load overlays the
// file contents on top.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			AgentTimeout:       90 * time.Second,
			HistoryTokenBudget: 4000,
		},
		LLM: LLMConfig{
			Provider:    "bedrock",
			Region:      "us-east-1",
			Model:       "us.amazon.nova-lite-v1:0",
			MaxTokens:   1024,
			Temperature: 0.7,
		},
		SessionCache: SessionCacheConfig{
			RedisURL: "redis://localhost:6379",
			TTL:      24 * time.Hour,
		},
		ProfileStore: ProfileStoreConfig{
			Path: "./data/joby.db",
		},
		Channel: ChannelConfig{
			Type:          "telegram",
			SendPerSecond: 25,
			SendBurst:     5,
		},
		Report: ReportConfig{
			Enabled:  false,
			Schedule: "0 9 * * *",
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Exporter: "noop",
		},
	}
}

// Validate checks the config for inconsistencies that would surface as
// confusing runtime failures.
func (c *Config) Validate() error {
	if c.LLM.Provider != "bedrock" {
		return fmt.Errorf("llm.provider: unsupported provider %q", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model: required")
	}
	if c.SessionCache.RedisURL == "" {
		return fmt.Errorf("session_cache.redis_url: required")
	}
	if c.SessionCache.TTL <= 0 {
		return fmt.Errorf("session_cache.ttl: must be positive")
	}
	if c.ProfileStore.Path == "" {
		return fmt.Errorf("profile_store.path: required")
	}
	switch c.Channel.Type {
	case "telegram":
		if c.Channel.Token == "" {
			return fmt.Errorf("channel.token: required for telegram")
		}
	case "none":
		// headless mode for tests and one-shot runs
	default:
		return fmt.Errorf("channel.type: unsupported channel %q", c.Channel.Type)
	}
	if c.Engine.AgentTimeout <= 0 {
		return fmt.Errorf("engine.agent_timeout: must be positive")
	}
	return nil
}

// AnalysisModelOrDefault returns the model used for CV analysis.
func (c *LLMConfig) AnalysisModelOrDefault() string {
	if c.AnalysisModel != "" {
		return c.AnalysisModel
	}
	return c.Model
}
