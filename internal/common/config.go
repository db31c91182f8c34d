package common

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"

	"github.com/ternarybob/edgarsignals/internal/interfaces"
)

// EnvPrefix is the prefix for all environment variable overrides
const EnvPrefix = "EDGARSIGNALS_"

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Variables   KeysDirConfig   `toml:"variables"` // Directory holding variables.toml (API keys, SMTP settings)
	Edgar       EdgarConfig     `toml:"edgar"`
	Pipeline    PipelineConfig  `toml:"pipeline"`
	Runner      RunnerConfig    `toml:"runner"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Notify      NotifyConfig    `toml:"notify"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	LLM         LLMConfig       `toml:"llm"`
}

// ServerConfig is the listener for /metrics and /healthz in serve mode
type ServerConfig struct {
	Port int    `toml:"port" validate:"gte=0,lte=65535"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger  BadgerConfig  `toml:"badger"`
	Objects ObjectsConfig `toml:"objects"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
}

// ObjectsConfig is the filesystem root for raw filings, plain text and archived digests
type ObjectsConfig struct {
	Dir string `toml:"dir" validate:"required"`
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"oneof=debug info warn error"`
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05")
}

// KeysDirConfig contains configuration for key/value file loading
type KeysDirConfig struct {
	Dir string `toml:"dir"`
}

// EdgarConfig configures the SEC EDGAR filing source
type EdgarConfig struct {
	UserAgent      string            `toml:"user_agent" validate:"required"` // SEC requires "Name contact@example.com"
	SubmissionsURL string            `toml:"submissions_url" validate:"required,url"`
	ArchivesURL    string            `toml:"archives_url" validate:"required,url"`
	RateLimit      int               `toml:"rate_limit" validate:"gte=1,lte=10"` // Requests per second (SEC allows 10)
	RequestTimeout string            `toml:"request_timeout"`
	MaxRetries     int               `toml:"max_retries" validate:"gte=0"`
	CIK            map[string]string `toml:"cik"` // Extra ticker -> CIK mappings
}

// PipelineConfig configures chunking and model usage
type PipelineConfig struct {
	ChunkSize       int     `toml:"chunk_size" validate:"gt=0"`
	ChunkOverlap    int     `toml:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
	MaxChunks       int     `toml:"max_chunks" validate:"gt=0"`
	ExtractionModel string  `toml:"extraction_model"` // Empty uses the default provider's model
	DigestModel     string  `toml:"digest_model"`
	MaxTokens       int     `toml:"max_tokens" validate:"gt=0"`
	Temperature     float32 `toml:"temperature" validate:"gte=0,lte=2"`
}

// RunnerConfig configures the multi-ticker run
type RunnerConfig struct {
	Tickers        []string `toml:"tickers"`
	TickersFile    string   `toml:"tickers_file"`
	MaxTickers     int      `toml:"max_tickers" validate:"gt=0"`
	Concurrency    int      `toml:"concurrency" validate:"gt=0"`
	MaxRetries     int      `toml:"max_retries" validate:"gte=0"`
	RetryDelay     string   `toml:"retry_delay"`
	SubjectTimeout string   `toml:"subject_timeout"`
}

// SchedulerConfig configures the daily trigger used by serve mode
type SchedulerConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Standard 5 field cron expression
}

// NotifyConfig selects digest sinks
type NotifyConfig struct {
	Recipients []string `toml:"recipients" validate:"dive,email"` // Email recipients; empty disables SMTP
	Log        bool     `toml:"log"`                              // Write the digest to the log
	Archive    bool     `toml:"archive"`                          // Keep alerts/{date}.md in the object store
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Temperature float32 `toml:"temperature"`
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float32 `toml:"temperature"`
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig selects the provider used when a model name does not identify one
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider" validate:"oneof=gemini claude"`
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 9464,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/db",
			},
			Objects: ObjectsConfig{
				Dir: "./data/objects",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
		},
		Variables: KeysDirConfig{
			Dir: "./",
		},
		Edgar: EdgarConfig{
			UserAgent:      "edgarsignals admin@example.com",
			SubmissionsURL: "https://data.sec.gov/submissions",
			ArchivesURL:    "https://www.sec.gov/Archives/edgar/data",
			RateLimit:      5,
			RequestTimeout: "30s",
			MaxRetries:     2,
		},
		Pipeline: PipelineConfig{
			ChunkSize:    2000,
			ChunkOverlap: 200,
			MaxChunks:    12,
			MaxTokens:    2000,
			Temperature:  0.2,
		},
		Runner: RunnerConfig{
			MaxTickers:     10,
			Concurrency:    4,
			MaxRetries:     1,
			RetryDelay:     "5s",
			SubjectTimeout: "5m",
		},
		Scheduler: SchedulerConfig{
			Enabled:  true,
			Schedule: "30 6 * * 1-5", // 06:30 on weekdays
		},
		Notify: NotifyConfig{
			Log:     true,
			Archive: true,
		},
		Gemini: GeminiConfig{
			Model:       "gemini-3-flash-preview",
			Temperature: 0.2,
		},
		Claude: ClaudeConfig{
			Model:       "claude-haiku-4-5",
			MaxTokens:   4096,
			Temperature: 0.2,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderClaude,
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier files. CLI overrides are applied by the caller.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv(EnvPrefix + "ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv(EnvPrefix + "SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv(EnvPrefix + "SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if badgerPath := os.Getenv(EnvPrefix + "BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if objectsDir := os.Getenv(EnvPrefix + "OBJECTS_DIR"); objectsDir != "" {
		config.Storage.Objects.Dir = objectsDir
	}

	if level := os.Getenv(EnvPrefix + "LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv(EnvPrefix + "LOG_OUTPUT"); output != "" {
		if outputs := SplitList(output); len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	if variablesDir := os.Getenv(EnvPrefix + "VARIABLES_DIR"); variablesDir != "" {
		config.Variables.Dir = variablesDir
	}

	if userAgent := os.Getenv(EnvPrefix + "EDGAR_USER_AGENT"); userAgent != "" {
		config.Edgar.UserAgent = userAgent
	}
	if rateLimit := os.Getenv(EnvPrefix + "EDGAR_RATE_LIMIT"); rateLimit != "" {
		if rl, err := strconv.Atoi(rateLimit); err == nil {
			config.Edgar.RateLimit = rl
		}
	}

	if model := os.Getenv(EnvPrefix + "EXTRACTION_MODEL"); model != "" {
		config.Pipeline.ExtractionModel = model
	}
	if model := os.Getenv(EnvPrefix + "DIGEST_MODEL"); model != "" {
		config.Pipeline.DigestModel = model
	}

	// Ticker list (comma separated)
	if tickers := os.Getenv(EnvPrefix + "TICKERS"); tickers != "" {
		config.Runner.Tickers = SplitList(tickers)
	}
	if tickersFile := os.Getenv(EnvPrefix + "TICKERS_FILE"); tickersFile != "" {
		config.Runner.TickersFile = tickersFile
	}
	if concurrency := os.Getenv(EnvPrefix + "CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Runner.Concurrency = c
		}
	}

	if schedule := os.Getenv(EnvPrefix + "SCHEDULE"); schedule != "" {
		config.Scheduler.Schedule = schedule
	}

	if recipients := os.Getenv(EnvPrefix + "NOTIFY_RECIPIENTS"); recipients != "" {
		config.Notify.Recipients = SplitList(recipients)
	}

	if provider := os.Getenv(EnvPrefix + "LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(strings.ToLower(provider))
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, tickers string, logLevel string) {
	if tickers != "" {
		config.Runner.Tickers = SplitList(tickers)
	}
	if logLevel != "" {
		config.Logging.Level = logLevel
	}
}

// Validate checks field constraints and the cron schedule
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Scheduler.Enabled {
		if err := ValidateSchedule(c.Scheduler.Schedule); err != nil {
			return fmt.Errorf("invalid scheduler.schedule: %w", err)
		}
	}
	for _, d := range []struct{ name, value string }{
		{"edgar.request_timeout", c.Edgar.RequestTimeout},
		{"runner.retry_delay", c.Runner.RetryDelay},
		{"runner.subject_timeout", c.Runner.SubjectTimeout},
	} {
		if d.value == "" {
			continue
		}
		if _, err := time.ParseDuration(d.value); err != nil {
			return fmt.Errorf("invalid %s: %w", d.name, err)
		}
	}
	return nil
}

// ResolveAPIKey resolves an API key by name.
// Resolution order: environment variables -> KV store -> config fallback -> error
func ResolveAPIKey(ctx context.Context, kvStorage interfaces.KeyValueStorage, name string, configFallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"gemini_api_key":    {EnvPrefix + "GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"},
		"anthropic_api_key": {EnvPrefix + "CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
	}

	if envVarNames, ok := keyToEnvMapping[name]; ok {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if kvStorage != nil {
		apiKey, err := kvStorage.Get(ctx, name)
		if err == nil && apiKey != "" {
			return apiKey, nil
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment, KV store, or config", name)
}

// ValidateSchedule validates a standard 5 field cron expression or a descriptor such as @daily
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

// ParseDuration parses a duration string, returning fallback when empty or invalid
func ParseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// SplitList splits a comma separated list and drops empty entries
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
