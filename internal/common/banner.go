package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and logs the effective settings
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.PrintSimple("EDGAR Signals", GetVersion())

	logger.Info().
		Str("version", GetFullVersion()).
		Str("environment", config.Environment).
		Str("badger_path", config.Storage.Badger.Path).
		Str("objects_dir", config.Storage.Objects.Dir).
		Str("llm_provider", string(config.LLM.DefaultProvider)).
		Int("max_tickers", config.Runner.MaxTickers).
		Int("concurrency", config.Runner.Concurrency).
		Msg("Configuration loaded")
}
