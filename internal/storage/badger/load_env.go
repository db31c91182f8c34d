package badger

import (
	"context"
	"os"

	"github.com/joho/godotenv"
)

// LoadEnvFile copies KEY=value pairs from a .env file into the key/value store
// so config can reference them as {key}. Keys are stored lowercased. A missing
// file is skipped; empty values are ignored.
func (m *Manager) LoadEnvFile(ctx context.Context, filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		m.logger.Debug().Str("file", filePath).Msg(".env file does not exist, skipping")
		return nil
	}

	values, err := godotenv.Read(filePath)
	if err != nil {
		m.logger.Warn().Err(err).Str("file", filePath).Msg("Failed to parse .env file")
		return nil
	}

	var loaded, skipped, failed int
	for key, value := range values {
		if value == "" {
			m.logger.Warn().Str("file", filePath).Str("key", key).Msg("Skipping variable with empty value")
			skipped++
			continue
		}

		isNew, err := m.kv.Upsert(ctx, key, value, "Loaded from .env file")
		if err != nil {
			m.logger.Error().Err(err).Str("key", key).Msg("Failed to store variable from .env")
			failed++
			continue
		}
		if !isNew {
			m.logger.Debug().Str("key", key).Msg("Updated existing variable from .env")
		}
		loaded++
	}

	m.logger.Debug().
		Str("file", filePath).
		Int("loaded", loaded).
		Int("skipped", skipped).
		Int("errors", failed).
		Msg("Finished loading variables from .env file")
	return nil
}
