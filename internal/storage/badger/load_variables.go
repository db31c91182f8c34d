package badger

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// VariableFile is one entry of a variables TOML file:
//
//	[anthropic_api_key]
//	value = "sk-..."
//	description = "optional description"
type VariableFile struct {
	Value       string `toml:"value"`
	Description string `toml:"description"`
}

// LoadVariablesFromFiles loads dirPath/variables.toml and then every .toml file
// under dirPath/variables/ into the key/value store. A missing directory is not
// an error; unreadable files are logged and skipped.
func (m *Manager) LoadVariablesFromFiles(ctx context.Context, dirPath string) error {
	if dirPath == "" {
		return nil
	}

	var loaded, skipped, failed int
	add := func(l, s, f int) {
		loaded += l
		skipped += s
		failed += f
	}

	variablesFile := filepath.Join(dirPath, "variables.toml")
	if _, err := os.Stat(variablesFile); err == nil {
		add(m.loadVariablesFromFile(ctx, variablesFile))
	}

	variablesDir := filepath.Join(dirPath, "variables")
	if info, err := os.Stat(variablesDir); err == nil && info.IsDir() {
		entries, err := os.ReadDir(variablesDir)
		if err != nil {
			m.logger.Warn().Err(err).Str("dir", variablesDir).Msg("Failed to read variables directory")
			failed++
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
				continue
			}
			add(m.loadVariablesFromFile(ctx, filepath.Join(variablesDir, entry.Name())))
		}
	}

	m.logger.Debug().
		Str("dir", dirPath).
		Int("loaded", loaded).
		Int("skipped", skipped).
		Int("errors", failed).
		Msg("Finished loading variables from files")

	return nil
}

func (m *Manager) loadVariablesFromFile(ctx context.Context, filePath string) (loaded, skipped, failed int) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		m.logger.Warn().Err(err).Str("file", filePath).Msg("Failed to read variable file")
		return 0, 0, 1
	}

	var variables map[string]VariableFile
	if err := toml.Unmarshal(content, &variables); err != nil {
		m.logger.Warn().Err(err).Str("file", filePath).Msg("Failed to parse variable file")
		return 0, 0, 1
	}

	fileName := filepath.Base(filePath)
	for key, variable := range variables {
		if variable.Value == "" {
			m.logger.Warn().Str("file", fileName).Str("key", key).Msg("Skipping variable with empty value")
			skipped++
			continue
		}

		description := variable.Description
		if description == "" {
			description = "Loaded from " + fileName
		}

		if _, err := m.kv.Upsert(ctx, key, variable.Value, description); err != nil {
			m.logger.Error().Err(err).Str("key", key).Msg("Failed to store variable")
			failed++
			continue
		}
		loaded++
	}
	return loaded, skipped, failed
}
