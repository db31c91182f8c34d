package badger

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"

	"github.com/ternarybob/edgarsignals/internal/common"
)

// emailFile is the layout of email.toml:
//
//	[email]
//	smtp_host = "smtp.gmail.com"
//	smtp_port = 587
//	smtp_username = "{smtp_username}"
//	smtp_password = "{smtp_password}"
//	smtp_from = "signals@example.com"
//	smtp_from_name = "EDGAR Signals"
//	smtp_use_tls = true
type emailFile struct {
	Email struct {
		Host     string `toml:"smtp_host"`
		Port     int    `toml:"smtp_port"`
		Username string `toml:"smtp_username"`
		Password string `toml:"smtp_password"`
		From     string `toml:"smtp_from"`
		FromName string `toml:"smtp_from_name"`
		UseTLS   *bool  `toml:"smtp_use_tls"`
	} `toml:"email"`
}

// LoadEmailFromFile copies dirPath/email.toml into the smtp_* keys read by the
// mail notifier. {key} references resolve against variables already loaded.
// A missing or malformed file is logged and skipped.
func (m *Manager) LoadEmailFromFile(ctx context.Context, dirPath string) error {
	if dirPath == "" {
		return nil
	}

	filePath := filepath.Join(dirPath, "email.toml")
	content, err := os.ReadFile(filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn().Err(err).Str("file", filePath).Msg("Failed to read email config file")
		}
		return nil
	}

	var parsed emailFile
	if err := toml.Unmarshal(content, &parsed); err != nil {
		m.logger.Warn().Err(err).Str("file", filePath).Msg("Failed to parse email config file")
		return nil
	}
	cfg := parsed.Email
	if cfg.Host == "" && cfg.Username == "" {
		m.logger.Debug().Str("file", filePath).Msg("Email config file has no [email] section, skipping")
		return nil
	}

	kvMap, err := m.kv.GetAll(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to load KV map for email variable substitution")
		kvMap = map[string]string{}
	}

	items := []struct{ key, value, description string }{
		{"smtp_host", cfg.Host, "SMTP server hostname"},
		{"smtp_username", cfg.Username, "SMTP username"},
		{"smtp_password", cfg.Password, "SMTP password or app password"},
		{"smtp_from", cfg.From, "From email address"},
		{"smtp_from_name", cfg.FromName, "From display name"},
	}
	if cfg.Port > 0 {
		items = append(items, struct{ key, value, description string }{"smtp_port", strconv.Itoa(cfg.Port), "SMTP server port"})
	}
	if cfg.UseTLS != nil {
		items = append(items, struct{ key, value, description string }{"smtp_use_tls", strconv.FormatBool(*cfg.UseTLS), "Use TLS encryption"})
	}

	stored := 0
	for _, item := range items {
		if item.value == "" {
			continue
		}
		value, unresolved := common.ReplaceKeyReferences(item.value, kvMap)
		if len(unresolved) > 0 {
			m.logger.Warn().Str("field", item.key).Strs("unresolved", unresolved).Msg("Email config field contains unresolved variable reference")
		}
		if err := m.kv.Set(ctx, item.key, value, item.description); err != nil {
			m.logger.Warn().Err(err).Str("key", item.key).Msg("Failed to store email config")
			continue
		}
		stored++
	}

	m.logger.Info().Int("stored", stored).Str("host", cfg.Host).Msg("Loaded email configuration from file")
	return nil
}
