package common

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/edgarsignals/internal/interfaces"
)

func TestNewDefaultConfig_Valid(t *testing.T) {
	config := NewDefaultConfig()
	require.NoError(t, config.Validate())
	assert.Equal(t, 2000, config.Pipeline.ChunkSize)
	assert.Equal(t, 200, config.Pipeline.ChunkOverlap)
	assert.Equal(t, 12, config.Pipeline.MaxChunks)
	assert.Equal(t, 10, config.Runner.MaxTickers)
}

func TestLoadFromFiles_LayersAndEnv(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	override := filepath.Join(dir, "override.toml")

	require.NoError(t, os.WriteFile(base, []byte(`
[runner]
tickers = ["AAPL", "MSFT"]
concurrency = 2

[edgar]
user_agent = "Base Agent base@example.com"
`), 0644))
	require.NoError(t, os.WriteFile(override, []byte(`
[runner]
concurrency = 8

[edgar.cik]
ORCL = "0001341439"
`), 0644))

	t.Setenv(EnvPrefix+"EDGAR_USER_AGENT", "Env Agent env@example.com")

	config, err := LoadFromFiles(base, override)
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "MSFT"}, config.Runner.Tickers)
	assert.Equal(t, 8, config.Runner.Concurrency, "later file wins")
	assert.Equal(t, "Env Agent env@example.com", config.Edgar.UserAgent, "env wins over files")
	assert.Equal(t, "0001341439", config.Edgar.CIK["ORCL"])
	assert.Equal(t, 12, config.Pipeline.MaxChunks, "defaults survive")
}

func TestLoadFromFiles_Errors(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[runner\n"), 0644))
	_, err = LoadFromFiles(bad)
	assert.Error(t, err)
}

func TestApplyEnvOverrides_Tickers(t *testing.T) {
	t.Setenv(EnvPrefix+"TICKERS", "nvda, tsla,,")
	config, err := LoadFromFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"nvda", "tsla"}, config.Runner.Tickers)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "overlap not below size", mutate: func(c *Config) { c.Pipeline.ChunkOverlap = c.Pipeline.ChunkSize }},
		{name: "bad schedule", mutate: func(c *Config) { c.Scheduler.Schedule = "every day" }},
		{name: "bad provider", mutate: func(c *Config) { c.LLM.DefaultProvider = "openai" }},
		{name: "bad recipient", mutate: func(c *Config) { c.Notify.Recipients = []string{"not-an-email"} }},
		{name: "missing user agent", mutate: func(c *Config) { c.Edgar.UserAgent = "" }},
		{name: "bad duration", mutate: func(c *Config) { c.Runner.SubjectTimeout = "soon" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewDefaultConfig()
			tt.mutate(config)
			assert.Error(t, config.Validate())
		})
	}
}

type mapKV map[string]string

func (m mapKV) Get(ctx context.Context, key string) (string, error) {
	if v, ok := m[key]; ok {
		return v, nil
	}
	return "", interfaces.ErrKeyNotFound
}
func (m mapKV) Set(ctx context.Context, key, value, description string) error { m[key] = value; return nil }
func (m mapKV) Upsert(ctx context.Context, key, value, description string) (bool, error) {
	_, exists := m[key]
	m[key] = value
	return !exists, nil
}
func (m mapKV) Delete(ctx context.Context, key string) error { delete(m, key); return nil }
func (m mapKV) GetAll(ctx context.Context) (map[string]string, error) {
	return map[string]string(m), nil
}

func TestResolveAPIKey(t *testing.T) {
	ctx := context.Background()
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv(EnvPrefix+"CLAUDE_API_KEY", "")
	kv := mapKV{"anthropic_api_key": "from-kv"}

	key, err := ResolveAPIKey(ctx, kv, "anthropic_api_key", "from-config")
	require.NoError(t, err)
	assert.Equal(t, "from-kv", key)

	t.Setenv("ANTHROPIC_API_KEY", "from-env")
	key, err = ResolveAPIKey(ctx, kv, "anthropic_api_key", "from-config")
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)

	key, err = ResolveAPIKey(ctx, nil, "other_key", "from-config")
	require.NoError(t, err)
	assert.Equal(t, "from-config", key)

	_, err = ResolveAPIKey(ctx, nil, "other_key", "")
	assert.Error(t, err)
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 5*time.Minute, ParseDuration("5m", time.Second))
	assert.Equal(t, time.Second, ParseDuration("", time.Second))
	assert.Equal(t, time.Second, ParseDuration("nope", time.Second))
	assert.Equal(t, time.Second, ParseDuration("-1s", time.Second))
}
