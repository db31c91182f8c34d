package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/edgarsignals/internal/common"
	"github.com/ternarybob/edgarsignals/internal/interfaces"
)

func newTestFactory(defaultProvider common.LLMProvider) *ProviderFactory {
	cfg := common.NewDefaultConfig()
	cfg.LLM.DefaultProvider = defaultProvider
	return NewProviderFactory(&cfg.Gemini, &cfg.Claude, &cfg.LLM, nil, arbor.NewLogger())
}

func TestDetectProvider(t *testing.T) {
	f := newTestFactory(common.LLMProviderGemini)

	tests := []struct {
		model    string
		expected ProviderType
	}{
		{"claude-haiku-4-5", ProviderClaude},
		{"claude/claude-sonnet-4-5", ProviderClaude},
		{"anthropic/claude-opus", ProviderClaude},
		{"Claude-Haiku", ProviderClaude},
		{"gemini-3-flash-preview", ProviderGemini},
		{"gemini/gemini-2.5-pro", ProviderGemini},
		{"google/gemini-2.5-pro", ProviderGemini},
		{"", ProviderGemini},
		{"some-other-model", ProviderGemini},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.expected, f.DetectProvider(tt.model))
		})
	}

	assert.Equal(t, ProviderClaude, newTestFactory(common.LLMProviderClaude).DetectProvider(""))
}

func TestNormalizeModel(t *testing.T) {
	f := newTestFactory(common.LLMProviderClaude)

	assert.Equal(t, "claude-haiku-4-5", f.NormalizeModel("claude/claude-haiku-4-5"))
	assert.Equal(t, "gemini-2.5-pro", f.NormalizeModel("Google/gemini-2.5-pro"))
	assert.Equal(t, "claude-haiku-4-5", f.NormalizeModel("claude-haiku-4-5"))
}

func TestConvertMessages(t *testing.T) {
	messages := []interfaces.Message{
		{Role: "system", Content: "be precise"},
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi"},
	}

	claudeMessages, system, err := convertMessagesToClaude(messages)
	require.NoError(t, err)
	assert.Equal(t, "be precise", system)
	assert.Len(t, claudeMessages, 2)

	contents, system, err := convertMessagesToGemini(messages)
	require.NoError(t, err)
	assert.Equal(t, "be precise", system)
	require.Len(t, contents, 2)
	assert.Equal(t, genai.RoleUser, contents[0].Role)
	assert.Equal(t, genai.RoleModel, contents[1].Role)

	_, _, err = convertMessagesToClaude(nil)
	assert.Error(t, err)
	_, _, err = convertMessagesToGemini([]interfaces.Message{{Role: "assistant", Content: "x"}})
	assert.Error(t, err)
}

func TestConvertToGenaiSchema(t *testing.T) {
	schemaMap := map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"guidance"},
		"properties": map[string]interface{}{
			"guidance": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type":       "object",
					"properties": map[string]interface{}{"metric": map[string]interface{}{"type": "string"}},
				},
			},
			"severity": map[string]interface{}{"type": "number", "minimum": 0, "maximum": 1.0},
			"direction": map[string]interface{}{
				"type": "string",
				"enum": []string{"up", "down", "mixed"},
			},
		},
	}

	schema, err := convertToGenaiSchema(schemaMap)
	require.NoError(t, err)
	require.NotNil(t, schema)
	assert.Equal(t, genai.TypeObject, schema.Type)
	assert.Equal(t, []string{"guidance"}, schema.Required)
	assert.Equal(t, genai.TypeArray, schema.Properties["guidance"].Type)
	assert.Equal(t, genai.TypeString, schema.Properties["guidance"].Items.Properties["metric"].Type)
	assert.Equal(t, []string{"up", "down", "mixed"}, schema.Properties["direction"].Enum)
	require.NotNil(t, schema.Properties["severity"].Minimum)
	assert.Equal(t, 0.0, *schema.Properties["severity"].Minimum)
	assert.Equal(t, 1.0, *schema.Properties["severity"].Maximum)

	empty, err := convertToGenaiSchema(nil)
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = convertToGenaiSchema(map[string]interface{}{"type": "tuple"})
	assert.Error(t, err)
}
