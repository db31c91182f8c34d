package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/edgarsignals/internal/common"
	"github.com/ternarybob/edgarsignals/internal/models"
	"github.com/ternarybob/edgarsignals/internal/services/llm"
)

type fakeGenerator struct {
	text     string
	err      error
	requests []*llm.ContentRequest
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, request *llm.ContentRequest) (*llm.ContentResponse, error) {
	f.requests = append(f.requests, request)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ContentResponse{Text: f.text, Provider: llm.ProviderClaude, Model: request.Model}, nil
}

func testFiling() models.FilingRef {
	return models.FilingRef{
		Ticker:          "AAPL",
		Form:            models.FormQuarterly,
		FilingDate:      "2026-05-01",
		AccessionNumber: "000032019326000050",
		SourceURL:       "https://www.sec.gov/Archives/edgar/data/320193/000032019326000050/aapl.htm",
	}
}

func makeChunks(n int) []models.Chunk {
	chunks := make([]models.Chunk, n)
	for i := range chunks {
		chunks[i] = models.Chunk{ChunkID: fmt.Sprintf("c%d", i), Text: fmt.Sprintf("text of chunk %d", i)}
	}
	return chunks
}

func newTestAdapter(gen llm.ContentGenerator) *Adapter {
	cfg := common.NewDefaultConfig()
	return NewAdapter(gen, &cfg.Pipeline, arbor.NewLogger())
}

const validResponse = `Here is the extraction:
{"ticker":"AAPL","guidance":[{"metric":"revenue","period":"Q3","value":"up low single digits","rawQuote":"we expect","chunkId":"c1"}],
"forwardDrivers":[{"driver":"services","direction":"up","timeframe":"next quarter","evidence":["c2"]}],
"notableRisks":[{"risk":"FX","severity":0.4,"evidence":["c3"]},{"risk":"supply","evidence":["c4"]}]}
Let me know if you need more.`

func TestExtract_ParsesEmbeddedJSON(t *testing.T) {
	gen := &fakeGenerator{text: validResponse}
	a := newTestAdapter(gen)

	got, err := a.Extract(context.Background(), "AAPL", testFiling(), makeChunks(3))
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Len(t, got.Guidance, 1)
	assert.Equal(t, "revenue", got.Guidance[0].Metric)
	assert.Len(t, got.ForwardDrivers, 1)
	assert.Equal(t, models.DirectionUp, got.ForwardDrivers[0].Direction)
	require.Len(t, got.NotableRisks, 2)
	require.NotNil(t, got.NotableRisks[0].Severity)
	assert.Equal(t, 0.4, *got.NotableRisks[0].Severity)
	assert.Nil(t, got.NotableRisks[1].Severity)
}

func TestExtract_TruncatesToTwelveChunks(t *testing.T) {
	gen := &fakeGenerator{text: `{"guidance":[],"forwardDrivers":[],"notableRisks":[]}`}
	a := newTestAdapter(gen)

	_, err := a.Extract(context.Background(), "AAPL", testFiling(), makeChunks(20))
	require.NoError(t, err)
	require.Len(t, gen.requests, 1)

	prompt := gen.requests[0].Messages[0].Content
	assert.Contains(t, prompt, "[c0]\n")
	assert.Contains(t, prompt, "[c11]\n")
	assert.NotContains(t, prompt, "[c12]")
	assert.NotContains(t, prompt, "[c19]")
}

func TestExtract_RequestShape(t *testing.T) {
	gen := &fakeGenerator{text: `{}`}
	a := newTestAdapter(gen)

	_, err := a.Extract(context.Background(), "MSFT", testFiling(), makeChunks(1))
	require.NoError(t, err)
	require.Len(t, gen.requests, 1)

	req := gen.requests[0]
	assert.Equal(t, 2000, req.MaxTokens)
	assert.True(t, strings.HasPrefix(req.SystemInstruction, "You are a precise financial analysis assistant. Output ONLY valid JSON."))
	assert.Contains(t, req.SystemInstruction, "Return JSON matching this schema (informal):")
	assert.NotEmpty(t, req.OutputSchema)
	assert.True(t, strings.HasPrefix(req.Messages[0].Content, "Extract forward-looking guidance and forecast drivers for MSFT."))
	assert.Contains(t, req.Messages[0].Content, "Filing: 10-Q filed 2026-05-01")
}

func TestExtract_Errors(t *testing.T) {
	serviceErr := errors.New("connection reset")

	tests := []struct {
		name  string
		gen   *fakeGenerator
		check func(t *testing.T, err error)
	}{
		{
			name: "no JSON span",
			gen:  &fakeGenerator{text: "I could not find any guidance."},
			check: func(t *testing.T, err error) {
				var formatErr *FormatError
				assert.ErrorAs(t, err, &formatErr)
			},
		},
		{
			name: "closing brace before opening brace",
			gen:  &fakeGenerator{text: "} nothing here {"},
			check: func(t *testing.T, err error) {
				var formatErr *FormatError
				assert.ErrorAs(t, err, &formatErr)
			},
		},
		{
			name: "malformed JSON inside span",
			gen:  &fakeGenerator{text: `{"guidance": [ {"metric": }`},
			check: func(t *testing.T, err error) {
				var parseErr *ParseError
				require.ErrorAs(t, err, &parseErr)
				var syntaxErr *json.SyntaxError
				assert.ErrorAs(t, err, &syntaxErr)
			},
		},
		{
			name: "service failure",
			gen:  &fakeGenerator{err: serviceErr},
			check: func(t *testing.T, err error) {
				var svcErr *ServiceError
				assert.ErrorAs(t, err, &svcErr)
				assert.ErrorIs(t, err, serviceErr)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAdapter(tt.gen)
			got, err := a.Extract(context.Background(), "AAPL", testFiling(), makeChunks(2))
			require.Error(t, err)
			assert.Nil(t, got)
			tt.check(t, err)
			assert.Len(t, tt.gen.requests, 1, "adapter must not retry")
		})
	}
}

func TestExtract_NormalisesOutOfRangeFields(t *testing.T) {
	gen := &fakeGenerator{text: `{
"forwardDrivers":[{"driver":"pricing","direction":" Up "},{"driver":"fx","direction":"sideways"}],
"notableRisks":[{"risk":"supply","severity":1.5},{"risk":"legal","severity":-0.2},{"risk":"macro","severity":0.4},{"risk":"tax"}]}`}
	a := newTestAdapter(gen)

	got, err := a.Extract(context.Background(), "AAPL", testFiling(), makeChunks(1))
	require.NoError(t, err)

	require.Len(t, got.ForwardDrivers, 2)
	assert.Equal(t, models.DirectionUp, got.ForwardDrivers[0].Direction)
	assert.Equal(t, "", got.ForwardDrivers[1].Direction)
	assert.Equal(t, "fx", got.ForwardDrivers[1].Driver)

	require.Len(t, got.NotableRisks, 4)
	require.NotNil(t, got.NotableRisks[0].Severity)
	assert.Equal(t, 1.0, *got.NotableRisks[0].Severity)
	require.NotNil(t, got.NotableRisks[1].Severity)
	assert.Equal(t, 0.0, *got.NotableRisks[1].Severity)
	require.NotNil(t, got.NotableRisks[2].Severity)
	assert.Equal(t, 0.4, *got.NotableRisks[2].Severity)
	assert.Nil(t, got.NotableRisks[3].Severity)
}

func TestJSONSpan(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{`{"a":1}`, `{"a":1}`, true},
		{"```json\n{\"a\":{\"b\":2}}\n```", `{"a":{"b":2}}`, true},
		{`prefix {"a":1} middle {"b":2} suffix`, `{"a":1} middle {"b":2}`, true},
		{"no braces", "", false},
		{"{", "", false},
		{"}{", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := JSONSpan(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
