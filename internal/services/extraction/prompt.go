package extraction

import (
	"strings"
	"text/template"

	"github.com/ternarybob/edgarsignals/internal/models"
)

const systemPrompt = "You are a precise financial analysis assistant. Output ONLY valid JSON."

var userPromptTemplate = template.Must(template.New("extract").Parse(
	`Extract forward-looking guidance and forecast drivers for {{.Ticker}}.
Use only evidence from the chunks. Keep rawQuote short.
Cite the chunkId of every statement. Use empty arrays when nothing is found.

Filing: {{.Filing.Form}} filed {{.Filing.FilingDate}}
Source: {{.Filing.SourceURL}}

CHUNKS:
{{range .Chunks}}
[{{.ChunkID}}]
{{.Text}}
{{end}}`))

type promptData struct {
	Ticker string
	Filing models.FilingRef
	Chunks []models.Chunk
}

func buildSystemPrompt() string {
	return systemPrompt + "\n\nReturn JSON matching this schema (informal):\n" + schemaHint
}

func buildUserPrompt(ticker string, filing models.FilingRef, chunks []models.Chunk) (string, error) {
	var sb strings.Builder
	if err := userPromptTemplate.Execute(&sb, promptData{Ticker: ticker, Filing: filing, Chunks: chunks}); err != nil {
		return "", err
	}
	return sb.String(), nil
}
