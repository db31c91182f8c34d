package alerts

import (
	"encoding/json"
	"strings"
	"text/template"

	"github.com/ternarybob/edgarsignals/internal/models"
)

// per-ticker list cap in the summary sent to the model
const maxSummaryItems = 5

const digestSchemaHint = `
{
  "date":"YYYY-MM-DD",
  "subject":"string",
  "topPositive":[{"ticker":"string","why":"string"}],
  "topNegative":[{"ticker":"string","why":"string"}],
  "guidanceChanges":[{"ticker":"string","what":"string"}],
  "watchlist":[{"ticker":"string","why":"string"}],
  "noNewFilings":["string"],
  "missing":["string"],
  "oneLiners":[{"ticker":"string","line":"string"}],
  "markdown":"string"
}`

const digestSystemPrompt = "You are a precise financial analysis assistant. Output ONLY valid JSON." +
	"\n\nReturn JSON matching this schema (informal):\n" + digestSchemaHint

var digestPromptTemplate = template.Must(template.New("digest").Parse(
	`Create a concise daily stock forecast signal alert.

Rules:
- Only rank and discuss "processed" tickers (new filing processed today).
- Include "noNewFilings" tickers as a simple list.
- Do NOT claim guidance changes unless present in the processed extracted fields.
- Keep "why/what" short, factual, and based on the structured data.
- Keep "subject" under {{.MaxSubject}} characters.

Input JSON:
{{.Input}}`))

type summaryCounts struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Missing   int `json:"missing"`
}

type processedSummary struct {
	Ticker         string                 `json:"ticker"`
	Scores         *models.ScoreSet       `json:"scores"`
	ChangeLog      []models.ChangeEvent   `json:"changeLog"`
	Guidance       []models.Guidance      `json:"guidance"`
	ForwardDrivers []models.ForwardDriver `json:"forwardDrivers"`
	NotableRisks   []models.NotableRisk   `json:"notableRisks"`
	DocRef         *models.FilingRef      `json:"docRef"`
}

type skippedSummary struct {
	Ticker     string            `json:"ticker"`
	SkipReason string            `json:"skipReason,omitempty"`
	DocRef     *models.FilingRef `json:"docRef"`
}

type summaryInput struct {
	RunDate   string             `json:"runDate"`
	Counts    summaryCounts      `json:"counts"`
	Processed []processedSummary `json:"processed"`
	Skipped   []skippedSummary   `json:"skipped"`
	Missing   []string           `json:"missing"`
}

func firstN[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	if items == nil {
		return []T{}
	}
	return items
}

func buildSummary(runDate string, p partition) summaryInput {
	in := summaryInput{
		RunDate: runDate,
		Counts: summaryCounts{
			Processed: len(p.processed),
			Skipped:   len(p.skipped),
			Missing:   len(p.missing),
		},
		Processed: make([]processedSummary, 0, len(p.processed)),
		Skipped:   make([]skippedSummary, 0, len(p.skipped)),
		Missing:   p.missingTickers(),
	}

	for _, rec := range p.processed {
		var extracted models.ExtractedSignal
		if rec.Extracted != nil {
			extracted = *rec.Extracted
		}
		changeLog := rec.ChangeLog
		if changeLog == nil {
			changeLog = []models.ChangeEvent{}
		}
		in.Processed = append(in.Processed, processedSummary{
			Ticker:         rec.Ticker,
			Scores:         rec.Scores,
			ChangeLog:      changeLog,
			Guidance:       firstN(extracted.Guidance, maxSummaryItems),
			ForwardDrivers: firstN(extracted.ForwardDrivers, maxSummaryItems),
			NotableRisks:   firstN(extracted.NotableRisks, maxSummaryItems),
			DocRef:         rec.DocRef,
		})
	}

	for _, rec := range p.skipped {
		in.Skipped = append(in.Skipped, skippedSummary{
			Ticker:     rec.Ticker,
			SkipReason: rec.SkipReason,
			DocRef:     rec.DocRef,
		})
	}
	return in
}

func buildDigestPrompt(in summaryInput) (string, error) {
	payload, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	err = digestPromptTemplate.Execute(&sb, struct {
		MaxSubject int
		Input      string
	}{MaxSubject: MaxSubjectLength, Input: string(payload)})
	return sb.String(), err
}

func reasonSchema(field string) map[string]interface{} {
	return map[string]interface{}{
		"type": "array",
		"items": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"ticker": map[string]interface{}{"type": "string"},
				field:    map[string]interface{}{"type": "string"},
			},
		},
	}
}

// DigestSchema is the JSON schema sent with the digest request
func DigestSchema() map[string]interface{} {
	stringArray := map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}}
	return map[string]interface{}{
		"type":     "object",
		"required": []string{"subject", "topPositive", "topNegative", "oneLiners"},
		"properties": map[string]interface{}{
			"date":            map[string]interface{}{"type": "string"},
			"subject":         map[string]interface{}{"type": "string"},
			"topPositive":     reasonSchema("why"),
			"topNegative":     reasonSchema("why"),
			"guidanceChanges": reasonSchema("what"),
			"watchlist":       reasonSchema("why"),
			"noNewFilings":    stringArray,
			"missing":         stringArray,
			"oneLiners":       reasonSchema("line"),
			"markdown":        map[string]interface{}{"type": "string"},
		},
	}
}
