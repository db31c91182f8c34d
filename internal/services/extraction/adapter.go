// Package extraction turns filing chunks into a structured ExtractedSignal via
// one language-model call.
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/edgarsignals/internal/common"
	"github.com/ternarybob/edgarsignals/internal/interfaces"
	"github.com/ternarybob/edgarsignals/internal/models"
	"github.com/ternarybob/edgarsignals/internal/services/llm"
)

// DefaultMaxChunks bounds the number of chunks sent per filing
const DefaultMaxChunks = 12

const (
	directionRule = "omitempty,oneof=up down mixed"
	severityRule  = "gte=0,lte=1"
)

// Adapter calls the model once per filing. It never retries.
type Adapter struct {
	generator   llm.ContentGenerator
	model       string
	maxChunks   int
	maxTokens   int
	temperature float32
	validate    *validator.Validate
	logger      arbor.ILogger
}

// NewAdapter builds an Adapter from pipeline settings
func NewAdapter(generator llm.ContentGenerator, config *common.PipelineConfig, logger arbor.ILogger) *Adapter {
	a := &Adapter{
		generator:   generator,
		maxChunks:   DefaultMaxChunks,
		maxTokens:   2000,
		temperature: 0.2,
		validate:    validator.New(),
		logger:      logger,
	}
	if config != nil {
		a.model = config.ExtractionModel
		if config.MaxChunks > 0 {
			a.maxChunks = config.MaxChunks
		}
		if config.MaxTokens > 0 {
			a.maxTokens = config.MaxTokens
		}
		a.temperature = config.Temperature
	}
	return a
}

// Extract submits the first maxChunks chunks and decodes the model's answer.
// Chunks past the limit are dropped without notice.
func (a *Adapter) Extract(ctx context.Context, ticker string, filing models.FilingRef, chunks []models.Chunk) (*models.ExtractedSignal, error) {
	submitted := chunks
	if len(submitted) > a.maxChunks {
		submitted = submitted[:a.maxChunks]
	}

	userPrompt, err := buildUserPrompt(ticker, filing, submitted)
	if err != nil {
		return nil, fmt.Errorf("failed to render extraction prompt: %w", err)
	}

	start := time.Now()
	resp, err := a.generator.GenerateContent(ctx, &llm.ContentRequest{
		Messages:          []interfaces.Message{{Role: "user", Content: userPrompt}},
		Model:             a.model,
		Temperature:       a.temperature,
		MaxTokens:         a.maxTokens,
		SystemInstruction: buildSystemPrompt(),
		OutputSchema:      OutputSchema(),
	})
	if err != nil {
		return nil, &ServiceError{Model: a.model, Err: err}
	}

	a.logger.Debug().
		Str("ticker", ticker).
		Int("chunks", len(submitted)).
		Int("chunks_dropped", len(chunks)-len(submitted)).
		Str("provider", string(resp.Provider)).
		Dur("elapsed", time.Since(start)).
		Msg("Extraction response received")

	return a.decode(ticker, resp.Text)
}

func (a *Adapter) decode(ticker, text string) (*models.ExtractedSignal, error) {
	span, ok := JSONSpan(text)
	if !ok {
		return nil, &FormatError{Raw: text}
	}

	var extracted models.ExtractedSignal
	if err := json.Unmarshal([]byte(span), &extracted); err != nil {
		return nil, &ParseError{Span: span, Err: err}
	}
	if repaired := a.normalize(&extracted); len(repaired) > 0 {
		a.logger.Warn().
			Str("ticker", ticker).
			Str("fields", strings.Join(repaired, "; ")).
			Msg("Extraction fields out of range, normalised")
	}
	if err := a.validate.Struct(&extracted); err != nil {
		return nil, &ParseError{Span: span, Err: err}
	}
	return &extracted, nil
}

// normalize repairs enum and range fields in place and returns one note per
// field it had to change. Directions are lower-cased; anything still outside
// the vocabulary is cleared. Severities are clamped into [0,1].
func (a *Adapter) normalize(extracted *models.ExtractedSignal) []string {
	var repaired []string
	for i := range extracted.ForwardDrivers {
		d := &extracted.ForwardDrivers[i]
		dir := strings.ToLower(strings.TrimSpace(d.Direction))
		if a.validate.Var(dir, directionRule) != nil {
			repaired = append(repaired, fmt.Sprintf("forwardDrivers[%d].direction %q cleared", i, d.Direction))
			dir = ""
		}
		d.Direction = dir
	}
	for i := range extracted.NotableRisks {
		r := &extracted.NotableRisks[i]
		if r.Severity == nil || a.validate.Var(*r.Severity, severityRule) == nil {
			continue
		}
		clamped := math.Min(1, math.Max(0, *r.Severity))
		repaired = append(repaired, fmt.Sprintf("notableRisks[%d].severity %g clamped to %g", i, *r.Severity, clamped))
		r.Severity = &clamped
	}
	return repaired
}
