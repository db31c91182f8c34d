// Package alerts composes the daily digest from the signals stored for a run.
package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/edgarsignals/internal/common"
	"github.com/ternarybob/edgarsignals/internal/interfaces"
	"github.com/ternarybob/edgarsignals/internal/metrics"
	"github.com/ternarybob/edgarsignals/internal/models"
	"github.com/ternarybob/edgarsignals/internal/services/extraction"
	"github.com/ternarybob/edgarsignals/internal/services/llm"
)

// Composer builds the digest. Summarization failures degrade to FallbackDigest.
type Composer struct {
	signals     interfaces.SignalStorage
	generator   llm.ContentGenerator
	model       string
	maxTokens   int
	temperature float32
	metrics     *metrics.Metrics
	logger      arbor.ILogger
}

// NewComposer creates a digest composer
func NewComposer(signals interfaces.SignalStorage, generator llm.ContentGenerator, config *common.PipelineConfig, m *metrics.Metrics, logger arbor.ILogger) *Composer {
	c := &Composer{
		signals:     signals,
		generator:   generator,
		maxTokens:   2000,
		temperature: 0.2,
		metrics:     m,
		logger:      logger,
	}
	if config != nil {
		c.model = config.DigestModel
		if config.MaxTokens > 0 {
			c.maxTokens = config.MaxTokens
		}
		c.temperature = config.Temperature
	}
	return c
}

// Compose reads the run's signals and returns the digest. Outcomes are only
// cross-checked against the store; the store is authoritative.
func (c *Composer) Compose(ctx context.Context, runDate string, tickers []string, outcomes []models.RunOutcome) (*models.Alert, error) {
	if strings.TrimSpace(runDate) == "" {
		return nil, errors.New("compose digest: run date is required")
	}

	records, err := c.signals.BatchGetSignalsForRun(ctx, tickers, runDate)
	if err != nil {
		c.logger.Error().Err(err).Str("run_date", runDate).Msg("Failed to read run signals, using fallback digest")
		alert, ferr := FallbackDigest(runDate, tickers, nil, err.Error())
		if ferr != nil {
			return nil, ferr
		}
		return c.finish(alert, runDate, tickers, partition{missing: tickers}), nil
	}

	p := partitionSignals(tickers, records)
	c.crossCheck(p, outcomes)

	var alert *models.Alert
	if len(p.processed) == 0 {
		alert = noNewFilingsAlert(runDate, p)
	} else {
		alert, err = c.summarize(ctx, runDate, p)
		if err != nil {
			c.logger.Warn().Err(err).Str("run_date", runDate).Msg("Digest summary failed, using fallback")
			alert, err = FallbackDigest(runDate, tickers, records, err.Error())
			if err != nil {
				return nil, err
			}
		}
	}

	return c.finish(alert, runDate, tickers, p), nil
}

func (c *Composer) summarize(ctx context.Context, runDate string, p partition) (*models.Alert, error) {
	prompt, err := buildDigestPrompt(buildSummary(runDate, p))
	if err != nil {
		return nil, fmt.Errorf("failed to render digest prompt: %w", err)
	}

	start := time.Now()
	resp, err := c.generator.GenerateContent(ctx, &llm.ContentRequest{
		Messages:          []interfaces.Message{{Role: "user", Content: prompt}},
		Model:             c.model,
		Temperature:       c.temperature,
		MaxTokens:         c.maxTokens,
		SystemInstruction: digestSystemPrompt,
		OutputSchema:      DigestSchema(),
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("run_date", runDate).
		Int("processed", len(p.processed)).
		Str("provider", string(resp.Provider)).
		Dur("elapsed", time.Since(start)).
		Msg("Digest response received")

	span, ok := extraction.JSONSpan(resp.Text)
	if !ok {
		return nil, errors.New("digest response contained no JSON object")
	}

	var alert models.Alert
	if err := json.Unmarshal([]byte(span), &alert); err != nil {
		return nil, fmt.Errorf("failed to decode digest: %w", err)
	}
	alert.Mode = models.DigestModeLLM
	return &alert, nil
}

// finish applies the defaults every digest gets regardless of how it was built
func (c *Composer) finish(alert *models.Alert, runDate string, tickers []string, p partition) *models.Alert {
	if alert.Date == "" {
		alert.Date = runDate
	}
	if alert.NoNewFilings == nil {
		alert.NoNewFilings = p.skippedTickers()
	}
	if alert.Missing == nil {
		alert.Missing = p.missingTickers()
	}
	if strings.TrimSpace(alert.Subject) == "" {
		alert.Subject = DefaultSubject(runDate)
	}
	alert.Subject = TruncateSubject(alert.Subject)
	if strings.TrimSpace(alert.Markdown) == "" {
		alert.Markdown = RenderMarkdown(alert, runDate)
	}

	c.metrics.RecordDigest(alert.Mode)
	c.logger.Info().
		Str("run_date", runDate).
		Str("mode", alert.Mode).
		Int("tickers", len(tickers)).
		Int("processed", len(p.processed)).
		Int("no_new_filings", len(alert.NoNewFilings)).
		Int("missing", len(alert.Missing)).
		Msg("Digest composed")
	return alert
}

func (c *Composer) crossCheck(p partition, outcomes []models.RunOutcome) {
	stored := make(map[string]models.OutcomeStatus, len(p.processed)+len(p.skipped))
	for _, rec := range p.processed {
		stored[rec.Ticker] = models.OutcomeProcessed
	}
	for _, rec := range p.skipped {
		stored[rec.Ticker] = models.OutcomeSkipped
	}

	for _, o := range outcomes {
		want := o.Status
		if want == models.OutcomeFailed {
			want = models.OutcomeMissing
		}
		got, ok := stored[o.Ticker]
		if !ok {
			got = models.OutcomeMissing
		}
		if got != want {
			c.logger.Warn().
				Str("ticker", o.Ticker).
				Str("outcome", string(o.Status)).
				Str("stored", string(got)).
				Msg("Run outcome disagrees with stored signal")
		}
	}
}
