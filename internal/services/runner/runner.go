// Package runner fans a daily run out across tickers, joins the outcomes
// and hands the stored signals to the digest composer.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"

	"github.com/ternarybob/edgarsignals/internal/common"
	"github.com/ternarybob/edgarsignals/internal/interfaces"
	"github.com/ternarybob/edgarsignals/internal/metrics"
	"github.com/ternarybob/edgarsignals/internal/models"
	"github.com/ternarybob/edgarsignals/internal/services/extraction"
	"github.com/ternarybob/edgarsignals/internal/services/notify"
)

const (
	defaultConcurrency    = 4
	defaultRetryDelay     = 5 * time.Second
	defaultSubjectTimeout = 5 * time.Minute
)

// TickerProcessor runs the per-ticker pipeline once
type TickerProcessor interface {
	ProcessTicker(ctx context.Context, ticker, runDate string) (models.RunOutcome, error)
}

// DigestComposer builds the run's digest after every ticker has finished
type DigestComposer interface {
	Compose(ctx context.Context, runDate string, tickers []string, outcomes []models.RunOutcome) (*models.Alert, error)
}

// RunRequest selects the tickers and date of one run. Empty fields fall back
// to configuration and today's UTC date.
type RunRequest struct {
	Tickers []string
	RunDate string
}

// RunReport summarizes a finished run
type RunReport struct {
	RunID      string
	RunDate    string
	Tickers    []string
	Outcomes   []models.RunOutcome
	Alert      *models.Alert
	PublishErr error
	StartedAt  time.Time
	Duration   time.Duration
}

// Count returns how many outcomes have the given status
func (r *RunReport) Count(status models.OutcomeStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Runner executes daily runs
type Runner struct {
	processor      TickerProcessor
	composer       DigestComposer
	notifier       interfaces.Notifier
	config         common.RunnerConfig
	concurrency    int
	maxRetries     int
	retryDelay     time.Duration
	subjectTimeout time.Duration
	metrics        *metrics.Metrics
	logger         arbor.ILogger
}

// NewRunner creates a Runner. Durations in config have already been validated.
func NewRunner(processor TickerProcessor, composer DigestComposer, notifier interfaces.Notifier, config common.RunnerConfig, m *metrics.Metrics, logger arbor.ILogger) *Runner {
	r := &Runner{
		processor:      processor,
		composer:       composer,
		notifier:       notifier,
		config:         config,
		concurrency:    config.Concurrency,
		maxRetries:     config.MaxRetries,
		retryDelay:     common.ParseDuration(config.RetryDelay, defaultRetryDelay),
		subjectTimeout: common.ParseDuration(config.SubjectTimeout, defaultSubjectTimeout),
		metrics:        m,
		logger:         logger,
	}
	if r.concurrency <= 0 {
		r.concurrency = defaultConcurrency
	}
	if r.maxRetries < 0 {
		r.maxRetries = 0
	}
	return r
}

// Run processes every ticker, then composes and publishes the digest.
// Ticker failures are reported in the outcomes, never as the returned error.
func (r *Runner) Run(ctx context.Context, req RunRequest) (*RunReport, error) {
	runDate := req.RunDate
	if runDate == "" {
		runDate = common.TodayRunDate()
	}
	if !common.ValidRunDate(runDate) {
		return nil, fmt.Errorf("invalid run date %q, want YYYY-MM-DD", runDate)
	}

	tickers, err := common.ResolveTickers(req.Tickers, r.config)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve tickers: %w", err)
	}
	if len(tickers) == 0 {
		return nil, errors.New("no tickers to process")
	}

	report := &RunReport{
		RunID:     common.NewRunID(),
		RunDate:   runDate,
		Tickers:   tickers,
		StartedAt: time.Now(),
	}
	logger := r.logger.WithCorrelationId(report.RunID)

	logger.Info().
		Str("run_date", runDate).
		Strs("tickers", tickers).
		Int("concurrency", r.concurrency).
		Msg("Daily run started")

	outcomes := make([]models.RunOutcome, len(tickers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, ticker := range tickers {
		g.Go(func() error {
			outcomes[i] = r.processSubject(gctx, logger, ticker, runDate)
			return nil
		})
	}
	_ = g.Wait()
	report.Outcomes = outcomes

	if err := ctx.Err(); err != nil {
		report.Duration = time.Since(report.StartedAt)
		return report, fmt.Errorf("run cancelled before digest: %w", err)
	}

	alert, err := r.composer.Compose(ctx, runDate, tickers, outcomes)
	if err != nil {
		report.Duration = time.Since(report.StartedAt)
		return report, fmt.Errorf("failed to compose digest: %w", err)
	}
	report.Alert = alert

	if err := r.notifier.Publish(notify.WithRunDate(ctx, runDate), alert.Subject, alert.Markdown); err != nil {
		report.PublishErr = err
		logger.Error().Err(err).Str("run_date", runDate).Msg("Failed to publish digest")
	}

	report.Duration = time.Since(report.StartedAt)
	r.metrics.ObserveRun(report.Duration)

	logger.Info().
		Str("run_date", runDate).
		Int("processed", report.Count(models.OutcomeProcessed)).
		Int("skipped", report.Count(models.OutcomeSkipped)).
		Int("failed", report.Count(models.OutcomeFailed)).
		Str("digest_mode", alert.Mode).
		Dur("duration", report.Duration).
		Msg("Daily run finished")

	return report, nil
}

// processSubject runs one ticker under its own timeout. Transient failures
// retry the whole ticker; the pipeline itself never retries.
func (r *Runner) processSubject(ctx context.Context, logger arbor.ILogger, ticker, runDate string) models.RunOutcome {
	ctx, cancel := context.WithTimeout(ctx, r.subjectTimeout)
	defer cancel()

	policy := retrypolicy.NewBuilder[models.RunOutcome]().
		WithBackoff(r.retryDelay, 4*r.retryDelay).
		WithMaxRetries(r.maxRetries).
		WithJitterFactor(0.1).
		HandleIf(func(_ models.RunOutcome, err error) bool {
			return retryReason(err) != ""
		}).
		ReturnLastFailure().
		Build()

	var last models.RunOutcome
	var lastErr error
	attempt := 0

	_, execErr := failsafe.With[models.RunOutcome](policy).WithContext(ctx).Get(func() (models.RunOutcome, error) {
		attempt++
		if attempt > 1 {
			reason := retryReason(lastErr)
			r.metrics.RecordRetry(reason)
			logger.Warn().
				Str("ticker", ticker).
				Int("attempt", attempt).
				Str("reason", reason).
				Err(lastErr).
				Msg("Retrying ticker")
		}

		err := common.SafeCall(logger, ticker, func() error {
			var err error
			last, err = r.processor.ProcessTicker(ctx, ticker, runDate)
			return err
		})
		lastErr = err
		return last, err
	})

	if attempt == 0 {
		lastErr = execErr
	}
	if lastErr != nil {
		logger.Error().Str("ticker", ticker).Int("attempts", attempt).Err(lastErr).Msg("Ticker failed")
		return models.RunOutcome{Ticker: ticker, Status: models.OutcomeFailed, DocRef: last.DocRef, Err: lastErr}
	}
	return last
}

// retryReason classifies retryable failures; "" means do not retry
func retryReason(err error) string {
	var fetchErr *models.FetchError
	var serviceErr *extraction.ServiceError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &fetchErr):
		return "fetch"
	case errors.As(err, &serviceErr):
		return "extraction_service"
	default:
		return ""
	}
}
