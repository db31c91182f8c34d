// Package pipeline decides per ticker whether a filing needs processing,
// runs extraction/diff/score when it does, and persists the run's signal.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/edgarsignals/internal/interfaces"
	"github.com/ternarybob/edgarsignals/internal/metrics"
	"github.com/ternarybob/edgarsignals/internal/models"
	"github.com/ternarybob/edgarsignals/internal/signals"
)

const (
	contentTypeHTML = "text/html"
	contentTypeText = "text/plain; charset=utf-8"
)

// Extractor produces an ExtractedSignal from filing chunks
type Extractor interface {
	Extract(ctx context.Context, ticker string, filing models.FilingRef, chunks []models.Chunk) (*models.ExtractedSignal, error)
}

// Splitter segments plain text into chunks
type Splitter interface {
	Chunk(text string) []models.Chunk
}

// Dependencies are the collaborators of the orchestrator. Metrics may be nil.
type Dependencies struct {
	Source    interfaces.FilingSource
	Converter interfaces.TextConverter
	Splitter  Splitter
	Extractor Extractor
	Docs      interfaces.DocumentStorage
	Signals   interfaces.SignalStorage
	Objects   interfaces.ObjectStorage
	Metrics   *metrics.Metrics
	Logger    arbor.ILogger
}

// Orchestrator runs the per-ticker state machine
type Orchestrator struct {
	deps  Dependencies
	steps map[State]func(context.Context, *tickerRun) (stepResult, error)
}

// tickerRun carries everything the steps learn during one invocation
type tickerRun struct {
	ticker  string
	runDate string

	filing    *models.Filing
	docKey    string
	prior     *models.SignalRecord
	extracted *models.ExtractedSignal
	outcome   models.RunOutcome
}

// NewOrchestrator validates deps and builds the step table
func NewOrchestrator(deps Dependencies) (*Orchestrator, error) {
	switch {
	case deps.Source == nil:
		return nil, errors.New("pipeline: filing source is required")
	case deps.Converter == nil:
		return nil, errors.New("pipeline: text converter is required")
	case deps.Splitter == nil:
		return nil, errors.New("pipeline: splitter is required")
	case deps.Extractor == nil:
		return nil, errors.New("pipeline: extractor is required")
	case deps.Docs == nil, deps.Signals == nil:
		return nil, errors.New("pipeline: document and signal storage are required")
	case deps.Objects == nil:
		return nil, errors.New("pipeline: object storage is required")
	case deps.Logger == nil:
		return nil, errors.New("pipeline: logger is required")
	}

	o := &Orchestrator{deps: deps}
	o.steps = map[State]func(context.Context, *tickerRun) (stepResult, error){
		StateStart:               o.fetch,
		StateFetched:             o.lookupDoc,
		StateDocKnownProcessed:   o.findReusable,
		StateReused:              o.persistReused,
		StateDocNewOrUnprocessed: o.extract,
		StateExtracted:           o.persistExtracted,
	}
	return o, nil
}

// ProcessTicker drives one ticker from START to PERSISTED. Errors from any
// collaborator are returned unchanged with a failed outcome.
func (o *Orchestrator) ProcessTicker(ctx context.Context, ticker, runDate string) (models.RunOutcome, error) {
	r := &tickerRun{ticker: ticker, runDate: runDate}
	logger := o.deps.Logger

	state := StateStart
	for state != StatePersisted {
		step, ok := o.steps[state]
		if !ok {
			return o.fail(r, fmt.Errorf("pipeline: no step for state %s", state))
		}

		start := time.Now()
		res, err := step(ctx, r)
		o.deps.Metrics.ObserveStep(string(state), time.Since(start))
		if err != nil {
			logger.Warn().
				Str("ticker", ticker).
				Str("state", string(state)).
				Err(err).
				Msg("Pipeline step failed")
			return o.fail(r, err)
		}

		o.deps.Metrics.RecordTransition(string(state), string(res.next))
		state = res.next
	}

	o.deps.Metrics.RecordOutcome(string(r.outcome.Status))
	logger.Info().
		Str("ticker", ticker).
		Str("run_date", runDate).
		Str("status", string(r.outcome.Status)).
		Str("doc_key", r.docKey).
		Msg("Ticker processed")

	return r.outcome, nil
}

func (o *Orchestrator) fail(r *tickerRun, err error) (models.RunOutcome, error) {
	o.deps.Metrics.RecordOutcome(string(models.OutcomeFailed))
	outcome := models.RunOutcome{Ticker: r.ticker, Status: models.OutcomeFailed, Err: err}
	if r.filing != nil {
		ref := r.filing.FilingRef
		outcome.DocRef = &ref
	}
	return outcome, err
}

// START -> FETCHED
func (o *Orchestrator) fetch(ctx context.Context, r *tickerRun) (stepResult, error) {
	filing, err := o.deps.Source.FetchLatestFiling(ctx, r.ticker)
	if err != nil {
		return stepResult{}, err
	}
	r.filing = filing
	r.docKey = filing.DocKey()
	return goTo(StateFetched)
}

// FETCHED -> DOC_KNOWN_PROCESSED | DOC_NEW_OR_UNPROCESSED
func (o *Orchestrator) lookupDoc(ctx context.Context, r *tickerRun) (stepResult, error) {
	doc, err := o.deps.Docs.GetDoc(ctx, r.ticker, r.docKey)
	if err != nil {
		return stepResult{}, err
	}
	if doc.IsProcessed() {
		return goTo(StateDocKnownProcessed)
	}
	return goTo(StateDocNewOrUnprocessed)
}

// DOC_KNOWN_PROCESSED -> REUSED | DOC_NEW_OR_UNPROCESSED.
// A processed marker without a reusable signal is inconsistent state; it is
// recovered by reprocessing rather than failing the ticker.
func (o *Orchestrator) findReusable(ctx context.Context, r *tickerRun) (stepResult, error) {
	prior, err := o.deps.Signals.GetLatestSignal(ctx, r.ticker)
	if err != nil {
		return stepResult{}, err
	}
	if prior == nil || prior.Extracted == nil {
		o.deps.Logger.Warn().
			Str("ticker", r.ticker).
			Str("doc_key", r.docKey).
			Msg("Document marked processed but no reusable signal, reprocessing")
		return goTo(StateDocNewOrUnprocessed)
	}
	r.prior = prior
	return goTo(StateReused)
}

// REUSED -> PERSISTED
func (o *Orchestrator) persistReused(ctx context.Context, r *tickerRun) (stepResult, error) {
	scores := r.prior.Scores
	if scores == nil {
		recomputed := signals.Score(*r.prior.Extracted, nil)
		scores = &recomputed
	}

	ref := r.filing.FilingRef
	rec := &models.SignalRecord{
		Ticker:     r.ticker,
		RunDate:    r.runDate,
		Extracted:  r.prior.Extracted,
		ChangeLog:  []models.ChangeEvent{},
		Scores:     scores,
		Skipped:    true,
		SkipReason: models.SkipReasonNoNewFiling,
		DocRef:     &ref,
	}

	if err := o.deps.Signals.PutSignal(ctx, rec); err != nil {
		if !errors.Is(err, models.ErrSignalExists) {
			return stepResult{}, err
		}
		return o.adoptExisting(ctx, r)
	}

	r.outcome = models.RunOutcome{
		Ticker:     r.ticker,
		Status:     models.OutcomeSkipped,
		SkipReason: models.SkipReasonNoNewFiling,
		Scores:     scores,
		DocRef:     &ref,
	}
	return goTo(StatePersisted)
}

// DOC_NEW_OR_UNPROCESSED -> EXTRACTED, or PERSISTED when the run date already has a record
func (o *Orchestrator) extract(ctx context.Context, r *tickerRun) (stepResult, error) {
	existing, err := o.deps.Signals.GetSignal(ctx, r.ticker, r.runDate)
	if err != nil {
		return stepResult{}, err
	}
	if existing != nil {
		return o.keepExisting(ctx, r, existing)
	}

	filing := r.filing
	text := o.deps.Converter.ToPlainText(filing.RawContent)
	chunks := o.deps.Splitter.Chunk(text)

	rawKey := fmt.Sprintf("raw/%s/%s.html", r.ticker, filing.ObjectName())
	textKey := fmt.Sprintf("text/%s/%s.txt", r.ticker, filing.ObjectName())

	if err := o.deps.Objects.Put(ctx, rawKey, filing.RawContent, contentTypeHTML); err != nil {
		return stepResult{}, &models.StoreError{Op: "put_object", Key: rawKey, Err: err}
	}
	if err := o.deps.Objects.Put(ctx, textKey, []byte(text), contentTypeText); err != nil {
		return stepResult{}, &models.StoreError{Op: "put_object", Key: textKey, Err: err}
	}

	created, err := o.deps.Docs.InsertDocIfAbsent(ctx, &models.DocRecord{
		Ticker:          r.ticker,
		SK:              r.docKey,
		Form:            filing.Form,
		FilingDate:      filing.FilingDate,
		AccessionNumber: filing.AccessionNumber,
		SourceURL:       filing.SourceURL,
		RawKey:          rawKey,
		TextKey:         textKey,
	})
	if err != nil {
		return stepResult{}, err
	}

	o.deps.Logger.Debug().
		Str("ticker", r.ticker).
		Str("doc_key", r.docKey).
		Bool("doc_created", created).
		Int("chunks", len(chunks)).
		Msg("Filing stored, extracting")

	extracted, err := o.deps.Extractor.Extract(ctx, r.ticker, filing.FilingRef, chunks)
	if err != nil {
		return stepResult{}, err
	}
	r.extracted = extracted
	return goTo(StateExtracted)
}

// EXTRACTED -> PERSISTED
func (o *Orchestrator) persistExtracted(ctx context.Context, r *tickerRun) (stepResult, error) {
	prior, err := o.deps.Signals.GetLatestSignal(ctx, r.ticker)
	if err != nil {
		return stepResult{}, err
	}

	var prev *models.ExtractedSignal
	if prior != nil {
		prev = prior.Extracted
	}
	changeLog := signals.Diff(prev, *r.extracted)
	scores := signals.Score(*r.extracted, changeLog)

	ref := r.filing.FilingRef
	rec := &models.SignalRecord{
		Ticker:    r.ticker,
		RunDate:   r.runDate,
		Extracted: r.extracted,
		ChangeLog: changeLog,
		Scores:    &scores,
		Skipped:   false,
		DocRef:    &ref,
	}

	if err := o.deps.Signals.PutSignal(ctx, rec); err != nil {
		if !errors.Is(err, models.ErrSignalExists) {
			return stepResult{}, err
		}
		return o.adoptExisting(ctx, r)
	}

	if _, err := o.deps.Docs.MarkDocProcessed(ctx, r.ticker, r.docKey); err != nil {
		return stepResult{}, err
	}

	r.outcome = models.RunOutcome{
		Ticker: r.ticker,
		Status: models.OutcomeProcessed,
		Scores: &scores,
		DocRef: &ref,
	}
	return goTo(StatePersisted)
}

// adoptExisting handles a second run for the same date: the stored record is
// immutable, so it becomes this run's outcome.
func (o *Orchestrator) adoptExisting(ctx context.Context, r *tickerRun) (stepResult, error) {
	existing, err := o.deps.Signals.GetSignal(ctx, r.ticker, r.runDate)
	if err != nil {
		return stepResult{}, err
	}
	if existing == nil {
		return stepResult{}, &models.StoreError{Op: "put_signal", Key: models.RunKey(r.runDate), Err: models.ErrSignalExists}
	}
	return o.keepExisting(ctx, r, existing)
}

// keepExisting makes the stored record this run's outcome. The current filing is
// marked processed only when that record is its own extraction; otherwise the
// filing stays unprocessed and is extracted on the next run date.
func (o *Orchestrator) keepExisting(ctx context.Context, r *tickerRun, existing *models.SignalRecord) (stepResult, error) {
	owned := !existing.Skipped && existing.DocRef != nil && existing.DocRef.DocKey() == r.docKey
	if owned {
		if _, err := o.deps.Docs.MarkDocProcessed(ctx, r.ticker, r.docKey); err != nil {
			return stepResult{}, err
		}
	}

	o.deps.Logger.Info().
		Str("ticker", r.ticker).
		Str("run_date", r.runDate).
		Str("doc_key", r.docKey).
		Bool("same_filing", owned).
		Msg("Signal already recorded for this run date, keeping it")

	r.outcome = OutcomeFromRecord(existing)
	return goTo(StatePersisted)
}

// OutcomeFromRecord classifies a stored signal as processed or skipped
func OutcomeFromRecord(rec *models.SignalRecord) models.RunOutcome {
	outcome := models.RunOutcome{
		Ticker: rec.Ticker,
		Status: models.OutcomeProcessed,
		Scores: rec.Scores,
		DocRef: rec.DocRef,
	}
	if rec.Skipped {
		outcome.Status = models.OutcomeSkipped
		outcome.SkipReason = rec.SkipReason
	}
	return outcome
}
