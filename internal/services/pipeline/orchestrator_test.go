package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/edgarsignals/internal/chunker"
	"github.com/ternarybob/edgarsignals/internal/models"
	"github.com/ternarybob/edgarsignals/internal/signals"
)

type harness struct {
	source    *fakeSource
	extractor *fakeExtractor
	docs      *memDocs
	signals   *memSignals
	objects   *memObjects
	orch      *Orchestrator
}

func sev(v float64) *float64 { return &v }

func testExtraction() *models.ExtractedSignal {
	return &models.ExtractedSignal{
		Ticker: "AAPL",
		Guidance: []models.Guidance{
			{Metric: "revenue", Value: "up", ChunkID: "c0"},
			{Metric: "margin", Value: "flat", ChunkID: "c1"},
		},
		ForwardDrivers: []models.ForwardDriver{
			{Driver: "services", Direction: models.DirectionUp},
		},
		NotableRisks: []models.NotableRisk{
			{Risk: "FX", Severity: sev(0.4)},
		},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		source: &fakeSource{filing: &models.Filing{
			FilingRef: models.FilingRef{
				Form:            models.FormQuarterly,
				FilingDate:      "2026-05-01",
				AccessionNumber: "000032019326000050",
				PrimaryDocument: "aapl.htm",
				SourceURL:       "https://www.sec.gov/Archives/edgar/data/320193/000032019326000050/aapl.htm",
			},
			RawContent: []byte("<p>guidance</p>"),
		}},
		extractor: &fakeExtractor{result: testExtraction()},
		docs:      newMemDocs(),
		signals:   newMemSignals(),
		objects:   newMemObjects(),
	}

	orch, err := NewOrchestrator(Dependencies{
		Source:    h.source,
		Converter: passthroughConverter{},
		Splitter:  chunker.Default(),
		Extractor: h.extractor,
		Docs:      h.docs,
		Signals:   h.signals,
		Objects:   h.objects,
		Logger:    arbor.NewLogger(),
	})
	require.NoError(t, err)
	h.orch = orch
	return h
}

const docKey = "DOC#10-Q#2026-05-01#000032019326000050"

// Scenario A: unseen document takes the full path
func TestProcessTicker_NewDocument(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	outcome, err := h.orch.ProcessTicker(ctx, "AAPL", "2026-05-02")
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeProcessed, outcome.Status)
	require.NotNil(t, outcome.Scores)
	assert.Equal(t, 1, h.extractor.calls)
	require.Len(t, h.extractor.chunks, 1)
	assert.Equal(t, "<P>GUIDANCE</P>", h.extractor.chunks[0].Text)

	rec, err := h.signals.GetSignal(ctx, "AAPL", "2026-05-02")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.False(t, rec.Skipped)
	assert.Empty(t, rec.ChangeLog, "no prior signal means no change events")
	assert.Equal(t, signals.Score(*testExtraction(), nil), *rec.Scores)
	require.NotNil(t, rec.DocRef)
	assert.Equal(t, "000032019326000050", rec.DocRef.AccessionNumber)

	doc, err := h.docs.GetDoc(ctx, "AAPL", docKey)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.True(t, doc.IsProcessed())
	assert.Equal(t, "raw/AAPL/10-Q#2026-05-01#000032019326000050.html", doc.RawKey)

	raw := h.objects.objects["raw/AAPL/10-Q#2026-05-01#000032019326000050.html"]
	assert.Equal(t, "text/html", raw.contentType)
	assert.Equal(t, "<p>guidance</p>", string(raw.body))
	text := h.objects.objects["text/AAPL/10-Q#2026-05-01#000032019326000050.txt"]
	assert.Equal(t, "text/plain; charset=utf-8", text.contentType)
	assert.Equal(t, "<P>GUIDANCE</P>", string(text.body))
}

func TestProcessTicker_NewDocumentDiffsAgainstPrior(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	prior := &models.ExtractedSignal{Guidance: []models.Guidance{{Metric: "revenue"}}}
	require.NoError(t, h.signals.PutSignal(ctx, &models.SignalRecord{
		Ticker: "AAPL", RunDate: "2026-02-01", Extracted: prior,
	}))

	outcome, err := h.orch.ProcessTicker(ctx, "AAPL", "2026-05-02")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeProcessed, outcome.Status)

	rec, _ := h.signals.GetSignal(ctx, "AAPL", "2026-05-02")
	require.NotNil(t, rec)
	want := signals.Diff(prior, *testExtraction())
	assert.Equal(t, want, rec.ChangeLog)
	require.Len(t, rec.ChangeLog, 2)
	assert.Equal(t, models.ChangeGuidanceCount, rec.ChangeLog[0].Type)
	assert.Equal(t, models.ChangeRiskAdded, rec.ChangeLog[1].Type)
	assert.Equal(t, signals.Score(*testExtraction(), want), *rec.Scores)
}

// Scenario B: processed document reuses the prior snapshot without extraction
func TestProcessTicker_ReusesPriorSignal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.docs.markProcessed("AAPL", docKey)
	priorScores := &models.ScoreSet{Confidence: 61, Risk: 26, Trajectory: 5, Overall: 61}
	require.NoError(t, h.signals.PutSignal(ctx, &models.SignalRecord{
		Ticker: "AAPL", RunDate: "2026-05-01", Extracted: testExtraction(),
		Scores: priorScores,
	}))

	outcome, err := h.orch.ProcessTicker(ctx, "AAPL", "2026-05-02")
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeSkipped, outcome.Status)
	assert.Equal(t, models.SkipReasonNoNewFiling, outcome.SkipReason)
	assert.Equal(t, 0, h.extractor.calls, "reuse path must not call the model")
	assert.Empty(t, h.objects.objects)

	rec, _ := h.signals.GetSignal(ctx, "AAPL", "2026-05-02")
	require.NotNil(t, rec)
	assert.True(t, rec.Skipped)
	assert.Equal(t, models.SkipReasonNoNewFiling, rec.SkipReason)
	assert.Empty(t, rec.ChangeLog)
	assert.Equal(t, testExtraction(), rec.Extracted)
	assert.Equal(t, priorScores, rec.Scores)
	require.NotNil(t, rec.DocRef)
	assert.Equal(t, "2026-05-01", rec.DocRef.FilingDate)
}

func TestProcessTicker_ReuseRecomputesMissingScores(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.docs.markProcessed("AAPL", docKey)
	require.NoError(t, h.signals.PutSignal(ctx, &models.SignalRecord{
		Ticker: "AAPL", RunDate: "2026-05-01", Extracted: testExtraction(),
	}))

	outcome, err := h.orch.ProcessTicker(ctx, "AAPL", "2026-05-02")
	require.NoError(t, err)
	require.NotNil(t, outcome.Scores)
	assert.Equal(t, signals.Score(*testExtraction(), nil), *outcome.Scores)
}

func TestProcessTicker_ProcessedWithoutSignalFallsThrough(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.docs.markProcessed("AAPL", docKey)

	outcome, err := h.orch.ProcessTicker(ctx, "AAPL", "2026-05-02")
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeProcessed, outcome.Status)
	assert.Equal(t, 1, h.extractor.calls)
	rec, _ := h.signals.GetSignal(ctx, "AAPL", "2026-05-02")
	require.NotNil(t, rec)
	assert.False(t, rec.Skipped)
}

func TestProcessTicker_LostInsertRaceIsNotAnError(t *testing.T) {
	h := newHarness(t)
	h.docs.forceLost = true

	outcome, err := h.orch.ProcessTicker(context.Background(), "AAPL", "2026-05-02")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeProcessed, outcome.Status)
	assert.Equal(t, 1, h.docs.marks)
}

func TestProcessTicker_ExtractionErrorPropagates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	extractErr := errors.New("model unavailable")
	h.extractor.err = extractErr

	outcome, err := h.orch.ProcessTicker(ctx, "AAPL", "2026-05-02")
	require.ErrorIs(t, err, extractErr)
	assert.Equal(t, models.OutcomeFailed, outcome.Status)
	assert.ErrorIs(t, outcome.Err, extractErr)

	assert.Equal(t, 0, h.signals.puts, "no signal written on failure")
	doc, _ := h.docs.GetDoc(ctx, "AAPL", docKey)
	require.NotNil(t, doc, "document row is recorded before extraction")
	assert.False(t, doc.IsProcessed())
}

func TestProcessTicker_FetchErrorPropagates(t *testing.T) {
	h := newHarness(t)
	h.source.err = &models.FetchError{Ticker: "AAPL", URL: "https://data.sec.gov", StatusCode: 503, Err: errors.New("unavailable")}

	outcome, err := h.orch.ProcessTicker(context.Background(), "AAPL", "2026-05-02")
	var fetchErr *models.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, models.OutcomeFailed, outcome.Status)
	assert.Equal(t, 0, h.extractor.calls)
}

func TestProcessTicker_SameDayRerunKeepsFirstRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.orch.ProcessTicker(ctx, "AAPL", "2026-05-02")
	require.NoError(t, err)
	require.Equal(t, models.OutcomeProcessed, first.Status)

	second, err := h.orch.ProcessTicker(ctx, "AAPL", "2026-05-02")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeProcessed, second.Status, "the stored record for the date wins")
	assert.Equal(t, first.Scores, second.Scores)
	assert.Equal(t, 1, h.extractor.calls)

	rec, _ := h.signals.GetSignal(ctx, "AAPL", "2026-05-02")
	require.NotNil(t, rec)
	assert.False(t, rec.Skipped)
}

func TestProcessTicker_Idempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.orch.ProcessTicker(ctx, "AAPL", "2026-05-02")
	require.NoError(t, err)

	next, err := h.orch.ProcessTicker(ctx, "AAPL", "2026-05-03")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSkipped, next.Status)
	assert.Equal(t, 1, h.extractor.calls)
	assert.Len(t, h.docs.docs, 1)
}

func TestNewOrchestrator_RequiresCollaborators(t *testing.T) {
	_, err := NewOrchestrator(Dependencies{})
	assert.Error(t, err)
}

func TestOutcomeFromRecord(t *testing.T) {
	scores := &models.ScoreSet{Overall: 59}

	processed := OutcomeFromRecord(&models.SignalRecord{Ticker: "MSFT", Scores: scores})
	assert.Equal(t, models.OutcomeProcessed, processed.Status)
	assert.Equal(t, scores, processed.Scores)

	skipped := OutcomeFromRecord(&models.SignalRecord{Ticker: "MSFT", Skipped: true, SkipReason: models.SkipReasonNoNewFiling})
	assert.Equal(t, models.OutcomeSkipped, skipped.Status)
	assert.Equal(t, models.SkipReasonNoNewFiling, skipped.SkipReason)
}

func TestProcessTicker_NewFilingAfterSameDaySkip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.orch.ProcessTicker(ctx, "AAPL", "2026-05-02")
	require.NoError(t, err)
	skipped, err := h.orch.ProcessTicker(ctx, "AAPL", "2026-05-03")
	require.NoError(t, err)
	require.Equal(t, models.OutcomeSkipped, skipped.Status)

	filingB := *h.source.filing
	filingB.FilingDate = "2026-05-03"
	filingB.AccessionNumber = "000032019326000099"
	h.source.filing = &filingB
	keyB := filingB.DocKey()

	extractionB := testExtraction()
	extractionB.NotableRisks = append(extractionB.NotableRisks,
		models.NotableRisk{Risk: "supply chain", Severity: sev(0.6)},
		models.NotableRisk{Risk: "antitrust", Severity: sev(0.8)},
	)
	h.extractor.result = extractionB

	rerun, err := h.orch.ProcessTicker(ctx, "AAPL", "2026-05-03")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSkipped, rerun.Status, "the stored record for the date wins")
	assert.Equal(t, 1, h.extractor.calls, "no extraction when the date already has a record")

	doc, err := h.docs.GetDoc(ctx, "AAPL", keyB)
	require.NoError(t, err)
	assert.False(t, doc.IsProcessed(), "new filing must not be marked processed by another filing's record")

	next, err := h.orch.ProcessTicker(ctx, "AAPL", "2026-05-04")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeProcessed, next.Status)
	assert.Equal(t, 2, h.extractor.calls)

	rec, err := h.signals.GetSignal(ctx, "AAPL", "2026-05-04")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.False(t, rec.Skipped)
	assert.Len(t, rec.Extracted.NotableRisks, 3)
	assert.Equal(t, keyB, rec.DocRef.DocKey())

	doc, err = h.docs.GetDoc(ctx, "AAPL", keyB)
	require.NoError(t, err)
	assert.True(t, doc.IsProcessed())
}

// racingSignals stores a record for the run date just before the orchestrator's own write
type racingSignals struct {
	*memSignals
	winner *models.SignalRecord
}

func (r *racingSignals) PutSignal(ctx context.Context, rec *models.SignalRecord) error {
	if r.winner != nil {
		w := r.winner
		r.winner = nil
		_ = r.memSignals.PutSignal(ctx, w)
	}
	return r.memSignals.PutSignal(ctx, rec)
}

func TestProcessTicker_LostSignalRaceMarksOnlyOwnFiling(t *testing.T) {
	otherRef := models.FilingRef{Form: models.FormQuarterly, FilingDate: "2026-02-01", AccessionNumber: "000032019326000010"}
	ownRef := models.FilingRef{Form: models.FormQuarterly, FilingDate: "2026-05-01", AccessionNumber: "000032019326000050"}

	tests := []struct {
		name       string
		winner     models.SignalRecord
		wantMarked bool
		wantStatus models.OutcomeStatus
	}{
		{
			name:       "same filing extracted by a concurrent run",
			winner:     models.SignalRecord{Ticker: "AAPL", RunDate: "2026-05-02", Extracted: testExtraction(), DocRef: &ownRef},
			wantMarked: true,
			wantStatus: models.OutcomeProcessed,
		},
		{
			name:       "skipped record for an older filing",
			winner:     models.SignalRecord{Ticker: "AAPL", RunDate: "2026-05-02", Extracted: testExtraction(), Skipped: true, SkipReason: models.SkipReasonNoNewFiling, DocRef: &otherRef},
			wantStatus: models.OutcomeSkipped,
		},
		{
			name:       "processed record for a different filing",
			winner:     models.SignalRecord{Ticker: "AAPL", RunDate: "2026-05-02", Extracted: testExtraction(), DocRef: &otherRef},
			wantStatus: models.OutcomeProcessed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			winner := tt.winner
			racing := &racingSignals{memSignals: h.signals, winner: &winner}

			orch, err := NewOrchestrator(Dependencies{
				Source:    h.source,
				Converter: passthroughConverter{},
				Splitter:  chunker.Default(),
				Extractor: h.extractor,
				Docs:      h.docs,
				Signals:   racing,
				Objects:   h.objects,
				Logger:    arbor.NewLogger(),
			})
			require.NoError(t, err)

			outcome, err := orch.ProcessTicker(ctx, "AAPL", "2026-05-02")
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, outcome.Status)
			assert.Equal(t, 1, h.extractor.calls)

			doc, err := h.docs.GetDoc(ctx, "AAPL", docKey)
			require.NoError(t, err)
			require.NotNil(t, doc)
			assert.Equal(t, tt.wantMarked, doc.IsProcessed())
		})
	}
}
