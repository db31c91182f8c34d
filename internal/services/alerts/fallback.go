package alerts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ternarybob/edgarsignals/internal/models"
)

const (
	lineNoNewFiling = "No new filings; reused last snapshot."
	lineMissing     = "Missing signal for today (check logs)."
)

// partition is the run's tickers split by what the signal store holds for the date
type partition struct {
	processed []*models.SignalRecord
	skipped   []*models.SignalRecord
	missing   []string
}

func partitionSignals(tickers []string, records map[string]*models.SignalRecord) partition {
	var p partition
	for _, ticker := range tickers {
		rec, ok := records[ticker]
		switch {
		case !ok || rec == nil:
			p.missing = append(p.missing, ticker)
		case rec.Skipped:
			p.skipped = append(p.skipped, rec)
		default:
			p.processed = append(p.processed, rec)
		}
	}
	return p
}

func (p partition) skippedTickers() []string {
	out := make([]string, len(p.skipped))
	for i, rec := range p.skipped {
		out[i] = rec.Ticker
	}
	return out
}

func (p partition) missingTickers() []string {
	return append([]string{}, p.missing...)
}

// noNewFilingsAlert is built without the model when nothing new was processed
func noNewFilingsAlert(runDate string, p partition) *models.Alert {
	noNew := p.skippedTickers()
	missing := p.missingTickers()

	oneLiners := make([]models.OneLiner, 0, len(noNew)+len(missing))
	for _, t := range noNew {
		oneLiners = append(oneLiners, models.OneLiner{Ticker: t, Line: lineNoNewFiling})
	}
	for _, t := range missing {
		oneLiners = append(oneLiners, models.OneLiner{Ticker: t, Line: lineMissing})
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Daily Stock Forecast Signals — %s\n\n", runDate)
	sb.WriteString("## New filings processed\nNone today.\n\n")
	fmt.Fprintf(&sb, "## No new filings (reused prior snapshot)\n%s\n\n", tickerList(noNew))
	fmt.Fprintf(&sb, "## Missing signals (pipeline/data issue)\n%s\n", tickerList(missing))

	return &models.Alert{
		Date:            runDate,
		Subject:         DefaultSubject(runDate) + " (No new filings)",
		TopPositive:     []models.TickerReason{},
		TopNegative:     []models.TickerReason{},
		GuidanceChanges: []models.GuidanceChange{},
		Watchlist:       []models.TickerReason{},
		NoNewFilings:    noNew,
		Missing:         missing,
		OneLiners:       oneLiners,
		Markdown:        sb.String(),
		Mode:            models.DigestModeNoNewFilings,
	}
}

// FallbackDigest lists raw scores per ticker. It is the last resort and only
// fails on input that breaks its own contract.
func FallbackDigest(runDate string, tickers []string, records map[string]*models.SignalRecord, errMsg string) (*models.Alert, error) {
	if strings.TrimSpace(runDate) == "" {
		return nil, errors.New("fallback digest: run date is required")
	}

	lines := []string{"# Daily Stock Signals — " + runDate}
	if errMsg != "" {
		lines = append(lines, "\n> ⚠️ AI summary unavailable: "+errMsg+"\n")
	}

	for _, ticker := range tickers {
		if strings.TrimSpace(ticker) == "" {
			return nil, errors.New("fallback digest: empty ticker")
		}
		rec, ok := records[ticker]
		if !ok || rec == nil {
			lines = append(lines, fmt.Sprintf("- **%s**: no data", ticker))
			continue
		}
		var scores models.ScoreSet
		if rec.Scores != nil {
			scores = *rec.Scores
		}
		lines = append(lines, fmt.Sprintf("- **%s**: overall=%d confidence=%d risk=%d",
			ticker, scores.Overall, scores.Confidence, scores.Risk))
	}

	return &models.Alert{
		Date:     runDate,
		Subject:  DefaultSubject(runDate),
		Markdown: strings.Join(lines, "\n"),
		Mode:     models.DigestModeFallback,
	}, nil
}
