package alerts

import (
	"fmt"
	"strings"

	"github.com/ternarybob/edgarsignals/internal/models"
)

// MaxSubjectLength is the notification sink's subject limit, in characters
const MaxSubjectLength = 100

const emptyItem = "- (none)"

// DefaultSubject is used whenever the digest has no subject of its own
func DefaultSubject(runDate string) string {
	return "Daily Stock Forecast Signals — " + runDate
}

// TruncateSubject cuts s to MaxSubjectLength runes
func TruncateSubject(s string) string {
	r := []rune(s)
	if len(r) <= MaxSubjectLength {
		return s
	}
	return string(r[:MaxSubjectLength])
}

func bulletList[T any](items []T, line func(T) string) string {
	if len(items) == 0 {
		return emptyItem
	}
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "- " + line(item)
	}
	return strings.Join(lines, "\n")
}

func tickerList(tickers []string) string {
	return bulletList(tickers, func(t string) string { return t })
}

// RenderMarkdown renders the standard digest layout from the structured alert
func RenderMarkdown(alert *models.Alert, runDate string) string {
	date := alert.Date
	if date == "" {
		date = runDate
	}
	reason := func(x models.TickerReason) string { return fmt.Sprintf("%s: %s", x.Ticker, x.Why) }

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Daily Stock Forecast Signals — %s\n\n", date)
	fmt.Fprintf(&sb, "## Top positive shifts (new filings only)\n%s\n\n", bulletList(alert.TopPositive, reason))
	fmt.Fprintf(&sb, "## Top negative shifts (new filings only)\n%s\n\n", bulletList(alert.TopNegative, reason))
	fmt.Fprintf(&sb, "## Guidance changes (new filings only)\n%s\n\n", bulletList(alert.GuidanceChanges, func(x models.GuidanceChange) string {
		return fmt.Sprintf("%s: %s", x.Ticker, x.What)
	}))
	fmt.Fprintf(&sb, "## Watchlist\n%s\n\n", bulletList(alert.Watchlist, reason))
	fmt.Fprintf(&sb, "## No new filings\n%s\n\n", tickerList(alert.NoNewFilings))
	fmt.Fprintf(&sb, "## Missing signals\n%s\n\n", tickerList(alert.Missing))
	fmt.Fprintf(&sb, "## One-liners\n%s\n", bulletList(alert.OneLiners, func(x models.OneLiner) string {
		return fmt.Sprintf("%s: %s", x.Ticker, x.Line)
	}))
	return sb.String()
}
