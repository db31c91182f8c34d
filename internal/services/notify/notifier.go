// Package notify delivers the daily digest to one or more sinks.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/edgarsignals/internal/interfaces"
)

type runDateKey struct{}

// WithRunDate tags ctx with the run date the digest belongs to
func WithRunDate(ctx context.Context, runDate string) context.Context {
	return context.WithValue(ctx, runDateKey{}, runDate)
}

// RunDateFrom returns the run date set by WithRunDate, or today in UTC
func RunDateFrom(ctx context.Context) string {
	if d, ok := ctx.Value(runDateKey{}).(string); ok && d != "" {
		return d
	}
	return time.Now().UTC().Format("2006-01-02")
}

// MultiNotifier publishes to every sink and joins their errors
type MultiNotifier []interfaces.Notifier

// Publish calls every sink even when an earlier one fails
func (m MultiNotifier) Publish(ctx context.Context, subject, body string) error {
	var errs []error
	for _, n := range m {
		if err := n.Publish(ctx, subject, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes the digest to the log
type LogNotifier struct {
	logger arbor.ILogger
}

// NewLogNotifier creates a LogNotifier
func NewLogNotifier(logger arbor.ILogger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Publish logs the subject and the markdown body
func (n *LogNotifier) Publish(ctx context.Context, subject, body string) error {
	n.logger.Info().
		Str("run_date", RunDateFrom(ctx)).
		Str("subject", truncateSubject(subject)).
		Int("body_bytes", len(body)).
		Msg("Daily digest")
	n.logger.Info().Msg("\n" + body)
	return nil
}
