package interfaces

import (
	"context"

	"github.com/ternarybob/edgarsignals/internal/models"
)

// FilingSource returns the most recent qualifying filing for a ticker.
// Failures are returned as *models.FetchError.
type FilingSource interface {
	FetchLatestFiling(ctx context.Context, ticker string) (*models.Filing, error)
}

// TextConverter turns raw filing markup into plain text. Best effort, never fails.
type TextConverter interface {
	ToPlainText(raw []byte) string
}

// Notifier delivers the digest. Subjects longer than 100 characters are truncated.
type Notifier interface {
	Publish(ctx context.Context, subject, body string) error
}
