package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/edgarsignals/internal/models"
)

// DocumentStorage persists per-filing processing state.
type DocumentStorage interface {
	// GetDoc returns the record for ticker/docKey, or nil when it does not exist
	GetDoc(ctx context.Context, ticker, docKey string) (*models.DocRecord, error)

	// InsertDocIfAbsent creates the record unless one already exists for the same key.
	// Losing a concurrent insert is not an error: it returns created=false.
	InsertDocIfAbsent(ctx context.Context, rec *models.DocRecord) (created bool, err error)

	// MarkDocProcessed sets ProcessedAt once and returns it. Repeat calls return the
	// original timestamp.
	MarkDocProcessed(ctx context.Context, ticker, docKey string) (time.Time, error)
}

// SignalStorage is append-only storage of per-run signals.
type SignalStorage interface {
	// PutSignal writes a new record. Writing the same ticker/runDate twice returns
	// an error wrapping models.ErrSignalExists.
	PutSignal(ctx context.Context, rec *models.SignalRecord) error

	// GetSignal returns the record for ticker/runDate, or nil
	GetSignal(ctx context.Context, ticker, runDate string) (*models.SignalRecord, error)

	// GetLatestSignal returns the record with the greatest RunDate, or nil
	GetLatestSignal(ctx context.Context, ticker string) (*models.SignalRecord, error)

	// BatchGetSignalsForRun returns one entry per found ticker; absent tickers are missing
	BatchGetSignalsForRun(ctx context.Context, tickers []string, runDate string) (map[string]*models.SignalRecord, error)
}

// ObjectStorage stores raw and derived blobs
type ObjectStorage interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// StorageManager exposes every store backed by one database
type StorageManager interface {
	DocumentStorage() DocumentStorage
	SignalStorage() SignalStorage
	KeyValueStorage() KeyValueStorage
	LoadVariablesFromFiles(ctx context.Context, dirPath string) error
	LoadEmailFromFile(ctx context.Context, dirPath string) error
	LoadEnvFile(ctx context.Context, filePath string) error
	Close() error
}
