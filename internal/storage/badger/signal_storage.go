package badger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/edgarsignals/internal/interfaces"
	"github.com/ternarybob/edgarsignals/internal/models"
)

// SignalStorage implements interfaces.SignalStorage on Badger
type SignalStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSignalStorage creates a new SignalStorage instance
func NewSignalStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SignalStorage {
	return &SignalStorage{
		db:     db,
		logger: logger,
	}
}

func normalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

func signalID(ticker, runDate string) string {
	return models.RecordID(models.TickerPK(ticker), models.RunKey(runDate))
}

// PutSignal inserts rec. Records are never overwritten. The ticker is stored
// upper-cased.
func (s *SignalStorage) PutSignal(ctx context.Context, rec *models.SignalRecord) error {
	rec.Ticker = normalizeTicker(rec.Ticker)
	rec.PK = models.TickerPK(rec.Ticker)
	rec.SK = models.RunKey(rec.RunDate)
	rec.ID = models.RecordID(rec.PK, rec.SK)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	err := s.db.Store().Insert(rec.ID, rec)
	switch {
	case err == nil:
		s.logger.Debug().Str("key", rec.ID).Bool("skipped", rec.Skipped).Msg("Signal stored")
		return nil
	case errors.Is(err, badgerhold.ErrKeyExists), errors.Is(err, badger.ErrConflict):
		return &models.StoreError{Op: "put_signal", Key: rec.ID, Err: models.ErrSignalExists}
	default:
		return &models.StoreError{Op: "put_signal", Key: rec.ID, Err: err}
	}
}

// GetSignal returns nil, nil when no signal exists for the run
func (s *SignalStorage) GetSignal(ctx context.Context, ticker, runDate string) (*models.SignalRecord, error) {
	id := signalID(ticker, runDate)
	var rec models.SignalRecord
	if err := s.db.Store().Get(id, &rec); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, &models.StoreError{Op: "get_signal", Key: id, Err: err}
	}
	return &rec, nil
}

// GetLatestSignal returns the signal with the greatest run date for ticker.
// Run dates are YYYY-MM-DD so lexical order is chronological.
func (s *SignalStorage) GetLatestSignal(ctx context.Context, ticker string) (*models.SignalRecord, error) {
	var recs []models.SignalRecord
	query := badgerhold.Where("Ticker").Eq(normalizeTicker(ticker)).SortBy("RunDate").Reverse().Limit(1)
	if err := s.db.Store().Find(&recs, query); err != nil {
		return nil, &models.StoreError{Op: "latest_signal", Key: models.TickerPK(ticker), Err: err}
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

// BatchGetSignalsForRun reads every ticker's signal for runDate. Tickers with no
// record are left out of the result.
func (s *SignalStorage) BatchGetSignalsForRun(ctx context.Context, tickers []string, runDate string) (map[string]*models.SignalRecord, error) {
	result := make(map[string]*models.SignalRecord, len(tickers))
	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := s.GetSignal(ctx, ticker, runDate)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			result[ticker] = rec
		}
	}
	return result, nil
}
