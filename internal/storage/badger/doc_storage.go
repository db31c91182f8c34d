package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/edgarsignals/internal/interfaces"
	"github.com/ternarybob/edgarsignals/internal/models"
)

// DocStorage implements interfaces.DocumentStorage on Badger
type DocStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewDocStorage creates a new DocStorage instance
func NewDocStorage(db *BadgerDB, logger arbor.ILogger) interfaces.DocumentStorage {
	return &DocStorage{
		db:     db,
		logger: logger,
	}
}

func docID(ticker, docKey string) string {
	return models.RecordID(models.TickerPK(ticker), docKey)
}

// GetDoc returns nil, nil when the document has never been seen
func (s *DocStorage) GetDoc(ctx context.Context, ticker, docKey string) (*models.DocRecord, error) {
	id := docID(ticker, docKey)
	var rec models.DocRecord
	if err := s.db.Store().Get(id, &rec); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, &models.StoreError{Op: "get_doc", Key: id, Err: err}
	}
	return &rec, nil
}

// InsertDocIfAbsent writes rec unless a record already exists for its key.
// Both an existing key and a transaction conflict with a concurrent writer
// resolve to created=false.
func (s *DocStorage) InsertDocIfAbsent(ctx context.Context, rec *models.DocRecord) (bool, error) {
	rec.PK = models.TickerPK(rec.Ticker)
	if rec.SK == "" {
		rec.SK = models.DocKey(rec.Form, rec.FilingDate, rec.AccessionNumber)
	}
	rec.ID = models.RecordID(rec.PK, rec.SK)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	err := s.db.Store().Insert(rec.ID, rec)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badgerhold.ErrKeyExists):
		s.logger.Debug().Str("key", rec.ID).Msg("Document already recorded")
		return false, nil
	case errors.Is(err, badger.ErrConflict):
		existing, getErr := s.GetDoc(ctx, rec.Ticker, rec.SK)
		if getErr == nil && existing != nil {
			s.logger.Debug().Str("key", rec.ID).Msg("Lost document insert race")
			return false, nil
		}
		return false, &models.StoreError{Op: "insert_doc", Key: rec.ID, Err: err}
	default:
		return false, &models.StoreError{Op: "insert_doc", Key: rec.ID, Err: err}
	}
}

// MarkDocProcessed sets ProcessedAt inside one read-write transaction. An existing
// timestamp is never moved; the stored value is returned instead.
func (s *DocStorage) MarkDocProcessed(ctx context.Context, ticker, docKey string) (time.Time, error) {
	id := docID(ticker, docKey)

	var stamp time.Time
	mark := func(tx *badger.Txn) error {
		var rec models.DocRecord
		if err := s.db.Store().TxGet(tx, id, &rec); err != nil {
			return err
		}
		if rec.ProcessedAt != nil {
			stamp = *rec.ProcessedAt
			return nil
		}
		now := time.Now().UTC()
		rec.ProcessedAt = &now
		stamp = now
		return s.db.Store().TxUpdate(tx, id, &rec)
	}

	err := s.db.Store().Badger().Update(mark)
	if errors.Is(err, badger.ErrConflict) {
		// A concurrent marker committed first; re-read to pick up its timestamp.
		err = s.db.Store().Badger().Update(mark)
	}
	if err != nil {
		return time.Time{}, &models.StoreError{Op: "mark_processed", Key: id, Err: err}
	}
	return stamp, nil
}
