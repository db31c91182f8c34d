package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/edgarsignals/internal/models"
)

type fakeSource struct {
	filing *models.Filing
	err    error
	calls  int
}

func (f *fakeSource) FetchLatestFiling(ctx context.Context, ticker string) (*models.Filing, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	filing := *f.filing
	filing.Ticker = ticker
	return &filing, nil
}

type passthroughConverter struct{}

func (passthroughConverter) ToPlainText(raw []byte) string {
	return strings.ToUpper(string(raw))
}

type fakeExtractor struct {
	result *models.ExtractedSignal
	err    error
	calls  int
	chunks []models.Chunk
}

func (f *fakeExtractor) Extract(ctx context.Context, ticker string, filing models.FilingRef, chunks []models.Chunk) (*models.ExtractedSignal, error) {
	f.calls++
	f.chunks = chunks
	if f.err != nil {
		return nil, f.err
	}
	out := *f.result
	return &out, nil
}

type memDocs struct {
	mu        sync.Mutex
	docs      map[string]*models.DocRecord
	forceLost bool
	marks     int
}

func newMemDocs() *memDocs {
	return &memDocs{docs: map[string]*models.DocRecord{}}
}

func (m *memDocs) GetDoc(ctx context.Context, ticker, docKey string) (*models.DocRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.docs[ticker+"|"+docKey]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, nil
}

func (m *memDocs) InsertDocIfAbsent(ctx context.Context, rec *models.DocRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := rec.Ticker + "|" + rec.SK
	if m.forceLost {
		// a concurrent writer got there first
		if _, ok := m.docs[key]; !ok {
			cp := *rec
			m.docs[key] = &cp
		}
		return false, nil
	}
	if _, ok := m.docs[key]; ok {
		return false, nil
	}
	cp := *rec
	m.docs[key] = &cp
	return true, nil
}

func (m *memDocs) MarkDocProcessed(ctx context.Context, ticker, docKey string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marks++
	d, ok := m.docs[ticker+"|"+docKey]
	if !ok {
		return time.Time{}, fmt.Errorf("doc %s not found", docKey)
	}
	if d.ProcessedAt == nil {
		now := time.Now().UTC()
		d.ProcessedAt = &now
	}
	return *d.ProcessedAt, nil
}

// markProcessed seeds an already processed doc
func (m *memDocs) markProcessed(ticker, docKey string) {
	now := time.Now().UTC()
	m.docs[ticker+"|"+docKey] = &models.DocRecord{Ticker: ticker, SK: docKey, ProcessedAt: &now}
}

type memSignals struct {
	mu      sync.Mutex
	records map[string]*models.SignalRecord
	puts    int
}

func newMemSignals() *memSignals {
	return &memSignals{records: map[string]*models.SignalRecord{}}
}

func (m *memSignals) PutSignal(ctx context.Context, rec *models.SignalRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	key := rec.Ticker + "|" + rec.RunDate
	if _, ok := m.records[key]; ok {
		return &models.StoreError{Op: "put_signal", Key: key, Err: models.ErrSignalExists}
	}
	cp := *rec
	m.records[key] = &cp
	return nil
}

func (m *memSignals) GetSignal(ctx context.Context, ticker, runDate string) (*models.SignalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[ticker+"|"+runDate], nil
}

func (m *memSignals) GetLatestSignal(ctx context.Context, ticker string) (*models.SignalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.SignalRecord
	for _, rec := range m.records {
		if rec.Ticker != ticker {
			continue
		}
		if latest == nil || rec.RunDate > latest.RunDate {
			latest = rec
		}
	}
	return latest, nil
}

func (m *memSignals) BatchGetSignalsForRun(ctx context.Context, tickers []string, runDate string) (map[string]*models.SignalRecord, error) {
	out := map[string]*models.SignalRecord{}
	for _, t := range tickers {
		if rec, _ := m.GetSignal(ctx, t, runDate); rec != nil {
			out[t] = rec
		}
	}
	return out, nil
}

type storedObject struct {
	body        []byte
	contentType string
}

type memObjects struct {
	mu      sync.Mutex
	objects map[string]storedObject
}

func newMemObjects() *memObjects {
	return &memObjects{objects: map[string]storedObject{}}
}

func (m *memObjects) Put(ctx context.Context, key string, body []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = storedObject{body: body, contentType: contentType}
	return nil
}
