package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/edgarsignals/internal/models"
	"github.com/ternarybob/edgarsignals/internal/services/scheduler"
)

type fakeSignals struct {
	records map[string]*models.SignalRecord // ticker|date
	err     error
}

func (f *fakeSignals) PutSignal(ctx context.Context, rec *models.SignalRecord) error { return nil }

func (f *fakeSignals) GetSignal(ctx context.Context, ticker, runDate string) (*models.SignalRecord, error) {
	return f.records[ticker+"|"+runDate], f.err
}

func (f *fakeSignals) GetLatestSignal(ctx context.Context, ticker string) (*models.SignalRecord, error) {
	return f.records[ticker+"|latest"], f.err
}

func (f *fakeSignals) BatchGetSignalsForRun(ctx context.Context, tickers []string, runDate string) (map[string]*models.SignalRecord, error) {
	return nil, nil
}

type fakeObjects map[string]string

func (f fakeObjects) Get(ctx context.Context, key string) ([]byte, string, error) {
	body, ok := f[key]
	if !ok {
		return nil, "", fs.ErrNotExist
	}
	return []byte(body), "text/markdown", nil
}

func newMux(h *SignalsHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/signals/{ticker}", h.GetSignalHandler)
	mux.HandleFunc("GET /api/digests/{date}", h.GetDigestHandler)
	return mux
}

func TestGetSignalHandler(t *testing.T) {
	signals := &fakeSignals{records: map[string]*models.SignalRecord{
		"AAPL|latest":     {Ticker: "AAPL", RunDate: "2026-10-18"},
		"AAPL|2026-10-17": {Ticker: "AAPL", RunDate: "2026-10-17"},
	}}
	mux := newMux(NewSignalsHandler(signals, fakeObjects{}, arbor.NewLogger()))

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantDate   string
	}{
		{name: "latest", path: "/api/signals/aapl", wantStatus: http.StatusOK, wantDate: "2026-10-18"},
		{name: "by date", path: "/api/signals/AAPL?date=2026-10-17", wantStatus: http.StatusOK, wantDate: "2026-10-17"},
		{name: "unknown date", path: "/api/signals/AAPL?date=2026-10-16", wantStatus: http.StatusNotFound},
		{name: "unknown ticker", path: "/api/signals/MSFT", wantStatus: http.StatusNotFound},
		{name: "bad date", path: "/api/signals/AAPL?date=yesterday", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantDate != "" {
				var got models.SignalRecord
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
				assert.Equal(t, tt.wantDate, got.RunDate)
			}
		})
	}

	signals.err = errors.New("db closed")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/signals/AAPL", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetDigestHandler(t *testing.T) {
	objects := fakeObjects{"alerts/2026-10-18.md": "# Daily"}
	mux := newMux(NewSignalsHandler(&fakeSignals{}, objects, arbor.NewLogger()))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/digests/2026-10-18", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# Daily", rec.Body.String())
	assert.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/digests/2026-10-17", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/digests/latest", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeTrigger struct {
	mu    sync.Mutex
	busy  bool
	calls int
	ran   chan struct{}
}

func (f *fakeTrigger) RunNow(ctx context.Context) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	close(f.ran)
	return nil
}

func (f *fakeTrigger) Status() scheduler.Status {
	return scheduler.Status{Schedule: "30 6 * * 1-5", Busy: f.busy}
}

func TestRunHandler(t *testing.T) {
	trigger := &fakeTrigger{ran: make(chan struct{})}
	h := NewRunHandler(trigger, arbor.NewLogger())

	rec := httptest.NewRecorder()
	h.StatusHandler(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"schedule":"30 6 * * 1-5"`)

	rec = httptest.NewRecorder()
	h.TriggerHandler(rec, httptest.NewRequest(http.MethodPost, "/api/run", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case <-trigger.ran:
	case <-time.After(time.Second):
		t.Fatal("run was not started")
	}

	trigger.busy = true
	rec = httptest.NewRecorder()
	h.TriggerHandler(rec, httptest.NewRequest(http.MethodPost, "/api/run", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}
