package handlers

import (
	"context"
	"errors"
	"io/fs"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/edgarsignals/internal/common"
	"github.com/ternarybob/edgarsignals/internal/interfaces"
	"github.com/ternarybob/edgarsignals/internal/models"
	"github.com/ternarybob/edgarsignals/internal/services/notify"
	"github.com/ternarybob/edgarsignals/internal/storage/objects"
)

// ObjectReader reads stored objects
type ObjectReader interface {
	Get(ctx context.Context, key string) ([]byte, string, error)
}

// SignalsHandler serves stored signals and archived digests read-only
type SignalsHandler struct {
	signals interfaces.SignalStorage
	objects ObjectReader
	logger  arbor.ILogger
}

// NewSignalsHandler creates a SignalsHandler
func NewSignalsHandler(signals interfaces.SignalStorage, objects ObjectReader, logger arbor.ILogger) *SignalsHandler {
	return &SignalsHandler{signals: signals, objects: objects, logger: logger}
}

// GetSignalHandler handles GET /api/signals/{ticker}[?date=YYYY-MM-DD].
// Without a date the latest record is returned.
func (h *SignalsHandler) GetSignalHandler(w http.ResponseWriter, r *http.Request) {
	ticker := common.ParseTicker(r.PathValue("ticker")).Code
	if ticker == "" {
		WriteError(w, http.StatusBadRequest, "ticker is required")
		return
	}

	date := r.URL.Query().Get("date")
	if date != "" && !common.ValidRunDate(date) {
		WriteError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	rec, err := h.lookup(r.Context(), ticker, date)
	if err != nil {
		h.logger.Error().Err(err).Str("ticker", ticker).Msg("Failed to read signal")
		WriteError(w, http.StatusInternalServerError, "failed to read signal")
		return
	}
	if rec == nil {
		WriteError(w, http.StatusNotFound, "no signal for "+ticker)
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

func (h *SignalsHandler) lookup(ctx context.Context, ticker, date string) (*models.SignalRecord, error) {
	if date == "" {
		return h.signals.GetLatestSignal(ctx, ticker)
	}
	return h.signals.GetSignal(ctx, ticker, date)
}

// GetDigestHandler handles GET /api/digests/{date} and returns the archived markdown
func (h *SignalsHandler) GetDigestHandler(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if !common.ValidRunDate(date) {
		WriteError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	body, _, err := h.objects.Get(r.Context(), notify.ArchiveKey(date))
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, objects.ErrInvalidKey):
		WriteError(w, http.StatusNotFound, "no digest for "+date)
		return
	case err != nil:
		h.logger.Error().Err(err).Str("date", date).Msg("Failed to read digest")
		WriteError(w, http.StatusInternalServerError, "failed to read digest")
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
