package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/edgarsignals/internal/common"
	"github.com/ternarybob/edgarsignals/internal/services/scheduler"
)

// RunTrigger starts runs on demand and reports scheduler state
type RunTrigger interface {
	RunNow(ctx context.Context) error
	Status() scheduler.Status
}

// RunHandler exposes the scheduler over HTTP
type RunHandler struct {
	trigger RunTrigger
	logger  arbor.ILogger
}

// NewRunHandler creates a RunHandler
func NewRunHandler(trigger RunTrigger, logger arbor.ILogger) *RunHandler {
	return &RunHandler{trigger: trigger, logger: logger}
}

// StatusHandler handles GET /api/status
func (h *RunHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"version":   common.GetVersion(),
		"scheduler": h.trigger.Status(),
	})
}

// TriggerHandler handles POST /api/run. The run continues after the response.
func (h *RunHandler) TriggerHandler(w http.ResponseWriter, r *http.Request) {
	if h.trigger.Status().Busy {
		WriteError(w, http.StatusConflict, scheduler.ErrRunInProgress.Error())
		return
	}

	common.SafeGo(h.logger, "manual_run", func() {
		if err := h.trigger.RunNow(context.Background()); err != nil && !errors.Is(err, scheduler.ErrRunInProgress) {
			h.logger.Error().Err(err).Msg("Manual run failed")
		}
	})
	WriteStarted(w, "daily run started")
}
