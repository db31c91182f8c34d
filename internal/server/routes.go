package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ternarybob/edgarsignals/internal/handlers"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.healthHandler)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.app.Registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("GET /api/signals/{ticker}", s.app.SignalsHandler.GetSignalHandler)
	mux.HandleFunc("GET /api/digests/{date}", s.app.SignalsHandler.GetDigestHandler)

	if s.app.RunHandler != nil {
		mux.HandleFunc("GET /api/status", s.app.RunHandler.StatusHandler)
		mux.HandleFunc("POST /api/run", s.app.RunHandler.TriggerHandler)
	}

	return mux
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	handlers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
