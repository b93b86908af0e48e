package api

import (
	"net/http"
)

// NewRouter maps the dashboard endpoints onto handler.
func NewRouter(handler *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/status", handler.Status)
	mux.HandleFunc("GET /api/activity", handler.Activity)
	mux.HandleFunc("GET /api/violations", handler.RecentViolations)
	mux.HandleFunc("GET /api/violations/{id}", handler.GetViolation)
	mux.HandleFunc("DELETE /api/violations/{id}", handler.DeleteViolation)
	mux.HandleFunc("GET /api/get_violations", handler.ListViolations)
	mux.HandleFunc("GET /api/statistics", handler.Statistics)
	mux.HandleFunc("GET /api/evidence", handler.GetEvidence)
	mux.HandleFunc("POST /api/start_monitoring", handler.StartMonitoring)
	mux.HandleFunc("POST /api/stop_monitoring", handler.StopMonitoring)
	mux.HandleFunc("POST /api/log_event", handler.LogEvent)
	mux.HandleFunc("POST /api/prune", handler.Prune)

	return mux
}
