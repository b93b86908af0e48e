// Package api serves the proctoring dashboard's JSON endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/evidence"
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/recorder"
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/state"
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/store"
)

const (
	recentActivities = 30
	recentViolations = 20
	maxEventBody     = 4 << 10
)

// Monitor is the session surface the dashboard drives.
type Monitor interface {
	Start(ctx context.Context) (state.AlertState, error)
	Stop()
	Running() bool
	Status() state.AlertState
	Activities(n int) []recorder.Activity
	Violations(n int) ([]recorder.Entry, int)
	LogPageEvent(ctx context.Context, eventType string) error
}

// EvidenceReader returns stored evidence bytes.
type EvidenceReader interface {
	Open(path string) ([]byte, error)
}

type Handler struct {
	Monitor  Monitor
	Store    store.Store
	Evidence EvidenceReader
	Logger   *zap.Logger
}

// #region live

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Monitor.Status())
}

func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"activities": h.Monitor.Activities(recentActivities),
	})
}

func (h *Handler) RecentViolations(w http.ResponseWriter, r *http.Request) {
	entries, total := h.Monitor.Violations(recentViolations)
	writeJSON(w, http.StatusOK, map[string]any{
		"violations": entries,
		"total":      total,
	})
}

func (h *Handler) StartMonitoring(w http.ResponseWriter, r *http.Request) {
	st, err := h.Monitor.Start(r.Context())
	if err != nil {
		h.logger().Error("start monitoring", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "started",
		"monitoring": st.Running,
		"session_id": st.SessionID,
	})
}

func (h *Handler) StopMonitoring(w http.ResponseWriter, r *http.Request) {
	h.Monitor.Stop()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "stopped",
		"monitoring": h.Monitor.Running(),
	})
}

type pageEvent struct {
	Type string `json:"type"`
}

func (h *Handler) LogEvent(w http.ResponseWriter, r *http.Request) {
	var ev pageEvent
	dec := json.NewDecoder(io.LimitReader(r.Body, maxEventBody))
	if err := dec.Decode(&ev); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, errors.New("invalid event body"))
		return
	}
	if ev.Type == "" {
		ev.Type = "UNKNOWN"
	}
	if err := h.Monitor.LogPageEvent(r.Context(), ev.Type); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged"})
}

// #endregion live

// #region records

func (h *Handler) ListViolations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := store.ListParams{Severity: strings.ToUpper(q.Get("severity"))}
	switch params.Severity {
	case "", store.SeverityInfo, store.SeverityWarning, store.SeverityAlert, store.SeverityCritical:
	default:
		writeError(w, http.StatusBadRequest, errors.New("unknown severity "+q.Get("severity")))
		return
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
			return
		}
		params.Limit = n
	}

	records, err := h.Store.GetAll(r.Context(), params)
	if err != nil {
		h.storeError(w, "list violations", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"violations": records,
		"count":      len(records),
	})
}

func (h *Handler) GetViolation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, err := h.Store.GetByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		h.storeError(w, "get violation", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) DeleteViolation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	deleted, err := h.Store.Delete(r.Context(), id)
	if err != nil {
		h.storeError(w, "delete violation", err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, store.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "id": id})
}

func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Store.Statistics(r.Context())
	if err != nil {
		h.storeError(w, "statistics", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) Prune(w http.ResponseWriter, r *http.Request) {
	days, err := strconv.Atoi(r.URL.Query().Get("days"))
	if err != nil || days < 0 {
		writeError(w, http.StatusBadRequest, errors.New("days must be a non-negative integer"))
		return
	}
	n, err := h.Store.Prune(r.Context(), days)
	if err != nil {
		h.storeError(w, "prune violations", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": n, "days": days})
}

func (h *Handler) GetEvidence(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, errors.New("path is required"))
		return
	}
	if h.Evidence == nil {
		writeError(w, http.StatusNotFound, errors.New("evidence storage disabled"))
		return
	}
	data, err := h.Evidence.Open(path)
	switch {
	case errors.Is(err, evidence.ErrOutsideDir):
		writeError(w, http.StatusForbidden, err)
		return
	case errors.Is(err, os.ErrNotExist):
		writeError(w, http.StatusNotFound, errors.New("evidence not found"))
		return
	case err != nil:
		h.storeError(w, "open evidence", err)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// #endregion records

// #region helpers

func (h *Handler) storeError(w http.ResponseWriter, op string, err error) {
	h.logger().Error(op, zap.Error(err))
	writeError(w, http.StatusInternalServerError, errors.New(op+" failed"))
}

func (h *Handler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, errors.New("id must be a positive integer"))
		return 0, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

// #endregion helpers
