// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/repute/internal/domain/model"
)

// HistoryDependencies defines the interface for history reads.
type HistoryDependencies interface {
	History(ctx context.Context, subjectID string, limit int) ([]model.Snapshot, error)
	HistoryRange(ctx context.Context, subjectID string, fromMs, toMs int64) ([]model.Snapshot, error)
	HistoryNearest(ctx context.Context, subjectID string, tsMs int64) (model.Snapshot, error)
}

// HistoryHandler handles history requests.
type HistoryHandler struct {
	deps HistoryDependencies
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(deps HistoryDependencies) *HistoryHandler {
	return &HistoryHandler{deps: deps}
}

// HandleGetHistory handles GET /history/{subject_id} requests.
//
// Query forms:
//
//	?limit=N        most recent N snapshots, newest first (default)
//	?from=MS&to=MS  snapshots inside the window, oldest first
//	?at=MS          the single snapshot closest to the instant
func (h *HistoryHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_history"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	subjectID := strings.TrimPrefix(r.URL.Path, "/history/")
	if subjectID == "" || strings.Contains(subjectID, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	q := r.URL.Query()

	if at := q.Get("at"); at != "" {
		tsMs, err := strconv.ParseInt(at, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		snap, err := h.deps.HistoryNearest(r.Context(), subjectID, tsMs)
		if err != nil {
			if isNotFound(err) {
				writeError(w, http.StatusNotFound, "not_found", err)
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
			return
		}
		writeJSON(w, http.StatusOK, snap)
		return
	}

	if from := q.Get("from"); from != "" {
		fromMs, err := strconv.ParseInt(from, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		var toMs int64
		if to := q.Get("to"); to != "" {
			toMs, err = strconv.ParseInt(to, 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
				return
			}
		}
		snaps, err := h.deps.HistoryRange(r.Context(), subjectID, fromMs, toMs)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
			return
		}
		writeJSON(w, http.StatusOK, snaps)
		return
	}

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}
	snaps, err := h.deps.History(r.Context(), subjectID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, snaps)
}
