// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/repute/internal/adapters/sources"
)

// FactDependencies defines the interface for fact ingestion.
type FactDependencies interface {
	RecordFact(ctx context.Context, f sources.Fact) error
}

// FactsHandler handles fact ingestion requests.
type FactsHandler struct {
	deps FactDependencies
}

// NewFactsHandler creates a new facts handler.
func NewFactsHandler(deps FactDependencies) *FactsHandler {
	return &FactsHandler{deps: deps}
}

// HandlePostFact handles POST /facts requests.
func (h *FactsHandler) HandlePostFact(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_fact"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var fact sources.Fact
	if err := json.NewDecoder(r.Body).Decode(&fact); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := fact.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	if err := h.deps.RecordFact(r.Context(), fact); err != nil {
		if errors.Is(err, sources.ErrUnknownSource) || errors.Is(err, sources.ErrInvalidFact) {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}
