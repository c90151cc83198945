// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
	"strconv"

	"github.com/okian/repute/internal/domain/model"
	"github.com/okian/repute/internal/domain/tier"
)

// TierDependencies defines the interface for tier table access.
type TierDependencies interface {
	TierBands() []tier.Band
	ProgressFor(score int) tier.Progress
}

// TiersHandler handles tier table requests.
type TiersHandler struct {
	deps TierDependencies
}

// NewTiersHandler creates a new tiers handler.
func NewTiersHandler(deps TierDependencies) *TiersHandler {
	return &TiersHandler{deps: deps}
}

// HandleGetTiers handles GET /tiers requests. With ?score=N it reports the
// tier standing for that score instead of the full table.
func (h *TiersHandler) HandleGetTiers(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_tiers"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	if raw := r.URL.Query().Get("score"); raw != "" {
		score, err := strconv.Atoi(raw)
		if err != nil || score < model.MinScore || score > model.MaxScore {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		writeJSON(w, http.StatusOK, h.deps.ProgressFor(score))
		return
	}

	writeJSON(w, http.StatusOK, h.deps.TierBands())
}
