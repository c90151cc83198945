// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/repute/internal/domain/model"
	"github.com/okian/repute/internal/domain/tier"
)

// ScoreDependencies defines the interface for on-demand scoring.
type ScoreDependencies interface {
	Evaluate(ctx context.Context, subjectID string) (model.AggregationResult, error)
	ProgressFor(score int) tier.Progress
}

// ScoreHandler handles score requests.
type ScoreHandler struct {
	deps ScoreDependencies
}

// NewScoreHandler creates a new score handler.
func NewScoreHandler(deps ScoreDependencies) *ScoreHandler {
	return &ScoreHandler{deps: deps}
}

// HandleGetScore handles GET /score/{subject_id} requests.
func (h *ScoreHandler) HandleGetScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_score"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	// Extract path parameter after /score/
	subjectID := strings.TrimPrefix(r.URL.Path, "/score/")
	if subjectID == "" || strings.Contains(subjectID, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	res, err := h.deps.Evaluate(r.Context(), subjectID)
	if err != nil {
		// Total source loss means we cannot answer right now; partial
		// failures were already absorbed upstream.
		if errors.Is(err, model.ErrAllSourcesFailed) {
			writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}

	progress := h.deps.ProgressFor(res.Score)
	writeJSON(w, http.StatusOK, scoreResponse{
		SubjectID:      subjectID,
		Score:          res.Score,
		ConfidenceLow:  res.ConfidenceLow,
		ConfidenceHigh: res.ConfidenceHigh,
		Tier:           res.Tier,
		NextTier:       progress.Next,
		PointsToNext:   progress.ToNext,
		SourcesUsed:    res.SourcesUsed,
	})
}
