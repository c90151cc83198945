// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/repute/internal/adapters/repository"
	"github.com/okian/repute/internal/adapters/sources"
	"github.com/okian/repute/internal/domain/model"
	"github.com/okian/repute/internal/domain/tier"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Evaluate computes the subject's current reputation on demand.
	Evaluate(ctx context.Context, subjectID string) (model.AggregationResult, error)

	// RecordFact ingests one raw observation and queues a re-score.
	RecordFact(ctx context.Context, f sources.Fact) error

	// Read operations expose score history.
	History(ctx context.Context, subjectID string, limit int) ([]model.Snapshot, error)
	HistoryRange(ctx context.Context, subjectID string, fromMs, toMs int64) ([]model.Snapshot, error)
	HistoryNearest(ctx context.Context, subjectID string, tsMs int64) (model.Snapshot, error)

	// Tier table access.
	TierBands() []tier.Band
	ProgressFor(score int) tier.Progress
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	scoreHandler   *ScoreHandler
	historyHandler *HistoryHandler
	factsHandler   *FactsHandler
	tiersHandler   *TiersHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		scoreHandler:   NewScoreHandler(deps),
		historyHandler: NewHistoryHandler(deps),
		factsHandler:   NewFactsHandler(deps),
		tiersHandler:   NewTiersHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/facts", MetricsMiddleware(s.factsHandler.HandlePostFact, "facts"))
	mux.HandleFunc("/tiers", MetricsMiddleware(s.tiersHandler.HandleGetTiers, "tiers"))
	mux.HandleFunc("/score/", MetricsMiddleware(s.scoreHandler.HandleGetScore, "score"))
	mux.HandleFunc("/history/", MetricsMiddleware(s.historyHandler.HandleGetHistory, "history"))
}

// scoreResponse mirrors the read shape returned by GET /score/{subject_id}.
type scoreResponse struct {
	SubjectID      string `json:"subject_id"`
	Score          int    `json:"score"`
	ConfidenceLow  int    `json:"confidence_low"`
	ConfidenceHigh int    `json:"confidence_high"`
	Tier           string `json:"tier"`
	NextTier       string `json:"next_tier,omitempty"`
	PointsToNext   int    `json:"points_to_next,omitempty"`
	SourcesUsed    int    `json:"sources_used"`
}

type ackResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// isNotFound allows the API to translate upstream not-found errors to 404.
func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
