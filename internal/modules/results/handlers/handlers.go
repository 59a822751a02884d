// Package handlers provides HTTP handlers for stored simulation results.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/runway/internal/modules/aggregation"
	"github.com/aristath/runway/internal/modules/results"
)

// Repository is the part of results.Repository the handlers use
type Repository interface {
	Get(ctx context.Context, scenarioID string) (*aggregation.AggregateResult, error)
	List(ctx context.Context) ([]results.Summary, error)
	Delete(ctx context.Context, scenarioID string) error
}

// Handler handles results HTTP requests
type Handler struct {
	repo Repository
	log  zerolog.Logger
}

// NewHandler creates a new results handler
func NewHandler(repo Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "results").Logger(),
	}
}

// RegisterRoutes registers results routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/results", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Get("/{scenarioID}", h.HandleGet)
		r.Delete("/{scenarioID}", h.HandleDelete)
	})
}

// HandleList handles GET /api/results
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.repo.List(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list results")
		http.Error(w, "Failed to list results", http.StatusInternalServerError)
		return
	}
	if summaries == nil {
		summaries = []results.Summary{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": summaries,
		"metadata": map[string]interface{}{
			"count":     len(summaries),
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGet handles GET /api/results/{scenarioID}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	scenarioID := chi.URLParam(r, "scenarioID")

	res, err := h.repo.Get(r.Context(), scenarioID)
	if errors.Is(err, results.ErrNotFound) {
		http.Error(w, "Result not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("scenario_id", scenarioID).Msg("Failed to get result")
		http.Error(w, "Failed to get result", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": res,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleDelete handles DELETE /api/results/{scenarioID}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	scenarioID := chi.URLParam(r, "scenarioID")

	err := h.repo.Delete(r.Context(), scenarioID)
	if errors.Is(err, results.ErrNotFound) {
		http.Error(w, "Result not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("scenario_id", scenarioID).Msg("Failed to delete result")
		http.Error(w, "Failed to delete result", http.StatusInternalServerError)
		return
	}

	h.log.Info().Str("scenario_id", scenarioID).Msg("Result deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
