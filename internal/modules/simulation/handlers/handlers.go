// Package handlers provides HTTP handlers for simulation runs and fragility scoring.
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/runway/internal/domain"
	"github.com/aristath/runway/internal/modules/montecarlo"
	"github.com/aristath/runway/internal/modules/simulation"
)

// maxBodyBytes bounds request bodies; a baseline with cost lines is a few KB
const maxBodyBytes = 1 << 20

// Handler handles simulation HTTP requests
type Handler struct {
	service *simulation.Service
	log     zerolog.Logger
}

// NewHandler creates a new simulation handler
func NewHandler(service *simulation.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "simulation").Logger(),
	}
}

// runRequest is the wire form of simulation.Request. The baseline may carry either
// numbers or user-entered strings such as "$1.2M" or "4%".
type runRequest struct {
	Baseline  json.RawMessage    `json:"baseline"`
	Config    *montecarlo.Config `json:"config,omitempty"`
	Levers    montecarlo.Levers  `json:"levers"`
	Iteration *int               `json:"iteration,omitempty"`
}

// HandleSimulate handles POST /api/simulations
func (h *Handler) HandleSimulate(w http.ResponseWriter, r *http.Request) {
	req, _, ok := h.decodeRun(w, r)
	if !ok {
		return
	}

	res, err := h.service.Simulate(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(res))
}

// HandleSubmit handles POST /api/simulations/submit
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	req, _, ok := h.decodeRun(w, r)
	if !ok {
		return
	}

	handle, err := h.service.Submit(req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Location", "/api/simulations/"+handle.ScenarioID+"/status")
	h.writeJSON(w, http.StatusAccepted, envelope(map[string]interface{}{
		"run_id":      handle.ID,
		"scenario_id": handle.ScenarioID,
		"run_key":     handle.RunKey,
	}))
}

// HandleCancel handles DELETE /api/simulations/{scenarioID}
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	scenarioID := chi.URLParam(r, "scenarioID")
	if !h.service.Cancel(scenarioID) {
		h.writeJSON(w, http.StatusNotFound, errorBody("no run in flight for scenario "+scenarioID, ""))
		return
	}
	h.log.Info().Str("scenario_id", scenarioID).Msg("Run cancelled by request")
	w.WriteHeader(http.StatusNoContent)
}

// HandleStatus handles GET /api/simulations/{scenarioID}/status
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	scenarioID := chi.URLParam(r, "scenarioID")
	st, ok := h.service.Status(scenarioID)
	if !ok {
		h.writeJSON(w, http.StatusNotFound, errorBody("no run recorded for scenario "+scenarioID, ""))
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(st))
}

// HandleReplay handles POST /api/simulations/replay
func (h *Handler) HandleReplay(w http.ResponseWriter, r *http.Request) {
	req, iteration, ok := h.decodeRun(w, r)
	if !ok {
		return
	}
	if iteration == nil {
		h.writeError(w, &domain.ConfigurationError{Field: "iteration", Reason: "is required"})
		return
	}

	path, err := h.service.Replay(r.Context(), req, *iteration)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(path))
}

// HandleFragility handles POST /api/fragility
func (h *Handler) HandleFragility(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	b, err := decodeBaseline(body)
	if err != nil {
		h.writeError(w, err)
		return
	}

	res, err := h.service.Fragility(b)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(res))
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	var raw json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&raw); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody("Invalid request body", ""))
		return nil, false
	}
	return raw, true
}

func (h *Handler) decodeRun(w http.ResponseWriter, r *http.Request) (simulation.Request, *int, bool) {
	body, ok := h.readBody(w, r)
	if !ok {
		return simulation.Request{}, nil, false
	}

	var rr runRequest
	if err := json.Unmarshal(body, &rr); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody("Invalid request body", ""))
		return simulation.Request{}, nil, false
	}
	if len(rr.Baseline) == 0 {
		h.writeError(w, &domain.InputError{Field: "baseline", Reason: "is required"})
		return simulation.Request{}, nil, false
	}

	b, err := decodeBaseline(rr.Baseline)
	if err != nil {
		h.writeError(w, err)
		return simulation.Request{}, nil, false
	}
	return simulation.Request{Baseline: b, Config: rr.Config, Levers: rr.Levers}, rr.Iteration, true
}

// decodeBaseline accepts a numeric baseline, falling back to the raw string form
func decodeBaseline(data json.RawMessage) (domain.Baseline, error) {
	var b domain.Baseline
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&b); err == nil {
		return b, nil
	}

	var raw domain.RawBaseline
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.Baseline{}, &domain.InputError{Field: "baseline", Reason: "is not a valid baseline object", Err: err}
	}
	return raw.Normalize()
}

// writeError maps the error taxonomy onto HTTP statuses
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var (
		inputErr  *domain.InputError
		configErr *domain.ConfigurationError
	)
	switch {
	case errors.As(err, &inputErr):
		h.writeJSON(w, http.StatusBadRequest, errorBody(err.Error(), inputErr.Field))
	case errors.As(err, &configErr):
		h.writeJSON(w, http.StatusBadRequest, errorBody(err.Error(), configErr.Field))
	case domain.IsNumericAnomaly(err):
		h.writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error(), ""))
	case domain.IsCancelled(err), errors.Is(err, simulation.ErrStale):
		h.writeJSON(w, http.StatusConflict, errorBody(err.Error(), ""))
	default:
		h.log.Error().Err(err).Msg("Simulation request failed")
		h.writeJSON(w, http.StatusInternalServerError, errorBody(fmt.Sprintf("internal error: %v", err), ""))
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
}

func errorBody(msg, field string) map[string]interface{} {
	body := map[string]interface{}{"error": msg}
	if field != "" {
		body["field"] = field
	}
	return body
}
