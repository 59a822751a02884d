package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers simulation and fragility routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/simulations", func(r chi.Router) {
		r.Post("/", h.HandleSimulate)
		r.Post("/submit", h.HandleSubmit)
		r.Post("/replay", h.HandleReplay)

		r.Route("/{scenarioID}", func(r chi.Router) {
			r.Delete("/", h.HandleCancel)
			r.Get("/status", h.HandleStatus)
		})
	})

	r.Post("/fragility", h.HandleFragility)
}
