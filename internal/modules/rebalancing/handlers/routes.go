package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all rebalancing routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/rebalancing/{name}", func(r chi.Router) {
		r.Get("/status", h.HandleGetStatus)
		r.Get("/reports", h.HandleGetReports)
		r.Post("/run", h.HandleTriggerCycle)
	})
}
