package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all arena routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/arena", func(r chi.Router) {
		r.Get("/summary", h.HandleSummary)
	})
}
