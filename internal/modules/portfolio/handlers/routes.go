package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolios", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", h.HandleGetSummary)
			r.Get("/positions", h.HandleGetPositions)
			r.Get("/trades", h.HandleGetTrades)
			r.Get("/metrics", h.HandleGetMetrics)
			r.Get("/snapshots", h.HandleGetSnapshots)
		})
	})
}
