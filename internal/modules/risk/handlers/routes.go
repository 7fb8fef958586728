package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all risk metrics routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/risk/{name}", func(r chi.Router) {
		r.Get("/var", h.HandleGetPortfolioVaR)
		r.Get("/alerts", h.HandleGetAlerts)
		r.Get("/positions", h.HandleGetPositionRisks)
		r.Get("/sectors", h.HandleGetSectorExposures)
	})
}
