package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all ledger routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/liquidations", func(r chi.Router) {
		r.Get("/", h.HandleGetLiquidations)
		r.Get("/summary", h.HandleGetSummary)
		r.Get("/{currency}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetByCurrency(w, r, chi.URLParam(r, "currency"))
		})
	})
}
