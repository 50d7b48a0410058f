// Package handlers provides HTTP handlers for the liquidation ledger.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/trailstop/internal/modules/ledger"
	"github.com/rs/zerolog"
)

// maxLimit caps the number of rows a single request may ask for
const maxLimit = 1000

// defaultSummaryWindow is used when ?since= is missing or invalid
const defaultSummaryWindow = 24 * time.Hour

// LiquidationReader is the read side of the ledger repository
type LiquidationReader interface {
	GetRecent(ctx context.Context, limit int) ([]ledger.Liquidation, error)
	GetByCurrency(ctx context.Context, currency string) ([]ledger.Liquidation, error)
	Summary(ctx context.Context, since time.Time) (*ledger.Summary, error)
}

// Handler handles ledger HTTP requests
type Handler struct {
	repo LiquidationReader
	now  func() time.Time
	log  zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(
	repo LiquidationReader,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		repo: repo,
		now:  time.Now,
		log:  log.With().Str("handler", "ledger").Logger(),
	}
}

// HandleGetLiquidations handles GET /api/liquidations
func (h *Handler) HandleGetLiquidations(w http.ResponseWriter, r *http.Request) {
	limit := ledger.DefaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	liquidations, err := h.repo.GetRecent(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query liquidations")
		http.Error(w, "Failed to query liquidations", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, h.envelope(map[string]interface{}{
		"liquidations": liquidations,
		"count":        len(liquidations),
	}))
}

// HandleGetByCurrency handles GET /api/liquidations/{currency}
func (h *Handler) HandleGetByCurrency(w http.ResponseWriter, r *http.Request, currency string) {
	if currency == "" {
		http.Error(w, "Currency is required", http.StatusBadRequest)
		return
	}

	liquidations, err := h.repo.GetByCurrency(r.Context(), currency)
	if err != nil {
		h.log.Error().Err(err).Str("currency", currency).Msg("Failed to query liquidations")
		http.Error(w, "Failed to query liquidations", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, h.envelope(map[string]interface{}{
		"currency":     currency,
		"liquidations": liquidations,
		"count":        len(liquidations),
	}))
}

// HandleGetSummary handles GET /api/liquidations/summary?since=24h
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	window := defaultSummaryWindow
	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		if parsed, err := time.ParseDuration(sinceStr); err == nil && parsed > 0 {
			window = parsed
		}
	}

	summary, err := h.repo.Summary(r.Context(), h.now().Add(-window))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query liquidation summary")
		http.Error(w, "Failed to query liquidation summary", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, h.envelope(map[string]interface{}{
		"window":     window.String(),
		"since":      summary.Since.Format(time.RFC3339),
		"executed":   summary.Executed,
		"failed":     summary.Failed,
		"total":      summary.Total(),
		"currencies": summary.Currencies,
	}))
}

func (h *Handler) envelope(data map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": h.now().Format(time.RFC3339),
		},
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
