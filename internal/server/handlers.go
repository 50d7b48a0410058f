package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"
)

// floorView is the JSON form of one tracked currency
type floorView struct {
	Currency  string   `json:"currency"`
	Floor     *float64 `json:"floor"`
	LastPrice *float64 `json:"last_price"`
	DeltaPct  *float64 `json:"delta_pct,omitempty"` // How far the last price sits above the floor
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	response := map[string]interface{}{
		"status":         "healthy",
		"service":        "trailstop",
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
	}

	if s.ledgerDB != nil {
		if err := s.ledgerDB.QuickCheck(r.Context()); err != nil {
			s.log.Warn().Err(err).Msg("Ledger health check failed")
			response["status"] = "degraded"
			response["ledger_error"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	if s.floors != nil {
		if last := s.floors.LastReport(); last != nil {
			response["last_iteration"] = last.StartedAt.Format(time.RFC3339)
		}
	}

	s.writeJSON(w, status, response)
}

// handleFloors handles GET /api/floors
func (s *Server) handleFloors(w http.ResponseWriter, r *http.Request) {
	floors := make([]floorView, 0)
	if s.floors != nil {
		for currency, state := range s.floors.Floors() {
			view := floorView{Currency: currency}
			if state.Floor.Valid {
				f := state.Floor.Value
				view.Floor = &f
			}
			if state.LastPrice.Valid {
				p := state.LastPrice.Value
				view.LastPrice = &p
			}
			if view.Floor != nil && view.LastPrice != nil && *view.Floor > 0 {
				d := (*view.LastPrice / *view.Floor * 100) - 100
				view.DeltaPct = &d
			}
			floors = append(floors, view)
		}
	}
	sort.Slice(floors, func(i, j int) bool { return floors[i].Currency < floors[j].Currency })

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"floors": floors,
		"count":  len(floors),
	})
}

// handleLastIteration handles GET /api/iterations/last
func (s *Server) handleLastIteration(w http.ResponseWriter, r *http.Request) {
	if s.floors == nil {
		http.Error(w, "No iteration completed yet", http.StatusNotFound)
		return
	}
	last := s.floors.LastReport()
	if last == nil {
		http.Error(w, "No iteration completed yet", http.StatusNotFound)
		return
	}

	s.writeJSON(w, http.StatusOK, last)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
