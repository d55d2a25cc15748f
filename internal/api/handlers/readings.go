package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ebursztein/arca-backend/internal/contracts"
	"github.com/ebursztein/arca-backend/internal/engine"
	"github.com/ebursztein/arca-backend/pkg/logger"
)

// ReadingsHandler handles reading computation endpoints.
type ReadingsHandler struct {
	engine *engine.Engine
	logger *logger.Logger
}

// NewReadingsHandler creates a new readings handler
func NewReadingsHandler(eng *engine.Engine, log *logger.Logger) *ReadingsHandler {
	return &ReadingsHandler{
		engine: eng,
		logger: log,
	}
}

// ReadingsRequest represents a daily readings request
type ReadingsRequest struct {
	Datetime  string  `json:"datetime"` // Birth moment, RFC3339
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Date      string  `json:"date"`       // Target date (YYYY-MM-DD), default today
	SkipCache bool    `json:"skip_cache"` // Force recomputation
}

// Compute scores one chart for one date
// POST /api/readings
func (h *ReadingsHandler) Compute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ReadingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	birthTime, err := time.Parse(time.RFC3339, req.Datetime)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'datetime' (expected RFC3339)")
		return
	}
	if req.Latitude < -90 || req.Latitude > 90 {
		respondError(w, http.StatusBadRequest, "Invalid 'latitude' (expected -90..90)")
		return
	}
	if req.Longitude < -180 || req.Longitude > 180 {
		respondError(w, http.StatusBadRequest, "Invalid 'longitude' (expected -180..180)")
		return
	}

	date := time.Now().UTC()
	if req.Date != "" {
		date, err = time.Parse("2006-01-02", req.Date)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'date' format (expected YYYY-MM-DD)")
			return
		}
	}

	readings, err := h.engine.Compute(ctx, engine.Request{
		Birth: contracts.BirthData{
			Datetime:  birthTime,
			Latitude:  req.Latitude,
			Longitude: req.Longitude,
		},
		Date:      date,
		SkipCache: req.SkipCache,
	})
	if err != nil {
		if errors.Is(err, contracts.ErrMissingChartData) {
			h.logger.WithError(err).Warn("Chart data incomplete")
			respondError(w, http.StatusUnprocessableEntity, "Chart data incomplete")
			return
		}
		h.logger.WithError(err).Error("Failed to compute readings")
		respondError(w, http.StatusInternalServerError, "Failed to compute readings")
		return
	}

	respondJSON(w, http.StatusOK, readings)
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
