package handlers

import (
	"net/http"

	"github.com/ebursztein/arca-backend/internal/contracts"
	"github.com/ebursztein/arca-backend/internal/meters"
	"github.com/ebursztein/arca-backend/pkg/logger"
)

// MetersHandler serves the meter taxonomy.
type MetersHandler struct {
	registry *meters.Registry
	logger   *logger.Logger
}

// NewMetersHandler creates a new meters handler
func NewMetersHandler(registry *meters.Registry, log *logger.Logger) *MetersHandler {
	return &MetersHandler{
		registry: registry,
		logger:   log,
	}
}

// MeterInfo is the catalog entry for one meter
type MeterInfo struct {
	ID       contracts.MeterID `json:"id"`
	Group    contracts.GroupID `json:"group"`
	Tier     int               `json:"tier"`
	Governor contracts.Body    `json:"governor,omitempty"`
	Weight   float64           `json:"weight"`
}

// List returns every registered meter grouped by life domain
// GET /api/meters
func (h *MetersHandler) List(w http.ResponseWriter, r *http.Request) {
	defs := h.registry.All()

	items := make([]MeterInfo, 0, len(defs))
	for _, d := range defs {
		items = append(items, MeterInfo{
			ID:       d.ID,
			Group:    d.Group,
			Tier:     d.Tier,
			Governor: d.Governor,
			Weight:   d.Weight,
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"groups": meters.GroupIDs,
		"count":  len(items),
		"meters": items,
	})
}
