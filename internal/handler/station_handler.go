package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/michellexbui/BirdBeaks/internal/service"
	"github.com/michellexbui/BirdBeaks/pkg/response"
)

// StationHandler handles HTTP requests for station metadata
type StationHandler struct {
	service *service.RunService
}

// NewStationHandler creates a new station handler
func NewStationHandler(service *service.RunService) *StationHandler {
	return &StationHandler{service: service}
}

// ListStations handles GET /api/v1/stations. Station metadata comes from
// the database; per-station coverage is derived from the loaded dataset.
func (h *StationHandler) ListStations(c *gin.Context) {
	stations, err := h.service.ListStations()
	if err != nil {
		response.InternalError(c, "Failed to list stations")
		return
	}
	ds := h.service.Dataset()

	type stationInfo struct {
		ID        string  `json:"id"`
		Name      string  `json:"name,omitempty"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Coverage  float64 `json:"coverage"`
	}

	out := make([]stationInfo, 0, len(stations))
	for _, s := range stations {
		out = append(out, stationInfo{
			ID:        s.ID,
			Name:      s.Name,
			Latitude:  s.Latitude,
			Longitude: s.Longitude,
			Coverage:  ds.Coverage(s.ID),
		})
	}

	response.Success(c, gin.H{
		"data":       out,
		"count":      len(out),
		"components": ds.Components,
		"bounds":     ds.Bounds(),
	})
}
