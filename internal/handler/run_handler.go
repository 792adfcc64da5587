package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/michellexbui/BirdBeaks/internal/interp"
	"github.com/michellexbui/BirdBeaks/internal/models"
	"github.com/michellexbui/BirdBeaks/internal/service"
	"github.com/michellexbui/BirdBeaks/pkg/response"
)

// RunHandler handles HTTP requests for interpolation runs
type RunHandler struct {
	service *service.RunService
}

// NewRunHandler creates a new run handler
func NewRunHandler(service *service.RunService) *RunHandler {
	return &RunHandler{service: service}
}

// RunRequest is the body of POST /api/v1/runs. Either a mesh (bounding
// box + resolution) or a target-site list must be given, plus a time
// axis. Engine parameters default to the server configuration unless
// overridden per run.
type RunRequest struct {
	MinLat     float64 `json:"min_lat"`
	MaxLat     float64 `json:"max_lat"`
	MinLon     float64 `json:"min_lon"`
	MaxLon     float64 `json:"max_lon"`
	LatStepDeg float64 `json:"lat_step_deg"`
	LonStepDeg float64 `json:"lon_step_deg"`

	Targets []models.TargetSite `json:"targets,omitempty"`

	Start       string `json:"start"` // RFC3339
	End         string `json:"end"`   // RFC3339
	StepSeconds int    `json:"step_seconds"`

	WeightingScheme      *string  `json:"weighting_scheme,omitempty"`
	DecayParameter       *float64 `json:"decay_parameter,omitempty"`
	MaxInfluenceRadiusKm *float64 `json:"max_influence_radius_km,omitempty"`
	MinContributors      *int     `json:"min_contributors,omitempty"`
}

// CreateRun handles POST /api/v1/runs
func (h *RunHandler) CreateRun(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	grid, err := buildGrid(&req)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	overrides := h.service.EngineParams()
	if req.WeightingScheme != nil {
		overrides.Scheme = interp.WeightingScheme(*req.WeightingScheme)
	}
	if req.DecayParameter != nil {
		overrides.DecayParameter = *req.DecayParameter
	}
	if req.MaxInfluenceRadiusKm != nil {
		overrides.MaxInfluenceRadiusKm = *req.MaxInfluenceRadiusKm
	}
	if req.MinContributors != nil {
		overrides.MinContributors = *req.MinContributors
	}

	runID, err := h.service.StartRun(context.Background(), grid, &overrides)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	response.Accepted(c, gin.H{"run_id": runID, "steps": len(grid.Steps), "cells": len(grid.Points)})
}

// ListRuns handles GET /api/v1/runs
func (h *RunHandler) ListRuns(c *gin.Context) {
	var filter models.RunFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}

	runs, err := h.service.ListRuns(filter)
	if err != nil {
		response.InternalError(c, "Failed to list runs")
		return
	}

	response.Success(c, gin.H{"data": runs, "count": len(runs)})
}

// GetRun handles GET /api/v1/runs/:id
func (h *RunHandler) GetRun(c *gin.Context) {
	run, err := h.service.GetRun(c.Param("id"))
	if err != nil {
		response.InternalError(c, "Failed to get run")
		return
	}
	if run == nil {
		response.NotFound(c, "Run not found")
		return
	}

	summary, err := h.service.CellSummary(run.ID)
	if err != nil {
		response.InternalError(c, "Failed to summarize run cells")
		return
	}

	response.Success(c, gin.H{"run": run, "cell_summary": summary})
}

// GetRunCells handles GET /api/v1/runs/:id/cells
func (h *RunHandler) GetRunCells(c *gin.Context) {
	var filter models.CellFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}

	run, err := h.service.GetRun(c.Param("id"))
	if err != nil {
		response.InternalError(c, "Failed to get run")
		return
	}
	if run == nil {
		response.NotFound(c, "Run not found")
		return
	}

	cells, err := h.service.GetCells(run.ID, filter)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	response.Success(c, gin.H{"data": cells, "count": len(cells), "components": run.Components})
}

// GetRunExclusions handles GET /api/v1/runs/:id/exclusions
func (h *RunHandler) GetRunExclusions(c *gin.Context) {
	run, err := h.service.GetRun(c.Param("id"))
	if err != nil {
		response.InternalError(c, "Failed to get run")
		return
	}
	if run == nil {
		response.NotFound(c, "Run not found")
		return
	}

	exclusions, err := h.service.GetExclusions(run.ID)
	if err != nil {
		response.InternalError(c, "Failed to get exclusions")
		return
	}

	response.Success(c, gin.H{"exclusions": exclusions, "count": len(exclusions)})
}

// GetRunCoverage handles GET /api/v1/runs/:id/coverage
func (h *RunHandler) GetRunCoverage(c *gin.Context) {
	run, err := h.service.GetRun(c.Param("id"))
	if err != nil {
		response.InternalError(c, "Failed to get run")
		return
	}
	if run == nil {
		response.NotFound(c, "Run not found")
		return
	}

	coverage, err := h.service.GetCoverage(run.ID)
	if err != nil {
		response.InternalError(c, "Failed to get coverage")
		return
	}

	response.Success(c, gin.H{"coverage": coverage, "count": len(coverage)})
}

// buildGrid constructs the grid definition from a run request
func buildGrid(req *RunRequest) (*models.GridDefinition, error) {
	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		return nil, err
	}
	end, err := time.Parse(time.RFC3339, req.End)
	if err != nil {
		return nil, err
	}
	tr := models.TimeRange{Start: start.UTC(), End: end.UTC()}

	if len(req.Targets) > 0 {
		var steps []time.Time
		if req.StepSeconds <= 0 {
			req.StepSeconds = 3600
		}
		for t := tr.Start; !t.After(tr.End); t = t.Add(time.Duration(req.StepSeconds) * time.Second) {
			steps = append(steps, t)
		}
		return models.NewTargetGrid(req.Targets, steps)
	}

	region := models.Region{MinLat: req.MinLat, MaxLat: req.MaxLat, MinLon: req.MinLon, MaxLon: req.MaxLon}
	return models.NewUniformGrid(region, req.LatStepDeg, req.LonStepDeg, tr, req.StepSeconds)
}
