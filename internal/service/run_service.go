package service

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/michellexbui/BirdBeaks/internal/database"
	"github.com/michellexbui/BirdBeaks/internal/interp"
	"github.com/michellexbui/BirdBeaks/internal/metrics"
	"github.com/michellexbui/BirdBeaks/internal/models"
	"github.com/michellexbui/BirdBeaks/internal/quality"
	"github.com/michellexbui/BirdBeaks/internal/repository"
)

// RunService orchestrates interpolation runs: it owns the loaded dataset,
// drives the filter/align/interpolate pipeline and persists results.
type RunService struct {
	db       *sql.DB
	runs     *repository.RunRepository
	cells    *repository.EstimateRepository
	stations *repository.StationRepository

	dataset   *models.StationDataset
	qp        quality.Params
	ep        interp.Params
	tolerance time.Duration
	workers   int
}

// NewRunService creates a run service bound to a loaded dataset and an
// immutable parameter set.
func NewRunService(db *sql.DB, dataset *models.StationDataset,
	qp quality.Params, ep interp.Params, tolerance time.Duration, workers int) *RunService {
	return &RunService{
		db:        db,
		runs:      repository.NewRunRepository(db),
		cells:     repository.NewEstimateRepository(db),
		stations:  repository.NewStationRepository(db),
		dataset:   dataset,
		qp:        qp,
		ep:        ep,
		tolerance: tolerance,
		workers:   workers,
	}
}

// Dataset returns the service's loaded dataset
func (s *RunService) Dataset() *models.StationDataset {
	return s.dataset
}

// ListStations returns the persisted station metadata ordered by id
func (s *RunService) ListStations() ([]models.Station, error) {
	return s.stations.ListStations()
}

// EngineParams returns the service's default engine parameters
func (s *RunService) EngineParams() interp.Params {
	return s.ep
}

// StartRun registers a run for the given grid and launches it in the
// background. Parameter overrides replace the service defaults for this
// run only; invalid parameters fail here, before any computation.
func (s *RunService) StartRun(ctx context.Context, grid *models.GridDefinition, overrides *interp.Params) (string, error) {
	if err := grid.Validate(); err != nil {
		return "", err
	}
	ep := s.ep
	if overrides != nil {
		ep = *overrides
	}
	if err := ep.Validate(); err != nil {
		return "", err
	}

	runID, err := s.register(grid, ep)
	if err != nil {
		return "", err
	}
	go s.execute(ctx, runID, grid, ep)
	return runID, nil
}

// StartRunBlocking registers and executes a run in the calling
// goroutine, returning when it has reached a terminal state; the batch
// driver uses this.
func (s *RunService) StartRunBlocking(ctx context.Context, grid *models.GridDefinition) (string, error) {
	if err := grid.Validate(); err != nil {
		return "", err
	}
	runID, err := s.register(grid, s.ep)
	if err != nil {
		return "", err
	}
	s.execute(ctx, runID, grid, s.ep)

	stored, err := s.runs.GetRun(runID)
	if err != nil {
		return runID, err
	}
	if stored != nil && stored.Status == models.RunStatusFailed {
		return runID, fmt.Errorf("run %s failed: %s", runID, stored.ErrorMessage)
	}
	return runID, nil
}

// register creates the run row in pending state
func (s *RunService) register(grid *models.GridDefinition, ep interp.Params) (string, error) {
	runID := uuid.New().String()
	run := &models.Run{
		ID:                   runID,
		Scheme:               string(ep.Scheme),
		DecayParameter:       ep.DecayParameter,
		MaxInfluenceRadiusKm: ep.MaxInfluenceRadiusKm,
		MinContributors:      ep.MinContributors,
		CoverageThreshold:    s.qp.CoverageThreshold,
		OutlierMADMultiplier: s.qp.OutlierMADMultiplier,
		AlignmentToleranceS:  int(s.tolerance / time.Second),
		Components:           s.dataset.Components,
		StepCount:            len(grid.Steps),
	}
	if err := s.runs.CreateRun(run); err != nil {
		return "", err
	}
	return runID, nil
}

// execute drives one run to a terminal state
func (s *RunService) execute(ctx context.Context, runID string, grid *models.GridDefinition, ep interp.Params) {
	if err := s.runs.MarkRunning(runID); err != nil {
		log.Printf("[RunService] Failed to mark run %s running: %v", runID, err)
	}

	runner := interp.NewRunner(s.workers, s.qp, s.tolerance, ep)
	runner.OnProgress = func(done, total int) {
		// Persist progress at most every few steps to keep write volume low.
		if done == total || done%10 == 0 {
			if err := s.runs.UpdateProgress(runID, done, total); err != nil {
				log.Printf("[RunService] Failed to update progress for run %s: %v", runID, err)
			}
		}
	}
	runner.OnStep = metrics.ObserveStep

	result, runErr := runner.Run(ctx, s.dataset, grid)
	if result == nil {
		s.fail(runID, runErr)
		return
	}

	if err := s.persist(runID, grid, result); err != nil {
		s.fail(runID, err)
		return
	}

	if runErr != nil {
		// Cancelled: persisted steps are complete, the rest are absent.
		s.fail(runID, fmt.Errorf("run cancelled: %w", runErr))
		return
	}

	if err := s.runs.MarkCompleted(runID, result.EmptySteps); err != nil {
		log.Printf("[RunService] Failed to mark run %s completed: %v", runID, err)
		return
	}
	metrics.ObserveRun(models.RunStatusCompleted)
	log.Printf("[RunService] Run %s completed: %d steps, %d empty, %d stations excluded",
		runID, len(grid.Steps), result.EmptySteps, result.Report.StationsExcluded)
}

// persist writes the run's estimates and reports. Each step is written
// in its own transaction so a stored step is always complete.
func (s *RunService) persist(runID string, grid *models.GridDefinition, result *interp.Result) error {
	for _, est := range result.Steps {
		if est == nil {
			continue
		}
		est := est
		err := database.Transaction(s.db, func(tx *sql.Tx) error {
			return s.cells.InsertStep(tx, runID, grid, est)
		})
		if err != nil {
			return err
		}
	}

	return database.Transaction(s.db, func(tx *sql.Tx) error {
		exclusions := make(map[string]string, len(result.Report.Exclusions))
		for _, e := range result.Report.Exclusions {
			exclusions[e.StationID] = e.Reason
		}
		for _, id := range result.NeverAligned {
			exclusions[id] = "no observation within alignment tolerance at any step"
		}
		if err := s.runs.InsertExclusions(tx, runID, exclusions); err != nil {
			return err
		}
		return s.runs.InsertCoverage(tx, runID, result.Report.Coverage)
	})
}

func (s *RunService) fail(runID string, cause error) {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	log.Printf("[RunService] Run %s failed: %s", runID, msg)
	if err := s.runs.MarkFailed(runID, msg); err != nil {
		log.Printf("[RunService] Failed to mark run %s failed: %v", runID, err)
	}
	metrics.ObserveRun(models.RunStatusFailed)
}

// GetRun retrieves one run
func (s *RunService) GetRun(id string) (*models.Run, error) {
	return s.runs.GetRun(id)
}

// ListRuns retrieves runs with filtering
func (s *RunService) ListRuns(filter models.RunFilter) ([]models.Run, error) {
	return s.runs.ListRuns(filter)
}

// GetCells retrieves a run's persisted cells
func (s *RunService) GetCells(runID string, filter models.CellFilter) ([]models.RunCell, error) {
	return s.cells.GetCells(runID, filter)
}

// CellSummary tallies a run's cells by status
func (s *RunService) CellSummary(runID string) (map[string]int, error) {
	return s.cells.CountByStatus(runID)
}

// GetExclusions retrieves a run's exclusion report
func (s *RunService) GetExclusions(runID string) (map[string]string, error) {
	return s.runs.GetExclusions(runID)
}

// GetCoverage retrieves a run's per-station coverage report
func (s *RunService) GetCoverage(runID string) (map[string]float64, error) {
	return s.runs.GetCoverage(runID)
}
