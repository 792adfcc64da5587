package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/michellexbui/BirdBeaks/internal/models"
)

// RunRepository handles database operations for interpolation runs
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// CreateRun inserts a new run in pending state
func (r *RunRepository) CreateRun(run *models.Run) error {
	query := `INSERT INTO runs (id, status, scheme, decay_parameter,
		max_influence_radius_km, min_contributors, coverage_threshold,
		outlier_mad_multiplier, alignment_tolerance_s, components,
		step_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.Exec(query,
		run.ID, models.RunStatusPending, run.Scheme, run.DecayParameter,
		run.MaxInfluenceRadiusKm, run.MinContributors, run.CoverageThreshold,
		run.OutlierMADMultiplier, run.AlignmentToleranceS,
		strings.Join(run.Components, ","),
		run.StepCount, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// MarkRunning marks a run as started
func (r *RunRepository) MarkRunning(id string) error {
	query := `UPDATE runs SET status = ?, started_at = ? WHERE id = ?`
	_, err := r.db.Exec(query, models.RunStatusRunning, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to mark run running: %w", err)
	}
	return nil
}

// MarkCompleted marks a run as completed with its final step counters
func (r *RunRepository) MarkCompleted(id string, emptySteps int) error {
	query := `UPDATE runs SET status = ?, empty_steps = ?, progress_percent = 100,
		completed_at = ? WHERE id = ?`
	_, err := r.db.Exec(query, models.RunStatusCompleted, emptySteps,
		time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to mark run completed: %w", err)
	}
	return nil
}

// MarkFailed marks a run as failed with an error message
func (r *RunRepository) MarkFailed(id string, errMsg string) error {
	query := `UPDATE runs SET status = ?, error_message = ?, completed_at = ? WHERE id = ?`
	_, err := r.db.Exec(query, models.RunStatusFailed, errMsg,
		time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to mark run failed: %w", err)
	}
	return nil
}

// UpdateProgress updates a run's progress percentage
func (r *RunRepository) UpdateProgress(id string, done, total int) error {
	percent := 0.0
	if total > 0 {
		percent = float64(done) / float64(total) * 100.0
	}
	_, err := r.db.Exec(`UPDATE runs SET progress_percent = ? WHERE id = ?`, percent, id)
	if err != nil {
		return fmt.Errorf("failed to update run progress: %w", err)
	}
	return nil
}

const runColumns = `id, status, scheme, decay_parameter, max_influence_radius_km,
	min_contributors, coverage_threshold, outlier_mad_multiplier,
	alignment_tolerance_s, components, step_count, empty_steps,
	progress_percent, error_message, created_at, started_at, completed_at`

// GetRun retrieves a single run by id
func (r *RunRepository) GetRun(id string) (*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`
	run, err := scanRun(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves runs with filtering, newest first
func (r *RunRepository) ListRuns(filter models.RunFilter) ([]models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`

	var conditions []string
	var args []interface{}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT %d", limit)
	if filter.Page > 1 {
		query += fmt.Sprintf(" OFFSET %d", (filter.Page-1)*limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// InsertExclusions stores the quality filter's exclusion report
func (r *RunRepository) InsertExclusions(tx *sql.Tx, runID string, exclusions map[string]string) error {
	stmt, err := tx.Prepare(`INSERT INTO run_exclusions (run_id, station_id, reason) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare exclusion insert: %w", err)
	}
	defer stmt.Close()

	for stationID, reason := range exclusions {
		if _, err := stmt.Exec(runID, stationID, reason); err != nil {
			return fmt.Errorf("failed to insert exclusion: %w", err)
		}
	}
	return nil
}

// GetExclusions returns a run's exclusion report as station id -> reason
func (r *RunRepository) GetExclusions(runID string) (map[string]string, error) {
	rows, err := r.db.Query(`SELECT station_id, reason FROM run_exclusions WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query exclusions: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, reason string
		if err := rows.Scan(&id, &reason); err != nil {
			return nil, fmt.Errorf("failed to scan exclusion: %w", err)
		}
		out[id] = reason
	}
	return out, rows.Err()
}

// InsertCoverage stores per-station coverage fractions for a run
func (r *RunRepository) InsertCoverage(tx *sql.Tx, runID string, coverage map[string]float64) error {
	stmt, err := tx.Prepare(`INSERT INTO run_coverage (run_id, station_id, coverage) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare coverage insert: %w", err)
	}
	defer stmt.Close()

	for stationID, c := range coverage {
		if _, err := stmt.Exec(runID, stationID, c); err != nil {
			return fmt.Errorf("failed to insert coverage: %w", err)
		}
	}
	return nil
}

// GetCoverage returns a run's per-station coverage fractions
func (r *RunRepository) GetCoverage(runID string) (map[string]float64, error) {
	rows, err := r.db.Query(`SELECT station_id, coverage FROM run_coverage WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query coverage: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var id string
		var c float64
		if err := rows.Scan(&id, &c); err != nil {
			return nil, fmt.Errorf("failed to scan coverage: %w", err)
		}
		out[id] = c
	}
	return out, rows.Err()
}

// scanner abstracts *sql.Row and *sql.Rows for scanRun
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*models.Run, error) {
	var run models.Run
	var components string
	var errMsg, startedAt, completedAt sql.NullString

	err := s.Scan(
		&run.ID, &run.Status, &run.Scheme, &run.DecayParameter,
		&run.MaxInfluenceRadiusKm, &run.MinContributors, &run.CoverageThreshold,
		&run.OutlierMADMultiplier, &run.AlignmentToleranceS, &components,
		&run.StepCount, &run.EmptySteps, &run.ProgressPercent,
		&errMsg, &run.CreatedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	if components != "" {
		run.Components = strings.Split(components, ",")
	}
	run.ErrorMessage = errMsg.String
	run.StartedAt = startedAt.String
	run.CompletedAt = completedAt.String
	return &run, nil
}
