package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/michellexbui/BirdBeaks/internal/models"
)

// EstimateRepository handles database operations for gridded field
// estimates
type EstimateRepository struct {
	db *sql.DB
}

// NewEstimateRepository creates a new estimate repository
func NewEstimateRepository(db *sql.DB) *EstimateRepository {
	return &EstimateRepository{db: db}
}

// InsertStep persists one complete time step of a run inside the given
// transaction. A step is written all-or-nothing so readers never see a
// partially stored step.
func (r *EstimateRepository) InsertStep(tx *sql.Tx, runID string, grid *models.GridDefinition, est *models.FieldEstimate) error {
	stmt, err := tx.Prepare(`INSERT INTO run_cells (run_id, step_time, cell_index,
		name, lat, lon, status, contributors, weight_sum, values_json, variances_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare cell insert: %w", err)
	}
	defer stmt.Close()

	stepUnix := est.Step.Unix()
	for i, cell := range est.Cells {
		pt := grid.Points[i]

		var valuesJSON, variancesJSON interface{}
		if cell.Values != nil {
			b, err := json.Marshal(cell.Values)
			if err != nil {
				return fmt.Errorf("failed to marshal cell values: %w", err)
			}
			valuesJSON = string(b)
		}
		if cell.Variances != nil {
			b, err := json.Marshal(cell.Variances)
			if err != nil {
				return fmt.Errorf("failed to marshal cell variances: %w", err)
			}
			variancesJSON = string(b)
		}

		_, err = stmt.Exec(runID, stepUnix, i, pt.Name, pt.Lat, pt.Lon,
			string(cell.Status), cell.Contributors, cell.WeightSum,
			valuesJSON, variancesJSON)
		if err != nil {
			return fmt.Errorf("failed to insert cell: %w", err)
		}
	}
	return nil
}

// GetCells retrieves persisted cells for a run with filtering
func (r *EstimateRepository) GetCells(runID string, filter models.CellFilter) ([]models.RunCell, error) {
	query := `SELECT run_id, step_time, cell_index, name, lat, lon, status,
		contributors, weight_sum, values_json, variances_json
		FROM run_cells`

	conditions := []string{"run_id = ?"}
	args := []interface{}{runID}

	if filter.Step != "" {
		t, err := time.Parse(time.RFC3339, filter.Step)
		if err != nil {
			return nil, fmt.Errorf("invalid step time %q: %w", filter.Step, err)
		}
		conditions = append(conditions, "step_time = ?")
		args = append(args, t.Unix())
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.MinLat != 0 {
		conditions = append(conditions, "lat >= ?")
		args = append(args, filter.MinLat)
	}
	if filter.MaxLat != 0 {
		conditions = append(conditions, "lat <= ?")
		args = append(args, filter.MaxLat)
	}
	if filter.MinLon != 0 {
		conditions = append(conditions, "lon >= ?")
		args = append(args, filter.MinLon)
	}
	if filter.MaxLon != 0 {
		conditions = append(conditions, "lon <= ?")
		args = append(args, filter.MaxLon)
	}

	query += " WHERE " + strings.Join(conditions, " AND ")
	query += " ORDER BY step_time, cell_index"

	limit := filter.Limit
	if limit <= 0 || limit > 100000 {
		limit = 10000
	}
	query += fmt.Sprintf(" LIMIT %d", limit)
	if filter.Page > 1 {
		query += fmt.Sprintf(" OFFSET %d", (filter.Page-1)*limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query run cells: %w", err)
	}
	defer rows.Close()

	var cells []models.RunCell
	for rows.Next() {
		var c models.RunCell
		var name sql.NullString
		var valuesJSON, variancesJSON sql.NullString

		err := rows.Scan(&c.RunID, &c.StepTime, &c.CellIndex, &name,
			&c.Lat, &c.Lon, &c.Status, &c.Contributors, &c.WeightSum,
			&valuesJSON, &variancesJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run cell: %w", err)
		}

		c.Name = name.String
		if valuesJSON.Valid {
			if err := json.Unmarshal([]byte(valuesJSON.String), &c.Values); err != nil {
				return nil, fmt.Errorf("failed to unmarshal cell values: %w", err)
			}
		}
		if variancesJSON.Valid {
			if err := json.Unmarshal([]byte(variancesJSON.String), &c.Variances); err != nil {
				return nil, fmt.Errorf("failed to unmarshal cell variances: %w", err)
			}
		}
		cells = append(cells, c)
	}
	return cells, rows.Err()
}

// CountByStatus tallies a run's cells by status
func (r *EstimateRepository) CountByStatus(runID string) (map[string]int, error) {
	rows, err := r.db.Query(`SELECT status, COUNT(*) FROM run_cells WHERE run_id = ? GROUP BY status`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count cells: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan cell count: %w", err)
		}
		out[status] = n
	}
	return out, rows.Err()
}
