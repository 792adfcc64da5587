package models

import "time"

// CellStatus classifies the confidence of a grid cell estimate
type CellStatus string

const (
	// CellEstimated means the cell has enough contributors for a
	// full-confidence estimate.
	CellEstimated CellStatus = "estimated"
	// CellLowConfidence means the cell was estimated from fewer
	// contributors than the configured minimum.
	CellLowConfidence CellStatus = "low-confidence"
	// CellUnestimated means no station lies within the influence
	// radius; Values and Variances are nil, never a silent zero.
	CellUnestimated CellStatus = "unestimated"
)

// CellEstimate is the interpolation result for one grid cell at one
// time step. Values and Variances are indexed by the run's component
// list and are nil for unestimated cells.
type CellEstimate struct {
	Values       []float64  `json:"values,omitempty"`
	Variances    []float64  `json:"variances,omitempty"`
	Contributors int        `json:"contributors"`
	WeightSum    float64    `json:"weight_sum"`
	Status       CellStatus `json:"status"`
}

// FieldEstimate is the gridded field estimate for a single time step.
// Cells is parallel to the grid's Points slice.
type FieldEstimate struct {
	Step       time.Time      `json:"step"`
	Components []string       `json:"components"`
	Cells      []CellEstimate `json:"cells"`
}

// Unestimated returns a fully unestimated field for a step, used when a
// step has no usable stations at all.
func Unestimated(step time.Time, components []string, nCells int) *FieldEstimate {
	cells := make([]CellEstimate, nCells)
	for i := range cells {
		cells[i].Status = CellUnestimated
	}
	return &FieldEstimate{Step: step, Components: components, Cells: cells}
}

// CountByStatus tallies cell statuses for reporting
func (f *FieldEstimate) CountByStatus() map[CellStatus]int {
	counts := make(map[CellStatus]int, 3)
	for _, c := range f.Cells {
		counts[c.Status]++
	}
	return counts
}
