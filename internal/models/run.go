package models

// Run lifecycle states
const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run represents one interpolation run and the parameters that produced
// it. The parameter columns make a stored result unambiguous about its
// configuration.
type Run struct {
	ID                   string   `json:"id" db:"id"`
	Status               string   `json:"status" db:"status"`
	Scheme               string   `json:"scheme" db:"scheme"`
	DecayParameter       float64  `json:"decay_parameter" db:"decay_parameter"`
	MaxInfluenceRadiusKm float64  `json:"max_influence_radius_km" db:"max_influence_radius_km"`
	MinContributors      int      `json:"min_contributors" db:"min_contributors"`
	CoverageThreshold    float64  `json:"coverage_threshold" db:"coverage_threshold"`
	OutlierMADMultiplier float64  `json:"outlier_mad_multiplier" db:"outlier_mad_multiplier"`
	AlignmentToleranceS  int      `json:"alignment_tolerance_s" db:"alignment_tolerance_s"`
	Components           []string `json:"components"`
	StepCount            int      `json:"step_count" db:"step_count"`
	EmptySteps           int      `json:"empty_steps" db:"empty_steps"`
	ProgressPercent      float64  `json:"progress_percent" db:"progress_percent"`
	ErrorMessage         string   `json:"error_message,omitempty" db:"error_message"`
	CreatedAt            string   `json:"created_at" db:"created_at"`
	StartedAt            string   `json:"started_at,omitempty" db:"started_at"`
	CompletedAt          string   `json:"completed_at,omitempty" db:"completed_at"`
}

// RunCell is one persisted grid cell estimate of a run
type RunCell struct {
	RunID        string    `json:"run_id" db:"run_id"`
	StepTime     int64     `json:"step_time" db:"step_time"` // Unix timestamp in seconds
	CellIndex    int       `json:"cell_index" db:"cell_index"`
	Name         string    `json:"name,omitempty" db:"name"`
	Lat          float64   `json:"lat" db:"lat"`
	Lon          float64   `json:"lon" db:"lon"`
	Status       string    `json:"status" db:"status"`
	Contributors int       `json:"contributors" db:"contributors"`
	WeightSum    float64   `json:"weight_sum" db:"weight_sum"`
	Values       []float64 `json:"values,omitempty"`
	Variances    []float64 `json:"variances,omitempty"`
}
