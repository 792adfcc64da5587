package models

// RunFilter represents filter parameters for querying runs
type RunFilter struct {
	Status string `form:"status"`
	Limit  int    `form:"limit"`
	Page   int    `form:"page"`
}

// CellFilter represents filter parameters for querying run cells
type CellFilter struct {
	Step   string  `form:"step"` // RFC3339; empty selects all steps
	Status string  `form:"status"`
	MinLat float64 `form:"minLat"`
	MaxLat float64 `form:"maxLat"`
	MinLon float64 `form:"minLon"`
	MaxLon float64 `form:"maxLon"`
	Limit  int     `form:"limit"`
	Page   int     `form:"page"`
}
