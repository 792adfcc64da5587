package models

import (
	"fmt"
	"time"
)

// GridPoint is one evaluation location of a grid. For rectangular meshes
// points are stored row-major (lat-major, lon-minor); target grids carry
// a named point per site.
type GridPoint struct {
	Name string  `json:"name,omitempty"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// TargetSite is a named evaluation location, e.g. a radar station
type TargetSite struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// GridDefinition defines the spatial grid and time axis of one
// interpolation run. Lats/Lons are empty for target-site grids.
type GridDefinition struct {
	Lats   []float64   `json:"lats,omitempty"`
	Lons   []float64   `json:"lons,omitempty"`
	Points []GridPoint `json:"points"`
	Steps  []time.Time `json:"steps"`
}

// NewMeshGrid builds a rectangular grid from strictly increasing axis
// values and a time-step sequence.
func NewMeshGrid(lats, lons []float64, steps []time.Time) (*GridDefinition, error) {
	g := &GridDefinition{Lats: lats, Lons: lons, Steps: steps}
	points := make([]GridPoint, 0, len(lats)*len(lons))
	for _, lat := range lats {
		for _, lon := range lons {
			points = append(points, GridPoint{Lat: lat, Lon: lon})
		}
	}
	g.Points = points
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// NewUniformGrid builds a mesh covering the region at the given
// resolution (degrees), with time steps every stepSec seconds over tr.
func NewUniformGrid(region Region, latStep, lonStep float64, tr TimeRange, stepSec int) (*GridDefinition, error) {
	if latStep <= 0 || lonStep <= 0 {
		return nil, fmt.Errorf("grid resolution must be positive, got lat=%g lon=%g", latStep, lonStep)
	}
	if stepSec <= 0 {
		return nil, fmt.Errorf("time step must be positive, got %d", stepSec)
	}

	var lats, lons []float64
	for lat := region.MinLat; lat <= region.MaxLat+1e-9; lat += latStep {
		lats = append(lats, lat)
	}
	for lon := region.MinLon; lon <= region.MaxLon+1e-9; lon += lonStep {
		lons = append(lons, lon)
	}

	var steps []time.Time
	for t := tr.Start; !t.After(tr.End); t = t.Add(time.Duration(stepSec) * time.Second) {
		steps = append(steps, t)
	}

	return NewMeshGrid(lats, lons, steps)
}

// NewTargetGrid builds a degenerate grid evaluating the field at a list
// of named sites. The interpolation engine treats it exactly like a mesh.
func NewTargetGrid(sites []TargetSite, steps []time.Time) (*GridDefinition, error) {
	if len(sites) == 0 {
		return nil, fmt.Errorf("target grid requires at least one site")
	}
	points := make([]GridPoint, len(sites))
	for i, s := range sites {
		points[i] = GridPoint{Name: s.Name, Lat: s.Lat, Lon: s.Lon}
	}
	g := &GridDefinition{Points: points, Steps: steps}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Validate checks the grid invariants: strictly increasing axes and
// time steps, and a non-empty point set.
func (g *GridDefinition) Validate() error {
	if len(g.Points) == 0 {
		return fmt.Errorf("grid has no evaluation points")
	}
	if len(g.Steps) == 0 {
		return fmt.Errorf("grid has no time steps")
	}
	for i := 1; i < len(g.Lats); i++ {
		if g.Lats[i] <= g.Lats[i-1] {
			return fmt.Errorf("latitude axis not strictly increasing at index %d", i)
		}
	}
	for i := 1; i < len(g.Lons); i++ {
		if g.Lons[i] <= g.Lons[i-1] {
			return fmt.Errorf("longitude axis not strictly increasing at index %d", i)
		}
	}
	for i := 1; i < len(g.Steps); i++ {
		if !g.Steps[i-1].Before(g.Steps[i]) {
			return fmt.Errorf("time steps not strictly increasing at index %d", i)
		}
	}
	return nil
}
