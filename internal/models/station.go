package models

import "time"

// Station represents a fixed ground magnetometer site
type Station struct {
	ID         string  `json:"id" db:"id"`
	Name       string  `json:"name,omitempty" db:"name"`
	Latitude   float64 `json:"latitude" db:"latitude"`
	Longitude  float64 `json:"longitude" db:"longitude"`
	ElevationM float64 `json:"elevation_m,omitempty" db:"elevation_m"`
}

// Observation is one timestamped field measurement at a station.
// Values is indexed by the owning dataset's Components list. A missing
// component is stored as NaN and the observation is marked invalid.
type Observation struct {
	Time   time.Time `json:"time"`
	Values []float64 `json:"values"`
	Valid  bool      `json:"valid"`
}

// TimeRange is an inclusive [Start, End] analysis window
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls within the range (inclusive)
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Region is a geographic bounding box
type Region struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// Contains reports whether the point lies inside the bounding box
func (r Region) Contains(lat, lon float64) bool {
	return lat >= r.MinLat && lat <= r.MaxLat && lon >= r.MinLon && lon <= r.MaxLon
}
