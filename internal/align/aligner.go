// Package align resolves stations with differing native sampling onto a
// common time base. For each requested time step it selects, per station,
// the nearest valid observation within a tolerance window; it never
// fabricates values for gaps.
package align

import (
	"sort"
	"time"

	"github.com/michellexbui/BirdBeaks/internal/models"
)

// Pair is one station's contribution to a single time step, ready for
// spatial interpolation.
type Pair struct {
	StationID string
	Lat       float64
	Lon       float64
	Values    []float64
}

// Aligner selects per-step station values from irregular series
type Aligner struct {
	Tolerance time.Duration
}

// New creates an aligner with the given tolerance window
func New(tolerance time.Duration) Aligner {
	return Aligner{Tolerance: tolerance}
}

// Slice returns the usable (position, value) pairs for one time step,
// ordered by station id. A station with no valid observation within
// tolerance contributes nothing. The result depends only on the dataset,
// the step and the tolerance; ties between two equally near observations
// resolve to the earlier one.
func (a Aligner) Slice(ds *models.StationDataset, step time.Time) []Pair {
	var pairs []Pair
	for _, id := range ds.StationIDs() {
		obs, ok := a.nearestValid(ds.Series[id], step)
		if !ok {
			continue
		}
		s := ds.Stations[id]
		pairs = append(pairs, Pair{
			StationID: id,
			Lat:       s.Latitude,
			Lon:       s.Longitude,
			Values:    obs.Values,
		})
	}
	return pairs
}

// Contributing returns, per station id, how many of the given steps the
// station contributed a value to. Stations present in the dataset but
// absent from every step show up with a zero count so callers can flag
// them.
func (a Aligner) Contributing(ds *models.StationDataset, steps []time.Time) map[string]int {
	counts := make(map[string]int, len(ds.Stations))
	for _, id := range ds.StationIDs() {
		counts[id] = 0
	}
	for _, step := range steps {
		for _, p := range a.Slice(ds, step) {
			counts[p.StationID]++
		}
	}
	return counts
}

// nearestValid finds the valid observation closest in time to step,
// within the tolerance window. Observations are strictly increasing in
// time, so a binary search brackets the candidates and a bounded scan on
// each side skips invalid entries.
func (a Aligner) nearestValid(obs []models.Observation, step time.Time) (models.Observation, bool) {
	if len(obs) == 0 {
		return models.Observation{}, false
	}

	// First observation at or after step.
	hi := sort.Search(len(obs), func(i int) bool {
		return !obs[i].Time.Before(step)
	})

	best := -1
	var bestDist time.Duration

	// Scan earlier observations; distances grow monotonically, so stop at
	// the first valid hit or once outside tolerance.
	for i := hi - 1; i >= 0; i-- {
		d := step.Sub(obs[i].Time)
		if d > a.Tolerance {
			break
		}
		if obs[i].Valid {
			best = i
			bestDist = d
			break
		}
	}

	// Scan later observations the same way; an earlier observation wins
	// a tie, so only a strictly smaller distance replaces it.
	for i := hi; i < len(obs); i++ {
		d := obs[i].Time.Sub(step)
		if d > a.Tolerance {
			break
		}
		if obs[i].Valid {
			if best == -1 || d < bestDist {
				best = i
			}
			break
		}
	}

	if best == -1 {
		return models.Observation{}, false
	}
	return obs[best], true
}
