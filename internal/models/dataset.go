package models

import (
	"fmt"
	"sort"
)

// MalformedRecordError reports an input record that cannot be used
type MalformedRecordError struct {
	StationID string
	Reason    string
}

func (e *MalformedRecordError) Error() string {
	id := e.StationID
	if id == "" {
		id = "<unknown>"
	}
	return fmt.Sprintf("malformed record for station %s: %s", id, e.Reason)
}

// StationDataset holds a set of stations and their observation series
// for one analysis window. Construct with NewStationDataset; the dataset
// is treated as read-only afterwards.
type StationDataset struct {
	Components []string
	Stations   map[string]Station
	Series     map[string][]Observation

	ids []string // station ids, sorted
}

// NewStationDataset builds a dataset and checks its invariants:
// every series belongs to a known station, timestamps are strictly
// increasing per station, and every observation carries one value per
// component.
func NewStationDataset(components []string, stations []Station, series map[string][]Observation) (*StationDataset, error) {
	if len(components) == 0 {
		return nil, fmt.Errorf("dataset requires at least one field component")
	}

	byID := make(map[string]Station, len(stations))
	for _, s := range stations {
		if s.ID == "" {
			return nil, &MalformedRecordError{Reason: "missing station id"}
		}
		if _, dup := byID[s.ID]; dup {
			return nil, &MalformedRecordError{StationID: s.ID, Reason: "duplicate station id"}
		}
		byID[s.ID] = s
	}

	for id, obs := range series {
		if _, ok := byID[id]; !ok {
			return nil, &MalformedRecordError{StationID: id, Reason: "observations reference unknown station"}
		}
		for i, o := range obs {
			if len(o.Values) != len(components) {
				return nil, &MalformedRecordError{StationID: id,
					Reason: fmt.Sprintf("observation %d has %d values, want %d", i, len(o.Values), len(components))}
			}
			if i > 0 && !obs[i-1].Time.Before(o.Time) {
				return nil, &MalformedRecordError{StationID: id,
					Reason: fmt.Sprintf("timestamps not strictly increasing at index %d", i)}
			}
		}
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return &StationDataset{
		Components: components,
		Stations:   byID,
		Series:     series,
		ids:        ids,
	}, nil
}

// StationIDs returns all station ids in sorted order
func (d *StationDataset) StationIDs() []string {
	out := make([]string, len(d.ids))
	copy(out, d.ids)
	return out
}

// ComponentIndex returns the value index for a named component, or -1
func (d *StationDataset) ComponentIndex(name string) int {
	for i, c := range d.Components {
		if c == name {
			return i
		}
	}
	return -1
}

// Bounds derives the geographic bounding box of the station set
func (d *StationDataset) Bounds() Region {
	var r Region
	first := true
	for _, id := range d.ids {
		s := d.Stations[id]
		if first {
			r = Region{MinLat: s.Latitude, MaxLat: s.Latitude, MinLon: s.Longitude, MaxLon: s.Longitude}
			first = false
			continue
		}
		if s.Latitude < r.MinLat {
			r.MinLat = s.Latitude
		}
		if s.Latitude > r.MaxLat {
			r.MaxLat = s.Latitude
		}
		if s.Longitude < r.MinLon {
			r.MinLon = s.Longitude
		}
		if s.Longitude > r.MaxLon {
			r.MaxLon = s.Longitude
		}
	}
	return r
}

// Span returns the time range covered by all observations in the dataset
func (d *StationDataset) Span() (TimeRange, bool) {
	var tr TimeRange
	found := false
	for _, id := range d.ids {
		obs := d.Series[id]
		if len(obs) == 0 {
			continue
		}
		first, last := obs[0].Time, obs[len(obs)-1].Time
		if !found {
			tr = TimeRange{Start: first, End: last}
			found = true
			continue
		}
		if first.Before(tr.Start) {
			tr.Start = first
		}
		if last.After(tr.End) {
			tr.End = last
		}
	}
	return tr, found
}

// Subset returns a new dataset restricted to the given time range and
// region. The source dataset is never mutated; observation structs are
// copied so callers may flag them independently.
func (d *StationDataset) Subset(tr TimeRange, region *Region) *StationDataset {
	stations := make(map[string]Station)
	series := make(map[string][]Observation)
	var ids []string

	for _, id := range d.ids {
		s := d.Stations[id]
		if region != nil && !region.Contains(s.Latitude, s.Longitude) {
			continue
		}
		var kept []Observation
		for _, o := range d.Series[id] {
			if tr.Contains(o.Time) {
				kept = append(kept, o)
			}
		}
		stations[id] = s
		series[id] = kept
		ids = append(ids, id)
	}

	return &StationDataset{
		Components: d.Components,
		Stations:   stations,
		Series:     series,
		ids:        ids,
	}
}

// Coverage returns the valid-observation fraction for one station over
// the dataset's window. A station with no observations has coverage 0.
func (d *StationDataset) Coverage(id string) float64 {
	obs := d.Series[id]
	if len(obs) == 0 {
		return 0
	}
	valid := 0
	for _, o := range obs {
		if o.Valid {
			valid++
		}
	}
	return float64(valid) / float64(len(obs))
}

// StationsWithCoverage reports the stations whose valid-observation
// fraction meets the threshold, in sorted id order.
func (d *StationDataset) StationsWithCoverage(minFraction float64) []string {
	var out []string
	for _, id := range d.ids {
		if d.Coverage(id) >= minFraction {
			out = append(out, id)
		}
	}
	return out
}
