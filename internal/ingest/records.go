// Package ingest converts externally parsed station records into a
// validated StationDataset. Parsing of raw magnetometer archive files is
// an upstream collaborator's job; this package only consumes the
// normalized shape and rejects what it cannot use, with enumerated
// reasons.
package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"sort"
	"time"

	"github.com/michellexbui/BirdBeaks/internal/models"
)

// RawObservation is one timestamped value set in a normalized record.
// A nil or absent component value means the measurement is missing.
type RawObservation struct {
	Time   string              `json:"time"`
	Values map[string]*float64 `json:"values"`
}

// StationRecord is the normalized input shape for one station
type StationRecord struct {
	ID           string           `json:"id"`
	Name         string           `json:"name,omitempty"`
	Latitude     *float64         `json:"latitude"`
	Longitude    *float64         `json:"longitude"`
	ElevationM   float64          `json:"elevation_m,omitempty"`
	Observations []RawObservation `json:"observations"`
}

// RecordsFile is the top-level normalized records document
type RecordsFile struct {
	Components []string        `json:"components"`
	Stations   []StationRecord `json:"stations"`
}

// ReadRecords decodes a normalized records document from r
func ReadRecords(r io.Reader) (*RecordsFile, error) {
	var f RecordsFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}
	if len(f.Components) == 0 {
		return nil, fmt.Errorf("records document declares no field components")
	}
	return &f, nil
}

// LoadFile reads a normalized records file from disk and builds a
// dataset from it. Malformed records are dropped with logged warnings;
// the returned error list carries one entry per dropped record.
func LoadFile(path string) (*models.StationDataset, []error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open records file: %w", err)
	}
	defer f.Close()

	records, err := ReadRecords(f)
	if err != nil {
		return nil, nil, err
	}
	ds, dropped := BuildDataset(records)
	return ds, dropped, nil
}

// BuildDataset converts a records document into a StationDataset. A
// record without a resolvable position or id is dropped with a
// MalformedRecordError; an observation with an unparsable timestamp
// drops the whole record too, since a corrupted time axis cannot be
// trusted. Missing component values become NaN with Valid=false, which
// is how gaps in a station's series are represented. Observations are
// sorted by time; duplicate timestamps keep the first occurrence.
func BuildDataset(records *RecordsFile) (*models.StationDataset, []error) {
	var dropped []error
	var stations []models.Station
	series := make(map[string][]models.Observation)

	for _, rec := range records.Stations {
		station, obs, err := convertRecord(rec, records.Components)
		if err != nil {
			log.Printf("[Ingest] Dropping record: %v", err)
			dropped = append(dropped, err)
			continue
		}
		stations = append(stations, station)
		series[station.ID] = obs
	}

	ds, err := models.NewStationDataset(records.Components, stations, series)
	if err != nil {
		// Only reachable through duplicate station ids; drop nothing and
		// surface it as a malformed input.
		log.Printf("[Ingest] Dataset rejected: %v", err)
		dropped = append(dropped, err)
		empty, _ := models.NewStationDataset(records.Components, nil, map[string][]models.Observation{})
		return empty, dropped
	}

	log.Printf("[Ingest] Loaded %d stations (%d records dropped)", len(stations), len(dropped))
	return ds, dropped
}

func convertRecord(rec StationRecord, components []string) (models.Station, []models.Observation, error) {
	if rec.ID == "" {
		return models.Station{}, nil, &models.MalformedRecordError{Reason: "missing station id"}
	}
	if rec.Latitude == nil || rec.Longitude == nil {
		return models.Station{}, nil, &models.MalformedRecordError{StationID: rec.ID, Reason: "missing position"}
	}
	if *rec.Latitude < -90 || *rec.Latitude > 90 {
		return models.Station{}, nil, &models.MalformedRecordError{StationID: rec.ID,
			Reason: fmt.Sprintf("latitude %g out of range", *rec.Latitude)}
	}

	lon := *rec.Longitude
	// Archive dumps use 0..360 longitudes; normalize to -180..180.
	if lon > 180 {
		lon -= 360
	}
	if lon < -180 || lon > 180 {
		return models.Station{}, nil, &models.MalformedRecordError{StationID: rec.ID,
			Reason: fmt.Sprintf("longitude %g out of range", *rec.Longitude)}
	}

	obs := make([]models.Observation, 0, len(rec.Observations))
	for _, raw := range rec.Observations {
		t, err := time.Parse(time.RFC3339, raw.Time)
		if err != nil {
			return models.Station{}, nil, &models.MalformedRecordError{StationID: rec.ID,
				Reason: fmt.Sprintf("unparsable timestamp %q", raw.Time)}
		}

		values := make([]float64, len(components))
		valid := true
		for i, c := range components {
			v, ok := raw.Values[c]
			if !ok || v == nil || math.IsNaN(*v) {
				values[i] = math.NaN()
				valid = false
				continue
			}
			values[i] = *v
		}
		obs = append(obs, models.Observation{Time: t.UTC(), Values: values, Valid: valid})
	}

	sort.SliceStable(obs, func(i, j int) bool { return obs[i].Time.Before(obs[j].Time) })

	// Keep the first of any duplicate timestamps.
	deduped := make([]models.Observation, 0, len(obs))
	for _, o := range obs {
		if n := len(deduped); n > 0 && o.Time.Equal(deduped[n-1].Time) {
			log.Printf("[Ingest] Station %s: dropping duplicate observation at %s", rec.ID, o.Time)
			continue
		}
		deduped = append(deduped, o)
	}

	return models.Station{
		ID:         rec.ID,
		Name:       rec.Name,
		Latitude:   *rec.Latitude,
		Longitude:  lon,
		ElevationM: rec.ElevationM,
	}, deduped, nil
}
