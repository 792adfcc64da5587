package repository

import (
	"database/sql"
	"fmt"

	"github.com/michellexbui/BirdBeaks/internal/models"
)

// StationRepository handles database operations for station metadata
type StationRepository struct {
	db *sql.DB
}

// NewStationRepository creates a new station repository
func NewStationRepository(db *sql.DB) *StationRepository {
	return &StationRepository{db: db}
}

// UpsertStations stores or refreshes station metadata
func (r *StationRepository) UpsertStations(stations []models.Station) error {
	stmt, err := r.db.Prepare(`INSERT INTO stations (id, name, latitude, longitude, elevation_m)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			elevation_m = excluded.elevation_m`)
	if err != nil {
		return fmt.Errorf("failed to prepare station upsert: %w", err)
	}
	defer stmt.Close()

	for _, s := range stations {
		if _, err := stmt.Exec(s.ID, s.Name, s.Latitude, s.Longitude, s.ElevationM); err != nil {
			return fmt.Errorf("failed to upsert station %s: %w", s.ID, err)
		}
	}
	return nil
}

// ListStations returns all known stations ordered by id
func (r *StationRepository) ListStations() ([]models.Station, error) {
	rows, err := r.db.Query(`SELECT id, name, latitude, longitude, elevation_m FROM stations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stations: %w", err)
	}
	defer rows.Close()

	var stations []models.Station
	for rows.Next() {
		var s models.Station
		var name sql.NullString
		if err := rows.Scan(&s.ID, &name, &s.Latitude, &s.Longitude, &s.ElevationM); err != nil {
			return nil, fmt.Errorf("failed to scan station: %w", err)
		}
		s.Name = name.String
		stations = append(stations, s)
	}
	return stations, rows.Err()
}
