package database

import (
	"database/sql"
	"fmt"
	"log"

	_ "modernc.org/sqlite"
)

// Config holds database configuration
type Config struct {
	Path string
}

// Open opens the sqlite database, applies pragmas and ensures the schema
// exists.
func Open(cfg Config) (*sql.DB, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initSchema(db); err != nil {
		return nil, err
	}

	log.Printf("Database initialized successfully: %s", cfg.Path)
	return db, nil
}

// Transaction executes a function within a database transaction
func Transaction(db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// initSchema creates all tables. The schema is small and fixed, so it is
// embedded rather than managed through migration files.
func initSchema(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS stations (
			id TEXT PRIMARY KEY,
			name TEXT,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			elevation_m REAL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			scheme TEXT NOT NULL,
			decay_parameter REAL NOT NULL,
			max_influence_radius_km REAL NOT NULL,
			min_contributors INTEGER NOT NULL,
			coverage_threshold REAL NOT NULL,
			outlier_mad_multiplier REAL NOT NULL,
			alignment_tolerance_s INTEGER NOT NULL,
			components TEXT NOT NULL,
			step_count INTEGER DEFAULT 0,
			empty_steps INTEGER DEFAULT 0,
			progress_percent REAL DEFAULT 0,
			error_message TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			started_at TIMESTAMP,
			completed_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS run_cells (
			run_id TEXT NOT NULL,
			step_time INTEGER NOT NULL,
			cell_index INTEGER NOT NULL,
			name TEXT,
			lat REAL NOT NULL,
			lon REAL NOT NULL,
			status TEXT NOT NULL,
			contributors INTEGER NOT NULL,
			weight_sum REAL NOT NULL,
			values_json TEXT,
			variances_json TEXT,
			PRIMARY KEY (run_id, step_time, cell_index),
			FOREIGN KEY (run_id) REFERENCES runs(id)
		)`,
		`CREATE TABLE IF NOT EXISTS run_exclusions (
			run_id TEXT NOT NULL,
			station_id TEXT NOT NULL,
			reason TEXT NOT NULL,
			PRIMARY KEY (run_id, station_id),
			FOREIGN KEY (run_id) REFERENCES runs(id)
		)`,
		`CREATE TABLE IF NOT EXISTS run_coverage (
			run_id TEXT NOT NULL,
			station_id TEXT NOT NULL,
			coverage REAL NOT NULL,
			PRIMARY KEY (run_id, station_id),
			FOREIGN KEY (run_id) REFERENCES runs(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_cells_step ON run_cells(run_id, step_time)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}
