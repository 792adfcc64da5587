// Command interp runs the interpolation pipeline as an offline batch
// job: it loads a normalized station records file, builds a grid or a
// target-site list, interpolates every time step and persists the
// results to the sqlite database for later retrieval through the API.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/michellexbui/BirdBeaks/internal/config"
	"github.com/michellexbui/BirdBeaks/internal/database"
	"github.com/michellexbui/BirdBeaks/internal/ingest"
	"github.com/michellexbui/BirdBeaks/internal/models"
	"github.com/michellexbui/BirdBeaks/internal/repository"
	"github.com/michellexbui/BirdBeaks/internal/service"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	recordsPath := flag.String("records", "", "Path to normalized station records JSON (overrides config)")
	targetsPath := flag.String("targets", "", "Optional CSV of target sites (name,lat,lon); replaces the mesh")
	minLat := flag.Float64("min-lat", 25, "Mesh minimum latitude")
	maxLat := flag.Float64("max-lat", 55, "Mesh maximum latitude")
	minLon := flag.Float64("min-lon", -125, "Mesh minimum longitude")
	maxLon := flag.Float64("max-lon", -65, "Mesh maximum longitude")
	latStep := flag.Float64("lat-step", 1.0, "Mesh latitude resolution in degrees")
	lonStep := flag.Float64("lon-step", 1.0, "Mesh longitude resolution in degrees")
	start := flag.String("start", "", "Start time (RFC3339); defaults to the dataset's first observation")
	end := flag.String("end", "", "End time (RFC3339); defaults to the dataset's last observation")
	stepSec := flag.Int("step", 3600, "Time step in seconds")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}
	if *recordsPath == "" {
		*recordsPath = cfg.Data.RecordsPath
	}
	if *recordsPath == "" {
		log.Fatal("A records file is required (-records flag or data.records_path)")
	}

	db, err := database.Open(database.Config{Path: cfg.Database.Path})
	if err != nil {
		log.Fatal("Failed to initialize database: ", err)
	}
	defer db.Close()

	dataset, dropped, err := ingest.LoadFile(*recordsPath)
	if err != nil {
		log.Fatal("Failed to load station records: ", err)
	}
	if len(dropped) > 0 {
		log.Printf("Dropped %d malformed station records", len(dropped))
	}

	stations := make([]models.Station, 0, len(dataset.Stations))
	for _, id := range dataset.StationIDs() {
		stations = append(stations, dataset.Stations[id])
	}
	if err := repository.NewStationRepository(db).UpsertStations(stations); err != nil {
		log.Fatal("Failed to store station metadata: ", err)
	}

	tr, err := timeRange(dataset, *start, *end)
	if err != nil {
		log.Fatal(err)
	}

	grid, err := buildGrid(*targetsPath, *minLat, *maxLat, *minLon, *maxLon, *latStep, *lonStep, tr, *stepSec)
	if err != nil {
		log.Fatal("Failed to build grid: ", err)
	}
	log.Printf("Grid: %d cells x %d steps from %s to %s",
		len(grid.Points), len(grid.Steps), tr.Start, tr.End)

	runService := service.NewRunService(db, dataset,
		cfg.QualityParams(), cfg.EngineParams(), cfg.AlignmentTolerance(), cfg.Interp.Workers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID, err := runService.StartRunBlocking(ctx, grid)
	if err != nil {
		log.Fatal("Run failed: ", err)
	}

	run, err := runService.GetRun(runID)
	if err != nil {
		log.Fatal("Failed to read back run: ", err)
	}
	summary, err := runService.CellSummary(runID)
	if err != nil {
		log.Fatal("Failed to summarize run: ", err)
	}

	fmt.Printf("Run %s: %s\n", runID, run.Status)
	fmt.Printf("  steps: %d (empty: %d)\n", run.StepCount, run.EmptySteps)
	for status, n := range summary {
		fmt.Printf("  cells %s: %d\n", status, n)
	}
}

// timeRange resolves the run window from flags, falling back to the
// span of the loaded dataset the way the original annual batch job did.
func timeRange(ds *models.StationDataset, start, end string) (models.TimeRange, error) {
	span, ok := ds.Span()
	if !ok && (start == "" || end == "") {
		return models.TimeRange{}, fmt.Errorf("dataset has no observations and no explicit time range was given")
	}

	tr := span
	if start != "" {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			return models.TimeRange{}, fmt.Errorf("invalid -start: %w", err)
		}
		tr.Start = t.UTC()
	}
	if end != "" {
		t, err := time.Parse(time.RFC3339, end)
		if err != nil {
			return models.TimeRange{}, fmt.Errorf("invalid -end: %w", err)
		}
		tr.End = t.UTC()
	}
	return tr, nil
}

func buildGrid(targetsPath string, minLat, maxLat, minLon, maxLon, latStep, lonStep float64,
	tr models.TimeRange, stepSec int) (*models.GridDefinition, error) {
	if targetsPath != "" {
		sites, err := loadTargets(targetsPath)
		if err != nil {
			return nil, err
		}
		var steps []time.Time
		for t := tr.Start; !t.After(tr.End); t = t.Add(time.Duration(stepSec) * time.Second) {
			steps = append(steps, t)
		}
		return models.NewTargetGrid(sites, steps)
	}

	region := models.Region{MinLat: minLat, MaxLat: maxLat, MinLon: minLon, MaxLon: maxLon}
	return models.NewUniformGrid(region, latStep, lonStep, tr, stepSec)
}

// loadTargets reads a target-site CSV with a header row and
// name,lat,lon columns. Longitudes in 0..360 are normalized.
func loadTargets(path string) ([]models.TargetSite, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open targets file: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse targets file: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("targets file has no data rows")
	}

	var sites []models.TargetSite
	for _, row := range rows[1:] {
		if len(row) < 3 {
			return nil, fmt.Errorf("target row needs name,lat,lon, got %v", row)
		}
		lat, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid target latitude %q: %w", row[1], err)
		}
		lon, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid target longitude %q: %w", row[2], err)
		}
		if lon > 180 {
			lon -= 360
		}
		sites = append(sites, models.TargetSite{Name: row[0], Lat: lat, Lon: lon})
	}
	return sites, nil
}
