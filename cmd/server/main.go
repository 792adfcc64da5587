package main

import (
	"flag"
	"log"

	"github.com/michellexbui/BirdBeaks/internal/api"
	"github.com/michellexbui/BirdBeaks/internal/config"
	"github.com/michellexbui/BirdBeaks/internal/database"
	"github.com/michellexbui/BirdBeaks/internal/ingest"
	"github.com/michellexbui/BirdBeaks/internal/models"
	"github.com/michellexbui/BirdBeaks/internal/repository"
	"github.com/michellexbui/BirdBeaks/internal/service"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	if cfg.Data.RecordsPath == "" {
		log.Fatal("data.records_path is required for the API server")
	}

	db, err := database.Open(database.Config{Path: cfg.Database.Path})
	if err != nil {
		log.Fatal("Failed to initialize database: ", err)
	}
	defer db.Close()

	dataset, dropped, err := ingest.LoadFile(cfg.Data.RecordsPath)
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

	runService := service.NewRunService(db, dataset,
		cfg.QualityParams(), cfg.EngineParams(), cfg.AlignmentTolerance(), cfg.Interp.Workers)

	router := api.SetupRouter(cfg, runService)

	log.Printf("Server starting on port %s", cfg.Server.Port)
	if err := router.Run(cfg.Server.Port); err != nil {
		log.Fatal("Failed to start server: ", err)
	}
}
