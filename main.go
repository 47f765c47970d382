package main

import (
	"context"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/leibatt/latency-visual-search/adapters/postgres"
	"github.com/leibatt/latency-visual-search/adapters/tabular"
	"github.com/leibatt/latency-visual-search/app"
	"github.com/leibatt/latency-visual-search/internal"
	"github.com/leibatt/latency-visual-search/internal/config"
	"github.com/leibatt/latency-visual-search/internal/report"
	"github.com/leibatt/latency-visual-search/ports"
	"github.com/leibatt/latency-visual-search/ui"
)

// Default entrypoint: run the full analysis, write the report, and serve
// it. The cobra CLI under cmd/report exposes the two halves separately.
func main() {
	// Missing .env is fine; environment variables may be set directly.
	_ = godotenv.Load()

	log := internal.DefaultLogger

	cfg, err := config.Load()
	if err != nil {
		log.Error("configuration failed: %v", err)
		os.Exit(1)
	}

	reader := tabular.NewDatasetReader(log)

	var runs ports.RunRepository
	if cfg.Database.URL != "" {
		db, err := sqlx.Connect("postgres", cfg.Database.URL)
		if err != nil {
			log.Error("database connection failed: %v", err)
			os.Exit(1)
		}
		defer db.Close()

		runs, err = postgres.NewRunRepository(db)
		if err != nil {
			log.Error("run repository setup failed: %v", err)
			os.Exit(1)
		}
		log.Info("run persistence enabled")
	}

	service := app.NewReportService(cfg, log, reader, runs)
	artifacts, err := service.Run(context.Background())
	if err != nil {
		log.Error("analysis failed: %v", err)
		os.Exit(1)
	}

	writer := report.NewWriter(cfg.Report.Title, cfg.Report.OutputDir, log)
	if err := writer.Write(artifacts); err != nil {
		log.Error("report rendering failed: %v", err)
		os.Exit(1)
	}

	server := ui.NewServer(cfg, log, artifacts, runs)
	if err := server.Start(":" + cfg.Server.Port); err != nil {
		log.Error("server stopped: %v", err)
		os.Exit(1)
	}
}
