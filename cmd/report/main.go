package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/leibatt/latency-visual-search/adapters/postgres"
	"github.com/leibatt/latency-visual-search/adapters/tabular"
	"github.com/leibatt/latency-visual-search/app"
	"github.com/leibatt/latency-visual-search/internal"
	"github.com/leibatt/latency-visual-search/internal/config"
	"github.com/leibatt/latency-visual-search/internal/report"
	"github.com/leibatt/latency-visual-search/ports"
	"github.com/leibatt/latency-visual-search/ui"

	"github.com/jmoiron/sqlx"
)

func main() {
	// Missing .env is fine; environment variables may be set directly.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "vsearch-report",
		Short: "Statistical analysis of latency effects on visual search",
	}

	rootCmd.AddCommand(
		newGenerateCmd(),
		newServeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newGenerateCmd() *cobra.Command {
	var (
		pilotFile      string
		continuousFile string
		outputDir      string
		seed           int64
		cpGridSize     int
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run the analysis and write the report files",
		Long: `Run the full analysis pipeline and write the report to the output
directory: markdown, HTML, the XLSX workbook, the fitted-curve PNG, and
the raw results JSON.

Example: vsearch-report generate --pilot data/pilot.csv --continuous data/continuous.csv --seed 42`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(pilotFile, continuousFile, outputDir, seed, cpGridSize)
			if err != nil {
				return err
			}

			service, _, cleanup, err := buildService(cfg, log)
			if err != nil {
				return err
			}
			defer cleanup()

			artifacts, err := service.Run(cmd.Context())
			if err != nil {
				return err
			}
			return report.NewWriter(cfg.Report.Title, cfg.Report.OutputDir, log).Write(artifacts)
		},
	}

	addDataFlags(cmd, &pilotFile, &continuousFile, &outputDir, &seed, &cpGridSize)
	return cmd
}

func newServeCmd() *cobra.Command {
	var (
		pilotFile      string
		continuousFile string
		outputDir      string
		seed           int64
		cpGridSize     int
		port           string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the analysis and serve the report over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(pilotFile, continuousFile, outputDir, seed, cpGridSize)
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Server.Port = port
			}

			service, runs, cleanup, err := buildService(cfg, log)
			if err != nil {
				return err
			}
			defer cleanup()

			artifacts, err := service.Run(cmd.Context())
			if err != nil {
				return err
			}
			if err := report.NewWriter(cfg.Report.Title, cfg.Report.OutputDir, log).Write(artifacts); err != nil {
				return err
			}

			return ui.NewServer(cfg, log, artifacts, runs).Start(":" + cfg.Server.Port)
		},
	}

	addDataFlags(cmd, &pilotFile, &continuousFile, &outputDir, &seed, &cpGridSize)
	cmd.Flags().StringVar(&port, "port", "", "HTTP port (overrides PORT)")
	return cmd
}

func addDataFlags(cmd *cobra.Command, pilot, continuous, out *string, seed *int64, cpGridSize *int) {
	cmd.Flags().StringVar(pilot, "pilot", "", "Pilot dataset file, csv or xlsx (overrides PILOT_FILE)")
	cmd.Flags().StringVar(continuous, "continuous", "", "Continuous-latency dataset file (overrides CONTINUOUS_FILE)")
	cmd.Flags().StringVar(out, "out", "", "Report output directory (overrides REPORT_DIR)")
	cmd.Flags().Int64Var(seed, "seed", 0, "Random seed for partitioning (overrides ANALYSIS_SEED)")
	cmd.Flags().IntVar(cpGridSize, "cp-grid", 0, "Complexity-parameter grid size (overrides CP_GRID_SIZE)")
}

func loadConfig(pilot, continuous, out string, seed int64, cpGridSize int) (*config.Config, *internal.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if pilot != "" {
		cfg.Data.PilotFile = pilot
	}
	if continuous != "" {
		cfg.Data.ContinuousFile = continuous
	}
	if out != "" {
		cfg.Report.OutputDir = out
	}
	if seed != 0 {
		cfg.Analysis.Seed = seed
	}
	if cpGridSize != 0 {
		cfg.Analysis.CPGridSize = cpGridSize
	}
	return cfg, internal.DefaultLogger, nil
}

// buildService wires the dataset reader and, when a database URL is
// configured, the run repository. The returned cleanup closes the
// database connection.
func buildService(cfg *config.Config, log *internal.Logger) (*app.ReportService, ports.RunRepository, func(), error) {
	reader := tabular.NewDatasetReader(log)
	cleanup := func() {}

	var runs ports.RunRepository
	if cfg.Database.URL != "" {
		db, err := sqlx.Connect("postgres", cfg.Database.URL)
		if err != nil {
			return nil, nil, nil, err
		}
		cleanup = func() { db.Close() }

		runs, err = postgres.NewRunRepository(db)
		if err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		log.Info("run persistence enabled")
	}

	return app.NewReportService(cfg, log, reader, runs), runs, cleanup, nil
}
