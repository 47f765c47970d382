package config

import (
	"os"
	"strconv"

	"github.com/leibatt/latency-visual-search/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Data     DataConfig
	Analysis AnalysisConfig
	Report   ReportConfig
	Server   ServerConfig
	Database DatabaseConfig
}

// DataConfig holds input dataset locations
type DataConfig struct {
	PilotFile      string // categorical/pilot dataset (csv or xlsx)
	ContinuousFile string // continuous-latency dataset (csv or xlsx)
}

// AnalysisConfig holds statistical analysis settings
type AnalysisConfig struct {
	Seed           int64   // random seed for partitioning and fold assignment
	TrainRatio     float64 // train/test split ratio for the tree learner
	CVFolds        int     // cross-validation folds
	CPGridSize     int     // complexity-parameter grid size
	RareThreshold  float64 // minority-class frequency below which Firth is used
	CurvePoints    int     // prediction grid size for the fitted curve
	Alpha          float64 // significance level for reporting
}

// ReportConfig holds report output settings
type ReportConfig struct {
	OutputDir string
	Title     string
}

// ServerConfig holds report viewer settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// DatabaseConfig holds optional run-log persistence settings
type DatabaseConfig struct {
	URL string // empty disables persistence
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg := &Config{
		Data: DataConfig{
			PilotFile:      getEnvOrDefault("PILOT_FILE", "data/pilot.csv"),
			ContinuousFile: getEnvOrDefault("CONTINUOUS_FILE", "data/continuous.csv"),
		},
		Analysis: AnalysisConfig{
			Seed:          getEnvInt64OrDefault("ANALYSIS_SEED", 42),
			TrainRatio:    getEnvFloatOrDefault("TRAIN_RATIO", 0.7),
			CVFolds:       getEnvIntOrDefault("CV_FOLDS", 10),
			CPGridSize:    getEnvIntOrDefault("CP_GRID_SIZE", 10),
			RareThreshold: getEnvFloatOrDefault("RARE_THRESHOLD", 0.15),
			CurvePoints:   getEnvIntOrDefault("CURVE_POINTS", 200),
			Alpha:         getEnvFloatOrDefault("ALPHA", 0.05),
		},
		Report: ReportConfig{
			OutputDir: getEnvOrDefault("REPORT_DIR", "out"),
			Title:     getEnvOrDefault("REPORT_TITLE", "Latency and Visual Search Analysis"),
		},
		Server: ServerConfig{
			Port:    getEnvOrDefault("PORT", "8080"),
			GinMode: getEnvOrDefault("GIN_MODE", "release"),
		},
		Database: DatabaseConfig{
			URL: getEnvOrDefault("DATABASE_URL", ""),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Data.PilotFile == "" {
		return errors.ConfigInvalid("PILOT_FILE is required")
	}
	if cfg.Data.ContinuousFile == "" {
		return errors.ConfigInvalid("CONTINUOUS_FILE is required")
	}
	if cfg.Analysis.TrainRatio <= 0 || cfg.Analysis.TrainRatio >= 1 {
		return errors.ConfigInvalid("TRAIN_RATIO must be in (0, 1)")
	}
	if cfg.Analysis.CVFolds < 2 {
		return errors.ConfigInvalid("CV_FOLDS must be at least 2")
	}
	if cfg.Analysis.CPGridSize < 1 {
		return errors.ConfigInvalid("CP_GRID_SIZE must be at least 1")
	}
	if cfg.Analysis.RareThreshold < 0 || cfg.Analysis.RareThreshold > 0.5 {
		return errors.ConfigInvalid("RARE_THRESHOLD must be in [0, 0.5]")
	}
	if cfg.Report.OutputDir == "" {
		return errors.ConfigInvalid("REPORT_DIR is required")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
