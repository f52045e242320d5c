// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Pipeline inputs and outputs
	InputPath string // Transaction log file (JSON array or NDJSON)
	OutputDir string // Where wallet_scores.csv and analysis.md are written
	ModelDir  string // Where trained model artifacts are saved

	// Model parameters
	Trees         int     // Number of isolation trees
	Subsample     int     // Subsample size per tree
	Contamination float64 // Expected proportion of anomalous wallets
	Seed          int64   // RNG seed for deterministic runs

	// Logging
	LogLevel  string
	LogFormat string // "text" or "json"

	// Persistence (optional, in-memory only if not set)
	DatabaseURL string // PostgreSQL connection string

	// Dashboard
	DashboardPort string

	// Tracing
	OTLPEndpoint string // OTLP gRPC endpoint; empty disables tracing
}

// Defaults mirror the parameters the scoring model was tuned with.
const (
	DefaultInputPath     = "data/transactions.json"
	DefaultOutputDir     = "outputs"
	DefaultModelDir      = "models"
	DefaultTrees         = 100
	DefaultSubsample     = 256
	DefaultContamination = 0.1
	DefaultSeed          = 42
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
	DefaultDashboardPort = "8080"
)

// Load reads configuration from environment variables.
// It loads .env file if present (for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		InputPath:     getEnv("INPUT_PATH", DefaultInputPath),
		OutputDir:     getEnv("OUTPUT_DIR", DefaultOutputDir),
		ModelDir:      getEnv("MODEL_DIR", DefaultModelDir),
		Trees:         int(getEnvInt64("TREES", DefaultTrees)),
		Subsample:     int(getEnvInt64("SUBSAMPLE", DefaultSubsample)),
		Contamination: getEnvFloat("CONTAMINATION", DefaultContamination),
		Seed:          getEnvInt64("SEED", DefaultSeed),
		LogLevel:      getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:     getEnv("LOG_FORMAT", DefaultLogFormat),
		DatabaseURL:   os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		DashboardPort: getEnv("DASHBOARD_PORT", DefaultDashboardPort),
		OTLPEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent
func (c *Config) Validate() error {
	if c.InputPath == "" {
		return fmt.Errorf("INPUT_PATH is required")
	}
	if c.Trees <= 0 {
		return fmt.Errorf("TREES must be positive, got %d", c.Trees)
	}
	if c.Subsample <= 1 {
		return fmt.Errorf("SUBSAMPLE must be greater than 1, got %d", c.Subsample)
	}
	if c.Contamination <= 0 || c.Contamination > 0.5 {
		return fmt.Errorf("CONTAMINATION must be in (0, 0.5], got %g", c.Contamination)
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
