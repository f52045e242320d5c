// Lendscore - Batch credit scoring for lending-protocol wallets
package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"path/filepath"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/0xlend/lendscore/internal/config"
	"github.com/0xlend/lendscore/internal/logging"
	"github.com/0xlend/lendscore/internal/pipeline"
	"github.com/0xlend/lendscore/internal/store"
	"github.com/0xlend/lendscore/internal/traces"
)

// Build info - set by ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	bootLogger := logging.New("info", "text")

	cfg, err := config.Load()
	if err != nil {
		bootLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Flags override environment configuration.
	input := flag.String("input", cfg.InputPath, "transaction log file (JSON array or NDJSON)")
	out := flag.String("out", cfg.OutputDir, "output directory for wallet_scores.csv and analysis.md")
	modelOut := flag.String("model-out", filepath.Join(cfg.ModelDir, "isolation_forest.json"), "model artifact path; empty disables saving")
	trees := flag.Int("trees", cfg.Trees, "number of isolation trees")
	subsample := flag.Int("subsample", cfg.Subsample, "subsample size per tree")
	contamination := flag.Float64("contamination", cfg.Contamination, "expected proportion of anomalous wallets")
	seed := flag.Int64("seed", cfg.Seed, "RNG seed for deterministic runs")
	persist := flag.Bool("store", cfg.DatabaseURL != "", "persist results to DATABASE_URL")
	flag.Parse()

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting lendscore",
		"version", Version,
		"commit", Commit,
		"build_time", BuildTime,
	)

	ctx := context.Background()

	shutdownTraces, err := traces.Init(ctx, cfg.OTLPEndpoint, logger)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTraces(context.Background()) }()

	opts := []pipeline.Option{pipeline.WithLogger(logger)}
	if *persist {
		if cfg.DatabaseURL == "" {
			logger.Error("-store requires DATABASE_URL")
			os.Exit(1)
		}
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		if err := db.PingContext(ctx); err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		opts = append(opts, pipeline.WithStore(store.NewPostgresStore(db)))
	}

	p := pipeline.New(pipeline.Config{
		InputPath:     *input,
		OutputDir:     *out,
		ModelPath:     *modelOut,
		Trees:         *trees,
		Subsample:     *subsample,
		Contamination: *contamination,
		Seed:          *seed,
	}, opts...)

	result, err := p.Run(ctx)
	if err != nil {
		logger.Error("scoring run failed", "error", err)
		os.Exit(1)
	}

	logger.Info("done",
		"run_id", result.RunID,
		"wallets", result.Wallets,
		"anomalies", result.Anomalies,
		"csv", result.CSVPath,
		"report", result.ReportPath,
	)
}
