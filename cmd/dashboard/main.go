// Lendscore dashboard - read-only HTTP API over persisted scoring runs
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/0xlend/lendscore/internal/config"
	"github.com/0xlend/lendscore/internal/dashboard"
	"github.com/0xlend/lendscore/internal/logging"
	"github.com/0xlend/lendscore/internal/store"
)

func main() {
	bootLogger := logging.New("info", "text")

	cfg, err := config.Load()
	if err != nil {
		bootLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, cleanup, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	srv := dashboard.NewServer(st, cfg.DashboardPort, logger)
	if err := srv.Run(ctx); err != nil {
		logger.Error("dashboard error", "error", err)
		os.Exit(1)
	}
}

// openStore connects to PostgreSQL when DATABASE_URL is set, otherwise serves
// a previously generated wallet_scores.csv from memory.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, func(), error) {
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		logger.Info("using postgres store")
		return store.NewPostgresStore(db), func() { _ = db.Close() }, nil
	}

	csvPath := os.Getenv("SCORES_CSV")
	if csvPath == "" {
		logger.Info("no DATABASE_URL or SCORES_CSV set, serving empty in-memory store")
		return store.NewMemoryStore(), func() {}, nil
	}

	ms, err := store.ImportCSV(csvPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("loaded scores from csv", "path", csvPath)
	return ms, func() {}, nil
}
