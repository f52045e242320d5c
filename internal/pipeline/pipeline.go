// Package pipeline orchestrates a scoring run: load transactions, engineer
// per-wallet features, fit the anomaly model, rescale to credit scores, and
// emit the CSV, the markdown report, and optional persisted results.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/0xlend/lendscore/internal/features"
	"github.com/0xlend/lendscore/internal/idgen"
	"github.com/0xlend/lendscore/internal/ingest"
	"github.com/0xlend/lendscore/internal/logging"
	"github.com/0xlend/lendscore/internal/metrics"
	"github.com/0xlend/lendscore/internal/model"
	"github.com/0xlend/lendscore/internal/report"
	"github.com/0xlend/lendscore/internal/retry"
	"github.com/0xlend/lendscore/internal/score"
	"github.com/0xlend/lendscore/internal/store"
	"github.com/0xlend/lendscore/internal/traces"
)

// Config holds the parameters for one scoring run.
type Config struct {
	InputPath string
	OutputDir string
	ModelPath string // artifact file; empty disables model persistence

	Trees         int
	Subsample     int
	Contamination float64
	Seed          int64
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithStore enables result persistence.
func WithStore(s store.Store) Option {
	return func(p *Pipeline) { p.store = s }
}

// Pipeline is a single-use batch scoring run.
type Pipeline struct {
	cfg    Config
	store  store.Store
	logger *slog.Logger
}

// New creates a pipeline for the given configuration.
func New(cfg Config, opts ...Option) *Pipeline {
	p := &Pipeline{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result reports where a finished run put its outputs.
type Result struct {
	RunID        string
	CSVPath      string
	ReportPath   string
	ModelPath    string
	Transactions int
	Wallets      int
	Anomalies    int
}

// Run executes the full pipeline. Any stage failure aborts the run; only
// result persistence is best-effort.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	runID := idgen.WithPrefix("run_")
	ctx = logging.WithRunID(logging.WithLogger(ctx, p.logger), runID)
	logger := logging.L(ctx)

	ctx, span := traces.StartSpan(ctx, "pipeline.run",
		traces.RunID(runID), traces.InputFile(p.cfg.InputPath))
	defer span.End()

	started := time.Now()
	logger.Info("scoring run started", "input", p.cfg.InputPath)

	// Load
	var (
		txs   []ingest.Transaction
		stats *ingest.LoadStats
	)
	err := p.stage(ctx, "load", func(context.Context) error {
		var err error
		txs, stats, err = ingest.Load(p.cfg.InputPath, logger)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	metrics.TransactionsLoaded.Add(float64(stats.Loaded))
	metrics.RecordsSkipped.WithLabelValues("bad_line").Add(float64(stats.BadLines))
	metrics.RecordsSkipped.WithLabelValues("missing_fields").Add(float64(stats.SkippedRecords))

	// Features
	var (
		vectors []features.Vector
		matrix  [][]float64
	)
	err = p.stage(ctx, "features", func(context.Context) error {
		vectors = features.Compute(txs)
		matrix = features.Matrix(vectors)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("compute features: %w", err)
	}
	logger.Info("features computed", "wallets", len(vectors), "columns", len(features.Columns))

	// Fit + score
	var (
		scaler   = &model.StandardScaler{}
		forest   = model.NewIsolationForest(p.cfg.Trees, p.cfg.Subsample, p.cfg.Contamination, p.cfg.Seed)
		decision []float64
		labels   []int
	)
	err = p.stage(ctx, "fit", func(context.Context) error {
		scaled, err := scaler.FitTransform(matrix)
		if err != nil {
			return err
		}
		if err := forest.Fit(scaled); err != nil {
			return err
		}
		decision, err = forest.DecisionFunction(scaled)
		if err != nil {
			return err
		}
		labels, err = forest.Predict(scaled)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fit model: %w", err)
	}

	scores := score.Rescale(decision)
	anomalies := 0
	for _, l := range labels {
		if l == -1 {
			anomalies++
		}
	}
	metrics.WalletsScored.Add(float64(len(scores)))
	metrics.AnomaliesFlagged.Add(float64(anomalies))
	logger.Info("wallets scored", "wallets", len(scores), "anomalies", anomalies)

	// Emit outputs
	result := &Result{
		RunID:        runID,
		CSVPath:      filepath.Join(p.cfg.OutputDir, "wallet_scores.csv"),
		ReportPath:   filepath.Join(p.cfg.OutputDir, "analysis.md"),
		ModelPath:    p.cfg.ModelPath,
		Transactions: stats.Loaded,
		Wallets:      len(vectors),
		Anomalies:    anomalies,
	}

	entries := make([]report.Entry, len(vectors))
	for i, v := range vectors {
		entries[i] = report.Entry{Wallet: v.Wallet, Score: scores[i]}
	}

	err = p.stage(ctx, "report", func(context.Context) error {
		if err := report.WriteCSV(result.CSVPath, entries); err != nil {
			return err
		}
		sum := report.Summary{
			RunID:          runID,
			InputFile:      p.cfg.InputPath,
			GeneratedAt:    time.Now(),
			Transactions:   stats.Loaded,
			BadLines:       stats.BadLines,
			SkippedRecords: stats.SkippedRecords,
			Wallets:        len(vectors),
			Anomalies:      anomalies,
			Trees:          forest.Trees,
			Subsample:      forest.Subsample,
			Contamination:  forest.Contamination,
			Seed:           forest.Seed,
		}
		correlations := report.Correlations(features.Columns, matrix, scores)
		return report.WriteMarkdown(result.ReportPath, sum, entries, correlations)
	})
	if err != nil {
		return nil, fmt.Errorf("write outputs: %w", err)
	}

	if p.cfg.ModelPath != "" {
		artifact := model.NewArtifact(features.Columns, scaler, forest)
		if err := p.stage(ctx, "save_model", func(context.Context) error { return artifact.Save(p.cfg.ModelPath) }); err != nil {
			return nil, fmt.Errorf("save model: %w", err)
		}
	}

	p.persist(ctx, runID, stats, vectors, scores, decision, labels, anomalies)

	span.SetAttributes(traces.TransactionCount(stats.Loaded), traces.WalletCount(len(vectors)))
	logger.Info("scoring run finished",
		"duration", time.Since(started).Round(time.Millisecond),
		"csv", result.CSVPath,
		"report", result.ReportPath,
	)
	return result, nil
}

// persist saves the run and its scores to the store, if one is configured.
// Persistence is best-effort audit data; failures are logged, not fatal.
func (p *Pipeline) persist(ctx context.Context, runID string, stats *ingest.LoadStats,
	vectors []features.Vector, scores, decision []float64, labels []int, anomalies int) {

	if p.store == nil {
		return
	}
	logger := logging.L(ctx)

	run := &store.Run{
		ID:            runID,
		InputFile:     p.cfg.InputPath,
		Transactions:  stats.Loaded,
		Wallets:       len(vectors),
		Anomalies:     anomalies,
		Trees:         p.cfg.Trees,
		Contamination: p.cfg.Contamination,
		Seed:          p.cfg.Seed,
		CreatedAt:     time.Now().UTC(),
	}

	batch := make([]*store.WalletScore, len(vectors))
	for i, v := range vectors {
		batch[i] = &store.WalletScore{
			RunID:     runID,
			Wallet:    v.Wallet,
			Score:     scores[i],
			Raw:       decision[i],
			Anomaly:   labels[i] == -1,
			CreatedAt: run.CreatedAt,
		}
	}

	// The run row is created exactly once: re-running it after a partial
	// failure would violate the primary key, so only the score batch is
	// retried.
	if err := p.store.CreateRun(ctx, run); err != nil {
		logger.Warn("failed to persist run metadata", "error", err)
		return
	}
	err := retry.Do(ctx, 3, 500*time.Millisecond, func() error {
		return p.store.SaveScoreBatch(ctx, batch)
	})
	if err != nil {
		logger.Warn("failed to persist run results", "error", err)
		return
	}
	logger.Info("run results persisted", "scores", len(batch))
}

// stage runs fn inside a span and records its duration. fn receives the
// span's context so any spans it starts nest under the stage.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := traces.StartSpan(ctx, "pipeline."+name)
	defer span.End()

	started := time.Now()
	err := fn(ctx)
	metrics.StageDuration.WithLabelValues(name).Observe(time.Since(started).Seconds())

	if err != nil {
		span.RecordError(err)
	}
	return err
}
