package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/0xlend/lendscore/internal/score"
)

// PostgresStore persists runs and scores in PostgreSQL.
// Schema lives in migrations/ and is applied via cmd/migrate.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a PostgreSQL-backed store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateRun(ctx context.Context, run *Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO score_runs (id, input_file, transactions, wallets, anomalies, trees, contamination, seed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, run.ID, run.InputFile, run.Transactions, run.Wallets, run.Anomalies, run.Trees, run.Contamination, run.Seed, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, input_file, transactions, wallets, anomalies, trees, contamination, seed, created_at
		FROM score_runs WHERE id = $1
	`, id)
	return scanRun(row)
}

func (s *PostgresStore) LatestRun(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, input_file, transactions, wallets, anomalies, trees, contamination, seed, created_at
		FROM score_runs ORDER BY created_at DESC LIMIT 1
	`)
	return scanRun(row)
}

func scanRun(row *sql.Row) (*Run, error) {
	var r Run
	err := row.Scan(&r.ID, &r.InputFile, &r.Transactions, &r.Wallets, &r.Anomalies, &r.Trees, &r.Contamination, &r.Seed, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return &r, nil
}

// SaveScoreBatch inserts all scores in a single transaction so a failed run
// never leaves a partial result set behind.
func (s *PostgresStore) SaveScoreBatch(ctx context.Context, scores []*WalletScore) error {
	if len(scores) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin score batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO wallet_scores (run_id, wallet, credit_score, raw_score, anomaly, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return fmt.Errorf("prepare score insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, ws := range scores {
		if _, err := stmt.ExecContext(ctx, ws.RunID, ws.Wallet, ws.Score, ws.Raw, ws.Anomaly, ws.CreatedAt); err != nil {
			return fmt.Errorf("insert score for %s: %w", ws.Wallet, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit score batch: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListScores(ctx context.Context, runID string, limit, offset int) ([]*WalletScore, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, wallet, credit_score, raw_score, anomaly, created_at
		FROM wallet_scores
		WHERE run_id = $1
		ORDER BY credit_score DESC, wallet ASC
		LIMIT $2 OFFSET $3
	`, runID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	return scanScores(rows)
}

func (s *PostgresStore) GetWalletScore(ctx context.Context, runID, wallet string) (*WalletScore, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, wallet, credit_score, raw_score, anomaly, created_at
		FROM wallet_scores WHERE run_id = $1 AND wallet = $2
	`, runID, wallet)

	var ws WalletScore
	err := row.Scan(&ws.RunID, &ws.Wallet, &ws.Score, &ws.Raw, &ws.Anomaly, &ws.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrScoreNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get wallet score: %w", err)
	}
	return &ws, nil
}

func (s *PostgresStore) TopRisky(ctx context.Context, runID string, limit int) ([]*WalletScore, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, wallet, credit_score, raw_score, anomaly, created_at
		FROM wallet_scores
		WHERE run_id = $1
		ORDER BY credit_score ASC, wallet ASC
		LIMIT $2
	`, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("top risky: %w", err)
	}
	return scanScores(rows)
}

func (s *PostgresStore) Distribution(ctx context.Context, runID string) ([]score.Band, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT FLOOR(LEAST(credit_score, 999) / 100)::int AS band, COUNT(*)
		FROM wallet_scores
		WHERE run_id = $1
		GROUP BY band
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("distribution: %w", err)
	}
	defer func() { _ = rows.Close() }()

	bands := score.Bands(nil)
	for rows.Next() {
		var band, count int
		if err := rows.Scan(&band, &count); err != nil {
			return nil, fmt.Errorf("scan distribution: %w", err)
		}
		if band >= 0 && band < len(bands) {
			bands[band].Count = count
		}
	}
	return bands, rows.Err()
}

func scanScores(rows *sql.Rows) ([]*WalletScore, error) {
	defer func() { _ = rows.Close() }()

	var out []*WalletScore
	for rows.Next() {
		var ws WalletScore
		if err := rows.Scan(&ws.RunID, &ws.Wallet, &ws.Score, &ws.Raw, &ws.Anomaly, &ws.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		out = append(out, &ws)
	}
	return out, rows.Err()
}
