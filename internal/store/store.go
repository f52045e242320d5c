// Package store persists scoring runs and per-wallet credit scores.
//
// Persistence is best-effort: the pipeline's outputs of record are the CSV
// and the report, and the store exists so the dashboard and MCP tools can
// query finished runs. An in-memory implementation backs tests and runs
// without DATABASE_URL; PostgreSQL backs everything else.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/0xlend/lendscore/internal/score"
)

var (
	ErrRunNotFound   = errors.New("run not found")
	ErrScoreNotFound = errors.New("wallet score not found")
)

// Run records one pipeline execution and the parameters it used.
type Run struct {
	ID            string    `json:"id"`
	InputFile     string    `json:"inputFile"`
	Transactions  int       `json:"transactions"`
	Wallets       int       `json:"wallets"`
	Anomalies     int       `json:"anomalies"`
	Trees         int       `json:"trees"`
	Contamination float64   `json:"contamination"`
	Seed          int64     `json:"seed"`
	CreatedAt     time.Time `json:"createdAt"`
}

// WalletScore is one wallet's result within a run.
type WalletScore struct {
	RunID     string    `json:"runId"`
	Wallet    string    `json:"wallet"`
	Score     float64   `json:"creditScore"`
	Raw       float64   `json:"rawScore"` // decision-function value before rescaling
	Anomaly   bool      `json:"anomaly"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists runs and scores.
type Store interface {
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	LatestRun(ctx context.Context) (*Run, error)

	SaveScoreBatch(ctx context.Context, scores []*WalletScore) error
	ListScores(ctx context.Context, runID string, limit, offset int) ([]*WalletScore, error)
	GetWalletScore(ctx context.Context, runID, wallet string) (*WalletScore, error)
	TopRisky(ctx context.Context, runID string, limit int) ([]*WalletScore, error)
	Distribution(ctx context.Context, runID string) ([]score.Band, error)
}
