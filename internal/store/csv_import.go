package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/0xlend/lendscore/internal/idgen"
)

// ImportCSV loads a previously generated wallet_scores.csv into a fresh
// in-memory store, so the read-only surfaces can serve results without a
// database. The import is registered as a single synthetic run.
func ImportCSV(path string) (*MemoryStore, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("open scores csv: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) < 2 || header[0] != "wallet" || header[1] != "credit_score" {
		return nil, fmt.Errorf("unexpected csv header %v, want [wallet credit_score]", header)
	}

	now := time.Now().UTC()
	run := &Run{
		ID:        idgen.WithPrefix("csv_"),
		InputFile: path,
		CreatedAt: now,
	}

	var scores []*WalletScore
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		s, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("parse score for %s: %w", rec[0], err)
		}
		scores = append(scores, &WalletScore{
			RunID:     run.ID,
			Wallet:    rec[0],
			Score:     s,
			CreatedAt: now,
		})
	}
	run.Wallets = len(scores)

	ms := NewMemoryStore()
	ctx := context.Background()
	if err := ms.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	if err := ms.SaveScoreBatch(ctx, scores); err != nil {
		return nil, err
	}
	return ms, nil
}
