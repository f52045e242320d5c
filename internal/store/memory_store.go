package store

import (
	"context"
	"sort"
	"sync"

	"github.com/0xlend/lendscore/internal/score"
)

// MemoryStore is an in-memory Store for tests and runs without a database.
type MemoryStore struct {
	mu     sync.RWMutex
	runs   []*Run
	scores map[string][]*WalletScore // runID -> scores in insertion order
}

// Compile-time check.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{scores: make(map[string][]*WalletScore)}
}

func (s *MemoryStore) CreateRun(_ context.Context, run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *run
	s.runs = append(s.runs, &cp)
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.runs {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrRunNotFound
}

func (s *MemoryStore) LatestRun(_ context.Context) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.runs) == 0 {
		return nil, ErrRunNotFound
	}
	cp := *s.runs[len(s.runs)-1]
	return &cp, nil
}

func (s *MemoryStore) SaveScoreBatch(_ context.Context, scores []*WalletScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ws := range scores {
		cp := *ws
		s.scores[ws.RunID] = append(s.scores[ws.RunID], &cp)
	}
	return nil
}

func (s *MemoryStore) ListScores(_ context.Context, runID string, limit, offset int) ([]*WalletScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.sortedByScoreDesc(runID)
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (s *MemoryStore) GetWalletScore(_ context.Context, runID, wallet string) (*WalletScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ws := range s.scores[runID] {
		if ws.Wallet == wallet {
			cp := *ws
			return &cp, nil
		}
	}
	return nil, ErrScoreNotFound
}

func (s *MemoryStore) TopRisky(_ context.Context, runID string, limit int) ([]*WalletScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.sortedByScoreDesc(runID)
	// Reverse: riskiest (lowest score) first.
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (s *MemoryStore) Distribution(_ context.Context, runID string) ([]score.Band, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values := make([]float64, 0, len(s.scores[runID]))
	for _, ws := range s.scores[runID] {
		values = append(values, ws.Score)
	}
	return score.Bands(values), nil
}

// sortedByScoreDesc returns copies sorted by descending score, wallet as
// tiebreaker for stable pagination. Caller must hold the lock.
func (s *MemoryStore) sortedByScoreDesc(runID string) []*WalletScore {
	src := s.scores[runID]
	out := make([]*WalletScore, 0, len(src))
	for _, ws := range src {
		cp := *ws
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Wallet < out[j].Wallet
	})
	return out
}
