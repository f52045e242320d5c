package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/0xlend/lendscore/internal/model"
	"github.com/0xlend/lendscore/internal/store"
	"github.com/0xlend/lendscore/internal/traces"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type rawTx struct {
	UserWallet string  `json:"userWallet"`
	Timestamp  int64   `json:"timestamp"`
	Action     string  `json:"action"`
	AmountUSD  float64 `json:"amount_usd"`
	TxHash     string  `json:"txHash"`
}

// writeSyntheticInput builds a population of organic-looking wallets plus one
// obvious bot that fires identical borrows on a fixed clock.
func writeSyntheticInput(t *testing.T) string {
	t.Helper()

	var txs []rawTx
	base := int64(1700000000)

	for w := 0; w < 30; w++ {
		wallet := fmt.Sprintf("0x%040x", w+1)
		at := base + int64(w)*7919
		for i := 0; i < 8; i++ {
			at += int64(3600 + (w*131+i*977)%90000)
			action := []string{"deposit", "borrow", "repay", "redeemunderlying"}[(w+i)%4]
			txs = append(txs, rawTx{
				UserWallet: wallet,
				Timestamp:  at,
				Action:     action,
				AmountUSD:  float64(50 + (w*37+i*113)%2000),
				TxHash:     fmt.Sprintf("0x%d_%d", w, i),
			})
		}
	}

	// The bot: 200 borrows, always 60 seconds apart, always the same amount.
	bot := "0x" + strings.Repeat("f", 40)
	for i := 0; i < 200; i++ {
		txs = append(txs, rawTx{
			UserWallet: bot,
			Timestamp:  base + int64(i)*60,
			Action:     "borrow",
			AmountUSD:  1000000,
			TxHash:     fmt.Sprintf("0xbot%d", i),
		})
	}

	data, err := json.Marshal(txs)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "transactions.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestPipeline_EndToEnd(t *testing.T) {
	input := writeSyntheticInput(t)
	outDir := t.TempDir()
	modelPath := filepath.Join(outDir, "model.json")
	ms := store.NewMemoryStore()

	p := New(Config{
		InputPath:     input,
		OutputDir:     outDir,
		ModelPath:     modelPath,
		Trees:         50,
		Subsample:     64,
		Contamination: 0.1,
		Seed:          42,
	}, WithLogger(testLogger), WithStore(ms))

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(result.RunID, "run_"))
	assert.Equal(t, 31, result.Wallets)
	assert.Equal(t, 30*8+200, result.Transactions)
	assert.Greater(t, result.Anomalies, 0)

	// CSV output
	csvData, err := os.ReadFile(result.CSVPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csvData)), "\n")
	assert.Equal(t, "wallet,credit_score", lines[0])
	assert.Len(t, lines, 32)

	// Markdown report
	mdData, err := os.ReadFile(result.ReportPath)
	require.NoError(t, err)
	body := string(mdData)
	assert.Contains(t, body, "# Wallet Credit Score Analysis")
	assert.Contains(t, body, "## Score Distribution")
	assert.Contains(t, body, result.RunID)

	// Model artifact reloads
	art, err := model.LoadArtifact(modelPath)
	require.NoError(t, err)
	assert.NotEmpty(t, art.FeatureNames)

	// Persisted results
	run, err := ms.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, result.RunID, run.ID)

	scores, err := ms.ListScores(context.Background(), run.ID, 100, 0)
	require.NoError(t, err)
	require.Len(t, scores, 31)
	for _, ws := range scores {
		assert.GreaterOrEqual(t, ws.Score, 0.0)
		assert.LessOrEqual(t, ws.Score, 1000.0)
	}
}

func TestPipeline_BotScoresLowerThanOrganicMedian(t *testing.T) {
	input := writeSyntheticInput(t)
	outDir := t.TempDir()
	ms := store.NewMemoryStore()

	p := New(Config{
		InputPath:     input,
		OutputDir:     outDir,
		Trees:         100,
		Subsample:     64,
		Contamination: 0.1,
		Seed:          42,
	}, WithLogger(testLogger), WithStore(ms))

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	ctx := context.Background()
	bot := "0x" + strings.Repeat("f", 40)
	botScore, err := ms.GetWalletScore(ctx, result.RunID, bot)
	require.NoError(t, err)

	all, err := ms.ListScores(ctx, result.RunID, 100, 0)
	require.NoError(t, err)
	median := all[len(all)/2].Score

	assert.Less(t, botScore.Score, median,
		"a clockwork bot should score below the organic median")
}

func TestPipeline_Deterministic(t *testing.T) {
	input := writeSyntheticInput(t)

	runOnce := func() map[string]float64 {
		ms := store.NewMemoryStore()
		p := New(Config{
			InputPath:     input,
			OutputDir:     t.TempDir(),
			Trees:         50,
			Subsample:     64,
			Contamination: 0.1,
			Seed:          42,
		}, WithLogger(testLogger), WithStore(ms))

		result, err := p.Run(context.Background())
		require.NoError(t, err)

		scores, err := ms.ListScores(context.Background(), result.RunID, 1000, 0)
		require.NoError(t, err)
		out := make(map[string]float64, len(scores))
		for _, ws := range scores {
			out[ws.Wallet] = ws.Score
		}
		return out
	}

	assert.Equal(t, runOnce(), runOnce())
}

// flakyStore fails SaveScoreBatch a configurable number of times before
// delegating to the wrapped store.
type flakyStore struct {
	store.Store
	batchFailures int
	batchCalls    int
	runCalls      int
}

func (f *flakyStore) CreateRun(ctx context.Context, run *store.Run) error {
	f.runCalls++
	return f.Store.CreateRun(ctx, run)
}

func (f *flakyStore) SaveScoreBatch(ctx context.Context, scores []*store.WalletScore) error {
	f.batchCalls++
	if f.batchCalls <= f.batchFailures {
		return errors.New("connection reset by peer")
	}
	return f.Store.SaveScoreBatch(ctx, scores)
}

func TestPipeline_PersistRetriesBatchWithoutRecreatingRun(t *testing.T) {
	input := writeSyntheticInput(t)
	fs := &flakyStore{Store: store.NewMemoryStore(), batchFailures: 1}

	p := New(Config{
		InputPath:     input,
		OutputDir:     t.TempDir(),
		Trees:         20,
		Subsample:     32,
		Contamination: 0.1,
		Seed:          42,
	}, WithLogger(testLogger), WithStore(fs))

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	// A transient batch failure is retried; the run row is created once, so
	// the retry cannot trip the primary key on a real database.
	assert.Equal(t, 1, fs.runCalls)
	assert.Equal(t, 2, fs.batchCalls)

	ctx := context.Background()
	run, err := fs.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, result.RunID, run.ID)

	scores, err := fs.ListScores(ctx, result.RunID, 1000, 0)
	require.NoError(t, err)
	assert.Len(t, scores, result.Wallets)
}

func TestStage_ContextCarriesStageSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	p := New(Config{}, WithLogger(testLogger))
	err := p.stage(context.Background(), "demo", func(ctx context.Context) error {
		_, inner := traces.StartSpan(ctx, "demo.inner")
		inner.End()
		return nil
	})
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 2)

	var innerSpan, stageSpan sdktrace.ReadOnlySpan
	for _, s := range spans {
		switch s.Name() {
		case "demo.inner":
			innerSpan = s
		case "pipeline.demo":
			stageSpan = s
		}
	}
	require.NotNil(t, innerSpan)
	require.NotNil(t, stageSpan)

	// Spans started inside the stage body nest under the stage span.
	assert.Equal(t, stageSpan.SpanContext().SpanID(), innerSpan.Parent().SpanID())
}

func TestPipeline_MissingInput(t *testing.T) {
	p := New(Config{
		InputPath: filepath.Join(t.TempDir(), "missing.json"),
		OutputDir: t.TempDir(),
		Trees:     10,
		Subsample: 16,
		Seed:      42,
	}, WithLogger(testLogger))

	_, err := p.Run(context.Background())
	require.Error(t, err)
}
