package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/0xlend/lendscore/internal/ingest"
	"github.com/0xlend/lendscore/internal/score"
	"github.com/0xlend/lendscore/internal/store"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	store store.Store
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(s store.Store) *Handlers {
	return &Handlers{store: s}
}

// HandleLookupWalletScore returns one wallet's score from the latest run.
func (h *Handlers) HandleLookupWalletScore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	wallet := req.GetString("wallet", "")
	if wallet == "" {
		return mcp.NewToolResultError("wallet is required"), nil
	}
	wallet = ingest.NormalizeWallet(wallet)

	run, err := h.store.LatestRun(ctx)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			return mcp.NewToolResultError("No scoring runs available yet"), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load latest run: %v", err)), nil
	}

	ws, err := h.store.GetWalletScore(ctx, run.ID, wallet)
	if err != nil {
		if errors.Is(err, store.ErrScoreNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("Wallet %s was not scored in run %s", wallet, run.ID)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Failed to look up score: %v", err)), nil
	}

	tier := score.TierFor(ws.Score)
	var sb strings.Builder
	fmt.Fprintf(&sb, "Wallet: %s\n", ws.Wallet)
	fmt.Fprintf(&sb, "Credit score: %.0f / 1000\n", ws.Score)
	fmt.Fprintf(&sb, "Tier: %s (%s)\n", tier, tier.Describe())
	if ws.Anomaly {
		sb.WriteString("Flagged as anomaly: yes\n")
	} else {
		sb.WriteString("Flagged as anomaly: no\n")
	}
	fmt.Fprintf(&sb, "Run: %s (scored %s)", run.ID, run.CreatedAt.Format("2006-01-02"))

	return mcp.NewToolResultText(sb.String()), nil
}

// HandleTopRiskyWallets lists the lowest-scoring wallets of the latest run.
func (h *Handlers) HandleTopRiskyWallets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 10)
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	run, err := h.store.LatestRun(ctx)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			return mcp.NewToolResultError("No scoring runs available yet"), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load latest run: %v", err)), nil
	}

	risky, err := h.store.TopRisky(ctx, run.ID, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list risky wallets: %v", err)), nil
	}
	if len(risky) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("Run %s has no scored wallets.", run.ID)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Lowest-scoring wallets in run %s:\n\n", run.ID)
	for i, ws := range risky {
		flag := ""
		if ws.Anomaly {
			flag = " [anomaly]"
		}
		fmt.Fprintf(&sb, "%d. %s - score %.0f%s\n", i+1, ws.Wallet, ws.Score, flag)
	}

	return mcp.NewToolResultText(sb.String()), nil
}

// HandleScoreDistribution summarizes the latest run's score histogram.
func (h *Handlers) HandleScoreDistribution(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	run, err := h.store.LatestRun(ctx)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			return mcp.NewToolResultError("No scoring runs available yet"), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load latest run: %v", err)), nil
	}

	bands, err := h.store.Distribution(ctx, run.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load distribution: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Score distribution for run %s (%d wallets, %d anomalies):\n\n",
		run.ID, run.Wallets, run.Anomalies)
	for i := len(bands) - 1; i >= 0; i-- {
		b := bands[i]
		fmt.Fprintf(&sb, "%9s: %d wallets\n", b.Label(), b.Count)
	}
	sb.WriteString("\nInterpretation:\n")
	fmt.Fprintf(&sb, "- 900-1000: %s\n", score.TierIdeal.Describe())
	fmt.Fprintf(&sb, "- 700-900: %s\n", score.TierReliable.Describe())
	fmt.Fprintf(&sb, "- 400-700: %s\n", score.TierModerate.Describe())
	fmt.Fprintf(&sb, "- 0-400: %s\n", score.TierHighRisk.Describe())

	return mcp.NewToolResultText(sb.String()), nil
}
