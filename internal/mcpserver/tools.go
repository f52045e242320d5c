package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the lendscore MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolLookupWalletScore = mcp.NewTool("lookup_wallet_score",
	mcp.WithDescription(
		"Look up the credit score for a wallet address from the most recent scoring run. "+
			"Returns the 0-1000 score, the risk tier, and whether the wallet was flagged as an anomaly."),
	mcp.WithString("wallet",
		mcp.Required(),
		mcp.Description("The wallet address (e.g. '0x1234...')")),
)

var ToolTopRiskyWallets = mcp.NewTool("top_risky_wallets",
	mcp.WithDescription(
		"List the lowest-scoring wallets from the most recent scoring run. "+
			"These are the wallets whose transaction behavior looks most bot-like or exploitative."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of wallets to return (default 10, max 100)")),
)

var ToolScoreDistribution = mcp.NewTool("score_distribution",
	mcp.WithDescription(
		"Show how wallet credit scores from the most recent run distribute across "+
			"100-point bands, plus what each band means for lending risk."),
)
