// Package mcpserver exposes scoring results as MCP tools so LLM agents can
// query wallet credit scores conversationally.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/0xlend/lendscore/internal/store"
)

// NewMCPServer creates a configured MCP server with all lendscore tools registered.
func NewMCPServer(s store.Store) *server.MCPServer {
	srv := server.NewMCPServer("lendscore", "1.0.0")
	h := NewHandlers(s)

	srv.AddTool(ToolLookupWalletScore, h.HandleLookupWalletScore)
	srv.AddTool(ToolTopRiskyWallets, h.HandleTopRiskyWallets)
	srv.AddTool(ToolScoreDistribution, h.HandleScoreDistribution)

	return srv
}
