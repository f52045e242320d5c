// Lendscore MCP Server - Exposes wallet credit scores as MCP tools for LLMs
package main

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/mark3labs/mcp-go/server"

	"github.com/0xlend/lendscore/internal/mcpserver"
	"github.com/0xlend/lendscore/internal/store"
)

func main() {
	st, cleanup, err := openStore()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	s := mcpserver.NewMCPServer(st)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

// openStore prefers DATABASE_URL, falling back to a wallet_scores.csv given
// via SCORES_CSV. One of the two must be set.
func openStore() (store.Store, func(), error) {
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		db, err := sql.Open("postgres", dbURL)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Ping(); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return store.NewPostgresStore(db), func() { _ = db.Close() }, nil
	}

	if csvPath := os.Getenv("SCORES_CSV"); csvPath != "" {
		ms, err := store.ImportCSV(csvPath)
		if err != nil {
			return nil, nil, err
		}
		return ms, func() {}, nil
	}

	return nil, nil, fmt.Errorf("DATABASE_URL or SCORES_CSV is required")
}
