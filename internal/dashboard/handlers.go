// Package dashboard provides JSON API endpoints over persisted scoring runs.
package dashboard

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/0xlend/lendscore/internal/ingest"
	"github.com/0xlend/lendscore/internal/score"
	"github.com/0xlend/lendscore/internal/store"
)

// Handler provides read-only API endpoints over scoring results.
type Handler struct {
	store store.Store
}

// NewHandler creates a new dashboard handler.
func NewHandler(s store.Store) *Handler {
	return &Handler{store: s}
}

// RegisterRoutes sets up API routes under the given group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/runs/latest", h.LatestRun)
	r.GET("/runs/:id", h.GetRun)
	r.GET("/runs/:id/scores", h.Scores)
	r.GET("/runs/:id/distribution", h.Distribution)
	r.GET("/runs/:id/risky", h.TopRisky)
	r.GET("/wallets/:addr/score", h.WalletScore)
}

// LatestRun returns metadata for the most recent scoring run.
func (h *Handler) LatestRun(c *gin.Context) {
	run, err := h.store.LatestRun(c.Request.Context())
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no_runs"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusOK, run)
}

// GetRun returns metadata for one scoring run.
func (h *Handler) GetRun(c *gin.Context) {
	run, err := h.store.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusOK, run)
}

// Scores returns a page of wallet scores for a run, highest score first.
func (h *Handler) Scores(c *gin.Context) {
	runID := c.Param("id")
	limit := parseLimit(c, 100, 1000)
	offset := 0
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	if _, err := h.store.GetRun(c.Request.Context(), runID); err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	scores, err := h.store.ListScores(c.Request.Context(), runID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id": runID,
		"scores": scores,
		"count":  len(scores),
		"offset": offset,
	})
}

// Distribution returns wallet counts per 100-point score band.
func (h *Handler) Distribution(c *gin.Context) {
	runID := c.Param("id")

	if _, err := h.store.GetRun(c.Request.Context(), runID); err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	bands, err := h.store.Distribution(c.Request.Context(), runID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	type band struct {
		Range string `json:"range"`
		Count int    `json:"count"`
	}
	out := make([]band, len(bands))
	for i, b := range bands {
		out[i] = band{Range: b.Label(), Count: b.Count}
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id": runID,
		"bands":  out,
	})
}

// TopRisky returns the lowest-scoring wallets of a run.
func (h *Handler) TopRisky(c *gin.Context) {
	runID := c.Param("id")
	limit := parseLimit(c, 20, 200)

	scores, err := h.store.TopRisky(c.Request.Context(), runID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":  runID,
		"wallets": scores,
		"count":   len(scores),
	})
}

// WalletScore returns a wallet's score from the most recent run.
func (h *Handler) WalletScore(c *gin.Context) {
	addr := ingest.NormalizeWallet(c.Param("addr"))

	run, err := h.store.LatestRun(c.Request.Context())
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no_runs"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	ws, err := h.store.GetWalletScore(c.Request.Context(), run.ID, addr)
	if err != nil {
		if errors.Is(err, store.ErrScoreNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "wallet_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":  run.ID,
		"wallet":  ws.Wallet,
		"score":   ws.Score,
		"anomaly": ws.Anomaly,
		"tier":    string(score.TierFor(ws.Score)),
	})
}

func parseLimit(c *gin.Context, defaultVal, maxVal int) int {
	limit := defaultVal
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxVal {
		limit = maxVal
	}
	return limit
}
