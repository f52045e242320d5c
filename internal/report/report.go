// Package report renders the pipeline's outputs of record: the per-wallet
// score CSV and the markdown analysis report.
package report

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/0xlend/lendscore/internal/score"
)

// Entry is one scored wallet.
type Entry struct {
	Wallet string
	Score  float64
}

// Summary carries run metadata into the markdown report.
type Summary struct {
	RunID          string
	InputFile      string
	GeneratedAt    time.Time
	Transactions   int
	BadLines       int
	SkippedRecords int
	Wallets        int
	Anomalies      int
	Trees          int
	Subsample      int
	Contamination  float64
	Seed           int64
}

// Correlation is a feature's Pearson correlation with the credit score.
type Correlation struct {
	Feature string
	R       float64
	Defined bool // false when either side has zero variance
}

// WriteCSV writes wallet scores ordered by descending score.
func WriteCSV(path string, entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	sorted := sortedByScore(entries)

	var sb strings.Builder
	sb.WriteString("wallet,credit_score\n")
	for _, e := range sorted {
		fmt.Fprintf(&sb, "%s,%.2f\n", e.Wallet, e.Score)
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// WriteMarkdown writes the analysis report.
func WriteMarkdown(path string, sum Summary, entries []Entry, correlations []Correlation) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	scores := make([]float64, len(entries))
	for i, e := range entries {
		scores[i] = e.Score
	}

	var sb strings.Builder
	sb.WriteString("# Wallet Credit Score Analysis\n\n")

	writeSummary(&sb, sum)
	writeDistribution(&sb, score.Bands(scores))
	writeCorrelations(&sb, correlations)
	writeInterpretation(&sb)

	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func writeSummary(sb *strings.Builder, sum Summary) {
	sb.WriteString("## Run Summary\n\n")
	fmt.Fprintf(sb, "| | |\n|---|---|\n")
	fmt.Fprintf(sb, "| Run ID | %s |\n", sum.RunID)
	fmt.Fprintf(sb, "| Input | %s |\n", sum.InputFile)
	fmt.Fprintf(sb, "| Generated | %s |\n", sum.GeneratedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(sb, "| Transactions | %d |\n", sum.Transactions)
	fmt.Fprintf(sb, "| Skipped records | %d |\n", sum.SkippedRecords)
	if sum.BadLines > 0 {
		fmt.Fprintf(sb, "| Unparseable lines | %d |\n", sum.BadLines)
	}
	fmt.Fprintf(sb, "| Wallets scored | %d |\n", sum.Wallets)
	fmt.Fprintf(sb, "| Flagged anomalies | %d |\n", sum.Anomalies)
	fmt.Fprintf(sb, "| Model | isolation forest, %d trees, subsample %d, contamination %.2f, seed %d |\n\n",
		sum.Trees, sum.Subsample, sum.Contamination, sum.Seed)
}

func writeDistribution(sb *strings.Builder, bands []score.Band) {
	sb.WriteString("## Score Distribution\n\n")
	sb.WriteString("| Score Range | Wallets | |\n")
	sb.WriteString("|-------------|---------|---|\n")

	maxCount := 0
	for _, b := range bands {
		if b.Count > maxCount {
			maxCount = b.Count
		}
	}
	for _, b := range bands {
		fmt.Fprintf(sb, "| %s | %d | %s |\n", b.Label(), b.Count, bar(b.Count, maxCount))
	}
	sb.WriteString("\n")
}

// bar renders a proportional histogram bar, up to 40 cells wide.
func bar(count, maxCount int) string {
	if count == 0 || maxCount == 0 {
		return ""
	}
	const width = 40
	n := count * width / maxCount
	if n < 1 {
		n = 1
	}
	return strings.Repeat("█", n)
}

func writeCorrelations(sb *strings.Builder, correlations []Correlation) {
	if len(correlations) == 0 {
		return
	}

	sorted := append([]Correlation(nil), correlations...)
	sort.Slice(sorted, func(i, j int) bool {
		// Undefined correlations sink to the bottom.
		if sorted[i].Defined != sorted[j].Defined {
			return sorted[i].Defined
		}
		return sorted[i].R < sorted[j].R
	})

	sb.WriteString("## Feature Correlations\n\n")
	sb.WriteString("Pearson correlation of each feature with the credit score.\n\n")
	sb.WriteString("| Feature | r |\n|---------|---|\n")
	for _, c := range sorted {
		if c.Defined {
			fmt.Fprintf(sb, "| %s | %+.3f |\n", c.Feature, c.R)
		} else {
			fmt.Fprintf(sb, "| %s | n/a |\n", c.Feature)
		}
	}
	sb.WriteString("\n")
}

func writeInterpretation(sb *strings.Builder) {
	sb.WriteString("## Score Interpretation\n\n")
	sb.WriteString("| Score Range | Behavior Profile |\n")
	sb.WriteString("|-------------|------------------|\n")
	fmt.Fprintf(sb, "| 900-1000 | %s |\n", score.TierIdeal.Describe())
	fmt.Fprintf(sb, "| 700-900 | %s |\n", score.TierReliable.Describe())
	fmt.Fprintf(sb, "| 400-700 | %s |\n", score.TierModerate.Describe())
	fmt.Fprintf(sb, "| 0-400 | %s |\n", score.TierHighRisk.Describe())
}

// Correlations computes the Pearson correlation of every feature column
// against the credit scores. Columns or scores with zero variance have no
// defined correlation.
func Correlations(columns []string, matrix [][]float64, scores []float64) []Correlation {
	out := make([]Correlation, 0, len(columns))
	for j, name := range columns {
		col := make([]float64, len(matrix))
		for i := range matrix {
			col[i] = matrix[i][j]
		}
		r, ok := pearson(col, scores)
		out = append(out, Correlation{Feature: name, R: r, Defined: ok})
	}
	return out
}

func pearson(xs, ys []float64) (float64, bool) {
	if len(xs) != len(ys) || len(xs) < 2 {
		return 0, false
	}
	n := float64(len(xs))

	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/n, sumY/n

	var cov, varX, varY float64
	for i := range xs {
		dx, dy := xs[i]-meanX, ys[i]-meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0, false
	}

	r := cov / math.Sqrt(varX*varY)
	return r, true
}

func sortedByScore(entries []Entry) []Entry {
	out := append([]Entry(nil), entries...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Wallet < out[j].Wallet
	})
	return out
}
