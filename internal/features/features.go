// Package features turns variable-length wallet transaction histories into
// fixed-width numeric feature vectors.
//
// Features fall into three groups: action counts (deposit/borrow/repay/
// redeem/liquidation by substring match), USD volume statistics, and temporal
// statistics (activity span, inter-transaction gaps, gap entropy). Ratios use
// a small epsilon in the denominator instead of special-casing zero.
package features

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/0xlend/lendscore/internal/ingest"
)

// epsilon guards ratio denominators against division by zero.
const epsilon = 1e-6

// Vector is the per-wallet feature vector. FirstActivity and LastActivity are
// kept for reporting but never fed to the model.
type Vector struct {
	Wallet string

	TotalTxs         float64
	DepositCount     float64
	BorrowCount      float64
	RepayCount       float64
	RedeemCount      float64
	LiquidationCount float64

	TotalUSDVolume float64
	AvgUSDAmount   float64
	MaxUSDAmount   float64

	TotalDepositUSD      float64
	TotalBorrowUSD       float64
	BorrowToDepositRatio float64
	BorrowPerDeposit     float64
	RepayToBorrowRatio   float64
	LiquidationRate      float64

	FirstActivity time.Time
	LastActivity  time.Time
	WalletAgeDays float64

	GapMeanSeconds float64
	GapStdSeconds  float64
	TxEntropy      float64

	UniqueTxHashes float64
}

// Compute groups transactions by wallet and computes one Vector per wallet.
// Output is sorted by wallet for deterministic downstream runs.
func Compute(txs []ingest.Transaction) []Vector {
	byWallet := make(map[string][]ingest.Transaction)
	for _, tx := range txs {
		byWallet[tx.Wallet] = append(byWallet[tx.Wallet], tx)
	}

	wallets := make([]string, 0, len(byWallet))
	for w := range byWallet {
		wallets = append(wallets, w)
	}
	sort.Strings(wallets)

	vectors := make([]Vector, 0, len(wallets))
	for _, w := range wallets {
		vectors = append(vectors, computeOne(w, byWallet[w]))
	}
	return vectors
}

func computeOne(wallet string, txs []ingest.Transaction) Vector {
	sort.Slice(txs, func(i, j int) bool { return txs[i].Timestamp.Before(txs[j].Timestamp) })

	v := Vector{
		Wallet:   wallet,
		TotalTxs: float64(len(txs)),
	}

	hashes := make(map[string]bool)
	for _, tx := range txs {
		v.TotalUSDVolume += tx.AmountUSD
		if tx.AmountUSD > v.MaxUSDAmount {
			v.MaxUSDAmount = tx.AmountUSD
		}
		if tx.TxHash != "" {
			hashes[tx.TxHash] = true
		}

		// Substring matches are intentionally non-exclusive: a Compound-style
		// "repayBorrow" counts as both a repay and a borrow.
		if strings.Contains(tx.Action, "deposit") {
			v.DepositCount++
		}
		if strings.Contains(tx.Action, "borrow") {
			v.BorrowCount++
		}
		if strings.Contains(tx.Action, "repay") {
			v.RepayCount++
		}
		if strings.Contains(tx.Action, "redeem") {
			v.RedeemCount++
		}
		if strings.Contains(tx.Action, "liquidation") {
			v.LiquidationCount++
		}

		// Volume splits use exact action names so repayBorrow amounts are not
		// double-booked as borrowed volume.
		switch tx.Action {
		case "deposit":
			v.TotalDepositUSD += tx.AmountUSD
		case "borrow":
			v.TotalBorrowUSD += tx.AmountUSD
		}
	}
	v.UniqueTxHashes = float64(len(hashes))

	if len(txs) > 0 {
		v.AvgUSDAmount = v.TotalUSDVolume / float64(len(txs))
		v.FirstActivity = txs[0].Timestamp
		v.LastActivity = txs[len(txs)-1].Timestamp
		v.WalletAgeDays = v.LastActivity.Sub(v.FirstActivity).Seconds() / 86400
		v.LiquidationRate = v.LiquidationCount / v.TotalTxs
	}

	v.BorrowToDepositRatio = v.TotalBorrowUSD / (v.TotalDepositUSD + epsilon)
	v.BorrowPerDeposit = v.BorrowCount / (v.DepositCount + epsilon)
	v.RepayToBorrowRatio = v.RepayCount / (v.BorrowCount + epsilon)

	gaps := timestampGaps(txs)
	v.GapMeanSeconds, v.GapStdSeconds = meanStd(gaps)
	v.TxEntropy = gapEntropy(gaps)

	return v
}

// timestampGaps returns consecutive deltas in seconds over the sorted history.
func timestampGaps(txs []ingest.Transaction) []float64 {
	if len(txs) < 2 {
		return nil
	}
	gaps := make([]float64, 0, len(txs)-1)
	for i := 1; i < len(txs); i++ {
		gaps = append(gaps, txs[i].Timestamp.Sub(txs[i-1].Timestamp).Seconds())
	}
	return gaps
}

// meanStd returns mean and population standard deviation (0, 0 for empty input).
func meanStd(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	var variance float64
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	return mean, math.Sqrt(variance / float64(len(xs)))
}

// gapEntropy computes the Shannon entropy (natural log) of a 10-bin histogram
// over the inter-transaction gaps. Regular bots concentrate all gaps in one
// bin (entropy 0); organic usage spreads across bins.
func gapEntropy(gaps []float64) float64 {
	if len(gaps) < 1 {
		return 0
	}

	lo, hi := gaps[0], gaps[0]
	for _, g := range gaps {
		if g < lo {
			lo = g
		}
		if g > hi {
			hi = g
		}
	}
	if hi == lo {
		return 0
	}

	const bins = 10
	hist := make([]float64, bins)
	width := (hi - lo) / bins
	for _, g := range gaps {
		i := int((g - lo) / width)
		if i >= bins {
			i = bins - 1
		}
		hist[i]++
	}

	total := float64(len(gaps))
	var entropy float64
	for _, count := range hist {
		if count == 0 {
			continue
		}
		p := count / total
		entropy -= p * math.Log(p)
	}
	return entropy
}
