package features

import "math"

// Columns is the fixed model input column order. Wallet identity and raw
// activity timestamps are excluded; everything here is numeric.
var Columns = []string{
	"total_txs",
	"deposit_count",
	"borrow_count",
	"repay_count",
	"redeem_count",
	"liquidation_count",
	"total_usd_volume",
	"avg_usd_amount",
	"max_usd_amount",
	"total_deposit_usd",
	"total_borrow_usd",
	"borrow_to_deposit_ratio",
	"borrow_per_deposit",
	"repay_to_borrow_ratio",
	"liquidation_rate",
	"wallet_age_days",
	"gap_mean_seconds",
	"gap_std_seconds",
	"tx_entropy",
	"unique_tx_hashes",
}

// Row returns the numeric values of v in Columns order.
func (v Vector) Row() []float64 {
	return []float64{
		v.TotalTxs,
		v.DepositCount,
		v.BorrowCount,
		v.RepayCount,
		v.RedeemCount,
		v.LiquidationCount,
		v.TotalUSDVolume,
		v.AvgUSDAmount,
		v.MaxUSDAmount,
		v.TotalDepositUSD,
		v.TotalBorrowUSD,
		v.BorrowToDepositRatio,
		v.BorrowPerDeposit,
		v.RepayToBorrowRatio,
		v.LiquidationRate,
		v.WalletAgeDays,
		v.GapMeanSeconds,
		v.GapStdSeconds,
		v.TxEntropy,
		v.UniqueTxHashes,
	}
}

// Matrix builds the model input matrix, one sanitized row per vector.
// NaN and Inf values are replaced with 0 so a single degenerate wallet
// cannot poison the scaler.
func Matrix(vectors []Vector) [][]float64 {
	m := make([][]float64, len(vectors))
	for i, v := range vectors {
		row := v.Row()
		for j, x := range row {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				row[j] = 0
			}
		}
		m[i] = row
	}
	return m
}

// Wallets returns the wallet identifiers in vector order.
func Wallets(vectors []Vector) []string {
	out := make([]string, len(vectors))
	for i, v := range vectors {
		out[i] = v.Wallet
	}
	return out
}
