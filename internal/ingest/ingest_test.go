package ingest

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transactions.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_JSONArray(t *testing.T) {
	path := writeInput(t, `[
		{"userWallet": "0x00000000219ab540356cbb839cbe05303d7705fa", "timestamp": 1629897600, "action": "Deposit", "amount_usd": 150.5, "txHash": "0xaaa"},
		{"userWallet": "0x00000000219ab540356cbb839cbe05303d7705fa", "timestamp": 1629984000, "action": "borrow", "amount_usd": "99.25", "txHash": "0xbbb"}
	]`)

	txs, stats, err := Load(path, testLogger)
	require.NoError(t, err)
	require.Len(t, txs, 2)

	assert.Equal(t, 2, stats.TotalRecords)
	assert.Equal(t, 2, stats.Loaded)
	assert.Equal(t, 0, stats.BadLines)
	assert.Equal(t, "userWallet", stats.Schema.WalletField)
	assert.Equal(t, "timestamp", stats.Schema.TimestampField)
	assert.Equal(t, "action", stats.Schema.ActionField)
	assert.Equal(t, "amount_usd", stats.Schema.AmountField)

	assert.Equal(t, "0x00000000219ab540356cbb839cbe05303d7705fa", txs[0].Wallet)
	assert.Equal(t, "deposit", txs[0].Action)
	assert.Equal(t, time.Unix(1629897600, 0).UTC(), txs[0].Timestamp)
	assert.InDelta(t, 150.5, txs[0].AmountUSD, 1e-9)
	assert.Equal(t, "0xaaa", txs[0].TxHash)

	// String amounts parse too.
	assert.InDelta(t, 99.25, txs[1].AmountUSD, 1e-9)
}

func TestLoad_NDJSONWithBadLines(t *testing.T) {
	path := writeInput(t, `{"user": "0xAbC0000000000000000000000000000000000001", "block_timestamp": "2021-08-25T12:00:00Z", "type": "deposit"}
not json at all
{"user": "0xAbC0000000000000000000000000000000000001", "block_timestamp": "2021-08-26 12:00:00", "type": "redeemUnderlying"}
{"broken": true
`)

	txs, stats, err := Load(path, testLogger)
	require.NoError(t, err)
	require.Len(t, txs, 2)

	assert.Equal(t, 2, stats.BadLines)
	assert.Equal(t, "user", stats.Schema.WalletField)
	assert.Equal(t, "block_timestamp", stats.Schema.TimestampField)
	assert.Equal(t, "type", stats.Schema.ActionField)

	// Hex addresses normalize to lowercase.
	assert.Equal(t, "0xabc0000000000000000000000000000000000001", txs[0].Wallet)
	assert.Equal(t, "redeemunderlying", txs[1].Action)
}

func TestLoad_ActionDataAmounts(t *testing.T) {
	path := writeInput(t, `[
		{"userWallet": "u1", "timestamp": 1700000000, "action": "deposit",
		 "actionData": {"amount": "2000000", "assetPriceUSD": "0.9998"}},
		{"userWallet": "u2", "timestamp": 1700000100, "action": "borrow",
		 "actionData": {"amount": 50}}
	]`)

	txs, stats, err := Load(path, testLogger)
	require.NoError(t, err)
	require.Len(t, txs, 2)

	assert.Equal(t, "actionData", stats.Schema.AmountField)
	assert.InDelta(t, 2000000*0.9998, txs[0].AmountUSD, 1e-6)
	// Missing assetPriceUSD defaults to 1.
	assert.InDelta(t, 50, txs[1].AmountUSD, 1e-9)
}

func TestLoad_MillisecondTimestamps(t *testing.T) {
	path := writeInput(t, `[{"userWallet": "u1", "timestamp": 1629897600000, "action": "deposit"}]`)

	txs, _, err := Load(path, testLogger)
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1629897600, 0).UTC(), txs[0].Timestamp)
}

func TestLoad_SkipsRecordsMissingRequiredFields(t *testing.T) {
	path := writeInput(t, `[
		{"userWallet": "u1", "timestamp": 1700000000, "action": "deposit"},
		{"userWallet": "", "timestamp": 1700000000},
		{"userWallet": "u3", "timestamp": "garbage"},
		{"timestamp": 1700000000}
	]`)

	txs, stats, err := Load(path, testLogger)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, 3, stats.SkippedRecords)
	assert.Equal(t, 4, stats.TotalRecords)
}

func TestLoad_NoWalletField(t *testing.T) {
	path := writeInput(t, `[{"timestamp": 1700000000, "action": "deposit"}]`)

	_, _, err := Load(path, testLogger)
	require.ErrorIs(t, err, ErrNoWalletField)
}

func TestLoad_NoTimestampField(t *testing.T) {
	path := writeInput(t, `[{"userWallet": "u1", "action": "deposit"}]`)

	_, _, err := Load(path, testLogger)
	require.ErrorIs(t, err, ErrNoTimestampField)
}

func TestLoad_AllRecordsRejected(t *testing.T) {
	path := writeInput(t, `[{"userWallet": "u1", "timestamp": "not a time"}]`)

	_, _, err := Load(path, testLogger)
	require.ErrorIs(t, err, ErrNoRecords)
}

func TestLoad_MissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "nope.json"), testLogger)
	require.Error(t, err)
}

func TestNormalizeWallet(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0x00000000219AB540356cBB839Cbe05303d7705Fa", "0x00000000219ab540356cbb839cbe05303d7705fa"},
		{"  0xAbC0000000000000000000000000000000000001  ", "0xabc0000000000000000000000000000000000001"},
		{"user-42", "user-42"},
		{"0xnothex", "0xnothex"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeWallet(tt.in))
	}
}

func TestParseTimestamp_Formats(t *testing.T) {
	ts, ok := parseTimestamp("2021-08-25T12:00:00Z")
	require.True(t, ok)
	assert.Equal(t, time.Date(2021, 8, 25, 12, 0, 0, 0, time.UTC), ts)

	ts, ok = parseTimestamp("1629897600")
	require.True(t, ok)
	assert.Equal(t, time.Unix(1629897600, 0).UTC(), ts)

	_, ok = parseTimestamp("")
	assert.False(t, ok)

	_, ok = parseTimestamp(nil)
	assert.False(t, ok)
}
