// Package ingest loads raw lending-protocol transaction logs.
//
// Exports from different indexers disagree on field names, so the loader
// sniffs the schema per file from a fixed candidate list and normalizes every
// record into a Transaction. Files are either a single JSON array of records
// or newline-delimited JSON; the loader tries the array form first and falls
// back to line-by-line decoding, skipping lines that fail to parse.
package ingest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

var (
	ErrNoWalletField    = errors.New("no wallet identifier field found")
	ErrNoTimestampField = errors.New("no timestamp field found")
	ErrNoRecords        = errors.New("no valid transaction records found")
)

// Transaction is a single normalized lending action.
type Transaction struct {
	Wallet    string
	Action    string // lowercased raw action, e.g. "deposit", "liquidationcall"
	Timestamp time.Time
	AmountUSD float64
	TxHash    string
}

// Schema records which source fields the loader resolved for this file.
type Schema struct {
	WalletField    string
	TimestampField string
	ActionField    string
	AmountField    string // "amount_usd" or "actionData"
}

// LoadStats summarizes a load for logging and the analysis report.
type LoadStats struct {
	TotalRecords   int // records seen (parsed JSON objects)
	Loaded         int // transactions produced
	BadLines       int // NDJSON lines that failed to parse
	SkippedRecords int // records missing wallet or timestamp
	Schema         Schema
}

// Candidate field names, in priority order. Matches the exports this tool
// has been run against (Aave V2 style plus generic indexer dumps).
var (
	walletFields    = []string{"userWallet", "user", "address", "userId"}
	timestampFields = []string{"timestamp", "block_timestamp", "createdAt"}
	actionFields    = []string{"action", "type"}
	txHashFields    = []string{"txHash", "tx_hash", "hash"}
)

// Load reads and normalizes a transaction log file.
func Load(path string, logger *slog.Logger) ([]Transaction, *LoadStats, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}

	records, badLines, err := decodeRecords(raw)
	if err != nil {
		return nil, nil, err
	}
	if badLines > 0 {
		logger.Warn("skipped unparseable lines", "file", path, "lines", badLines)
	}

	schema, err := sniffSchema(records)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	logger.Info("schema resolved",
		"wallet_field", schema.WalletField,
		"timestamp_field", schema.TimestampField,
		"action_field", schema.ActionField,
		"amount_field", schema.AmountField,
	)

	stats := &LoadStats{
		TotalRecords: len(records),
		BadLines:     badLines,
		Schema:       schema,
	}

	txs := make([]Transaction, 0, len(records))
	for _, rec := range records {
		tx, ok := normalize(rec, schema)
		if !ok {
			stats.SkippedRecords++
			continue
		}
		txs = append(txs, tx)
	}
	stats.Loaded = len(txs)

	if len(txs) == 0 {
		return nil, stats, fmt.Errorf("%s: %w", path, ErrNoRecords)
	}

	logger.Info("transactions loaded",
		"file", path,
		"records", stats.TotalRecords,
		"loaded", stats.Loaded,
		"skipped", stats.SkippedRecords,
	)
	return txs, stats, nil
}

// decodeRecords parses the whole file as a JSON array, falling back to
// newline-delimited JSON when that fails.
func decodeRecords(raw []byte) ([]map[string]any, int, error) {
	var records []map[string]any
	if err := json.Unmarshal(raw, &records); err == nil {
		return records, 0, nil
	}

	var badLines int
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal(line, &rec); err != nil {
			badLines++
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, badLines, fmt.Errorf("scan input: %w", err)
	}
	return records, badLines, nil
}

// sniffSchema resolves field names from the union of keys across all records.
// The first candidate present anywhere in the file wins.
func sniffSchema(records []map[string]any) (Schema, error) {
	keys := make(map[string]bool)
	for _, rec := range records {
		for k := range rec {
			keys[k] = true
		}
	}

	var s Schema
	s.WalletField = firstPresent(keys, walletFields)
	if s.WalletField == "" {
		return s, ErrNoWalletField
	}
	s.TimestampField = firstPresent(keys, timestampFields)
	if s.TimestampField == "" {
		return s, ErrNoTimestampField
	}
	s.ActionField = firstPresent(keys, actionFields)

	if keys["amount_usd"] {
		s.AmountField = "amount_usd"
	} else if keys["actionData"] {
		s.AmountField = "actionData"
	}
	return s, nil
}

func firstPresent(keys map[string]bool, candidates []string) string {
	for _, c := range candidates {
		if keys[c] {
			return c
		}
	}
	return ""
}

// normalize converts one raw record into a Transaction. Records with no
// resolvable wallet or timestamp are rejected; a missing action or amount
// degrades to the zero value (the features layer tolerates both).
func normalize(rec map[string]any, schema Schema) (Transaction, bool) {
	var tx Transaction

	wallet, ok := rec[schema.WalletField].(string)
	if !ok || strings.TrimSpace(wallet) == "" {
		return tx, false
	}
	tx.Wallet = NormalizeWallet(wallet)

	ts, ok := parseTimestamp(rec[schema.TimestampField])
	if !ok {
		return tx, false
	}
	tx.Timestamp = ts

	if schema.ActionField != "" {
		if a, ok := rec[schema.ActionField].(string); ok {
			tx.Action = strings.ToLower(strings.TrimSpace(a))
		}
	}

	tx.AmountUSD = parseAmountUSD(rec, schema)

	for _, f := range txHashFields {
		if h, ok := rec[f].(string); ok && h != "" {
			tx.TxHash = h
			break
		}
	}

	return tx, true
}

// NormalizeWallet lowercases valid hex addresses into canonical 0x form.
// Non-hex identifiers (e.g. opaque user IDs) are kept verbatim.
func NormalizeWallet(s string) string {
	s = strings.TrimSpace(s)
	if common.IsHexAddress(s) {
		return strings.ToLower(common.HexToAddress(s).Hex())
	}
	return s
}

// parseTimestamp accepts unix seconds, unix milliseconds, and a few common
// string layouts. Millisecond values are detected by magnitude.
func parseTimestamp(v any) (time.Time, bool) {
	switch t := v.(type) {
	case float64:
		return fromUnix(t), true
	case string:
		t = strings.TrimSpace(t)
		if t == "" {
			return time.Time{}, false
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts.UTC(), true
			}
		}
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return fromUnix(f), true
		}
	}
	return time.Time{}, false
}

func fromUnix(v float64) time.Time {
	// Values this large can only be milliseconds.
	if v >= 1e12 {
		return time.UnixMilli(int64(v)).UTC()
	}
	return time.Unix(int64(v), 0).UTC()
}

// parseAmountUSD extracts the USD-denominated amount. Raw token amounts in
// actionData are multiplied by assetPriceUSD (default 1 when absent).
// Amount strings are parsed exactly with decimal before the float conversion.
func parseAmountUSD(rec map[string]any, schema Schema) float64 {
	switch schema.AmountField {
	case "amount_usd":
		if d, ok := toDecimal(rec["amount_usd"]); ok {
			return d.InexactFloat64()
		}
	case "actionData":
		data, ok := rec["actionData"].(map[string]any)
		if !ok {
			return 0
		}
		amount, ok := toDecimal(data["amount"])
		if !ok {
			return 0
		}
		price := decimal.NewFromInt(1)
		if p, ok := toDecimal(data["assetPriceUSD"]); ok {
			price = p
		}
		return amount.Mul(price).InexactFloat64()
	}
	return 0
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	case float64:
		return decimal.NewFromFloat(n), true
	}
	return decimal.Decimal{}, false
}
