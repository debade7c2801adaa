package clickhouse

import "fmt"

// Candle tables by timeframe, relative to the database.
const (
	Candles1mTable = "candles_1m"
	Candles1hTable = "candles_1h"
	Candles1dTable = "candles_1d"
)

// Schema returns idempotent DDL for the candle tables and the performance ledger table.
func Schema(database, ledgerTable string) []string {
	stmts := []string{fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database)}
	for _, t := range []string{Candles1mTable, Candles1hTable, Candles1dTable} {
		stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    bucket DateTime,
    symbol LowCardinality(String),
    open Float64,
    high Float64,
    low Float64,
    close Float64,
    vol Float64
) ENGINE = ReplacingMergeTree
ORDER BY (symbol, bucket)`, database, t))
	}
	stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    id String,
    asset_id String,
    signal_ts DateTime64(3),
    score Float64,
    realized_return Float64,
    regime LowCardinality(String),
    strategy LowCardinality(String),
    recorded_at DateTime64(9)
) ENGINE = MergeTree
ORDER BY (recorded_at, id)`, database, ledgerTable))
	return stmts
}
