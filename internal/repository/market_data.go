package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"QuantLens/internal/domain/models"
	domrepo "QuantLens/internal/domain/repository"
	pkgch "QuantLens/pkg/clickhouse"
	applogger "QuantLens/pkg/logger"
)

// CHMarketData implements MarketDataProvider backed by ClickHouse candle tables.
type CHMarketData struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

var _ domrepo.MarketDataProvider = (*CHMarketData)(nil)

func NewCHMarketData(ch *pkgch.Client, l *applogger.Logger) *CHMarketData {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHMarketData{db: ch.DB(), database: ch.Database(), l: l}
}

func (s *CHMarketData) GetCandles(ctx context.Context, symbol string, from, to time.Time, tf domrepo.Timeframe) ([]models.Candle, error) {
	table, err := s.tableForTF(tf)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT bucket, symbol, open, high, low, close, vol
FROM %s
WHERE symbol = ? AND bucket >= ? AND bucket <= ?
ORDER BY bucket ASC`, table)

	start := time.Now()
	out, err := s.query(ctx, q, 256, symbol, from, to)
	if err != nil {
		s.l.Error("clickhouse get_candles failed",
			applogger.String("table", table),
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("get candles: %w", err)
	}
	s.l.Debug("clickhouse get_candles ok",
		applogger.String("table", table),
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

// GetLatestNCandles returns up to n most recent candles in ascending time order.
func (s *CHMarketData) GetLatestNCandles(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Candle, error) {
	if n <= 0 {
		return nil, fmt.Errorf("get latest candles: n must be positive, got %d", n)
	}
	table, err := s.tableForTF(tf)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT bucket, symbol, open, high, low, close, vol
FROM %s
WHERE symbol = ?
ORDER BY bucket DESC
LIMIT ?`, table)

	start := time.Now()
	out, err := s.query(ctx, q, n, symbol, n)
	if err != nil {
		s.l.Error("clickhouse latest_candles failed",
			applogger.String("table", table),
			applogger.String("symbol", symbol),
			applogger.Int("limit", n),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("get latest candles: %w", err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	s.l.Debug("clickhouse latest_candles ok",
		applogger.String("table", table),
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (s *CHMarketData) query(ctx context.Context, q string, capHint int, args ...interface{}) ([]models.Candle, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Candle, 0, capHint)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Bucket, &c.Symbol, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHMarketData) tableForTF(tf domrepo.Timeframe) (string, error) {
	var t string
	switch tf {
	case domrepo.TF1m, domrepo.TF5m:
		// 5m folds to 1m; callers aggregate in memory when they need it
		t = pkgch.Candles1mTable
	case domrepo.TF1h:
		t = pkgch.Candles1hTable
	case domrepo.TF1d:
		t = pkgch.Candles1dTable
	default:
		return "", fmt.Errorf("unsupported timeframe: %s", tf)
	}
	return s.database + "." + t, nil
}
