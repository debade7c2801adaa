package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domrepo "QuantLens/internal/domain/repository"
	pkgch "QuantLens/pkg/clickhouse"
)

var candleCols = []string{"bucket", "symbol", "open", "high", "low", "close", "vol"}

func newMarketData(t *testing.T) (*CHMarketData, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewCHMarketData(pkgch.NewClientWithDB(db, "quantlens"), nil), mock
}

func TestCHMarketData_GetLatestNCandlesAscending(t *testing.T) {
	md, mock := newMarketData(t)
	t0 := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(candleCols).
		AddRow(t0.Add(48*time.Hour), "SPY", 472.0, 475.0, 470.0, 474.0, 1.2e6).
		AddRow(t0.Add(24*time.Hour), "SPY", 470.0, 473.0, 468.0, 472.0, 1.1e6).
		AddRow(t0, "SPY", 468.0, 471.0, 466.0, 470.0, 1.0e6)
	mock.ExpectQuery(regexp.QuoteMeta("FROM quantlens.candles_1d")).
		WithArgs("SPY", 3).
		WillReturnRows(rows)

	got, err := md.GetLatestNCandles(context.Background(), "SPY", 3, domrepo.TF1d)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, t0, got[0].Bucket)
	assert.Equal(t, 474.0, got[2].Close)
	assert.Equal(t, 1.0e6, got[0].Volume)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCHMarketData_GetCandles(t *testing.T) {
	md, mock := newMarketData(t)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(2 * time.Hour)

	rows := sqlmock.NewRows(candleCols).
		AddRow(from, "QQQ", 400.0, 401.0, 399.0, 400.5, 5000.0)
	mock.ExpectQuery(regexp.QuoteMeta("FROM quantlens.candles_1m")).
		WithArgs("QQQ", from, to).
		WillReturnRows(rows)

	got, err := md.GetCandles(context.Background(), "QQQ", from, to, domrepo.TF5m)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, "QQQ", got[0].Symbol)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCHMarketData_Errors(t *testing.T) {
	md, _ := newMarketData(t)

	_, err := md.GetLatestNCandles(context.Background(), "SPY", 0, domrepo.TF1d)
	assert.Error(t, err)

	_, err = md.GetCandles(context.Background(), "SPY", time.Now(), time.Now(), domrepo.Timeframe("1w"))
	assert.ErrorContains(t, err, "unsupported timeframe")
}
