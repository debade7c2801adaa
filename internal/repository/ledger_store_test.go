package repository

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QuantLens/internal/domain/models"
)

func sampleRecords() []models.PerformanceRecord {
	ts := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)
	return []models.PerformanceRecord{
		{ID: "r1", AssetID: "AAPL", SignalTimestamp: ts, ScoreAtSignal: 72, RealizedReturn: 0.04, Regime: models.RiskOn, StrategyID: "momentum"},
		{ID: "r2", AssetID: "MSFT", SignalTimestamp: ts.Add(time.Hour), ScoreAtSignal: 55, RealizedReturn: -0.01, Regime: models.Neutral, StrategyID: "momentum"},
	}
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestRedisLedgerStore_Load(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisLedgerStore(db, "ql:ledger", 0, nil)
	recs := sampleRecords()

	mock.ExpectLRange("ql:ledger", 0, -1).SetVal([]string{
		string(mustJSON(t, recs[0])),
		"{not json",
		string(mustJSON(t, recs[1])),
	})

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, recs, got)
	assert.Equal(t, models.RiskOn, got[0].Regime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLedgerStore_LoadError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisLedgerStore(db, "ql:ledger", 0, nil)

	mock.ExpectLRange("ql:ledger", 0, -1).SetErr(errors.New("conn refused"))

	_, err := store.Load(context.Background())
	assert.ErrorContains(t, err, "redis ledger load")
}

func TestRedisLedgerStore_Save(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisLedgerStore(db, "ql:ledger", 0, nil)
	recs := sampleRecords()

	mock.ExpectTxPipeline()
	mock.ExpectDel("ql:ledger").SetVal(1)
	mock.ExpectRPush("ql:ledger", mustJSON(t, recs[0]), mustJSON(t, recs[1])).SetVal(2)
	mock.ExpectTxPipelineExec()

	require.NoError(t, store.Save(context.Background(), recs))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLedgerStore_SaveEmptyOnlyDeletes(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisLedgerStore(db, "ql:ledger", 10, nil)

	mock.ExpectTxPipeline()
	mock.ExpectDel("ql:ledger").SetVal(1)
	mock.ExpectTxPipelineExec()

	require.NoError(t, store.Save(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLedgerStore_AppendTrims(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisLedgerStore(db, "ql:ledger", 100, nil)
	rec := sampleRecords()[0]

	mock.ExpectTxPipeline()
	mock.ExpectRPush("ql:ledger", mustJSON(t, rec)).SetVal(101)
	mock.ExpectLTrim("ql:ledger", -100, -1).SetVal("OK")
	mock.ExpectTxPipelineExec()

	require.NoError(t, store.Append(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, "redis", store.Backend())
}

func newSQLMock(t *testing.T) (*CHLedgerStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := newCHLedgerStore(db, "quantlens.performance_ledger", nil)
	store.now = func() time.Time { return time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC) }
	return store, mock
}

func TestCHLedgerStore_Load(t *testing.T) {
	store, mock := newSQLMock(t)
	recs := sampleRecords()

	rows := sqlmock.NewRows([]string{"id", "asset_id", "signal_ts", "score", "realized_return", "regime", "strategy"}).
		AddRow(recs[0].ID, recs[0].AssetID, recs[0].SignalTimestamp, recs[0].ScoreAtSignal, recs[0].RealizedReturn, "risk_on", recs[0].StrategyID).
		AddRow("bad", "X", recs[0].SignalTimestamp, 1.0, 1.0, "sideways", "momentum").
		AddRow(recs[1].ID, recs[1].AssetID, recs[1].SignalTimestamp, recs[1].ScoreAtSignal, recs[1].RealizedReturn, "neutral", recs[1].StrategyID)
	mock.ExpectQuery(regexp.QuoteMeta("FROM quantlens.performance_ledger")).WillReturnRows(rows)

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, recs, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCHLedgerStore_Save(t *testing.T) {
	store, mock := newSQLMock(t)
	recs := sampleRecords()
	base := store.now()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO quantlens.performance_ledger"))
	for i, r := range recs {
		prep.ExpectExec().
			WithArgs(r.ID, r.AssetID, r.SignalTimestamp, r.ScoreAtSignal, r.RealizedReturn, r.Regime.String(), r.StrategyID, base.Add(time.Duration(i))).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()
	mock.ExpectExec(regexp.QuoteMeta("ALTER TABLE quantlens.performance_ledger DELETE WHERE recorded_at < ?")).
		WithArgs(base).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Save(context.Background(), recs))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCHLedgerStore_SaveEmptyClearsLedger(t *testing.T) {
	store, mock := newSQLMock(t)

	mock.ExpectExec(regexp.QuoteMeta("ALTER TABLE quantlens.performance_ledger DELETE WHERE recorded_at < ?")).
		WithArgs(store.now()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, store.Save(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCHLedgerStore_SaveKeepsPreviousRowsOnInsertError(t *testing.T) {
	store, mock := newSQLMock(t)
	recs := sampleRecords()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO")
	prep.ExpectExec().WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	err := store.Save(context.Background(), recs)
	assert.ErrorContains(t, err, "clickhouse ledger insert r1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	// No DELETE or TRUNCATE was issued, so the stored ledger is untouched.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCHLedgerStore_SaveKeepsPreviousRowsOnCommitError(t *testing.T) {
	store, mock := newSQLMock(t)
	recs := sampleRecords()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO")
	for range recs {
		prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit().WillReturnError(errors.New("too many parts"))

	err := store.Save(context.Background(), recs)
	assert.ErrorContains(t, err, "clickhouse ledger commit")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCHLedgerStore_Append(t *testing.T) {
	store, mock := newSQLMock(t)
	rec := sampleRecords()[0]

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO quantlens.performance_ledger")).
		WithArgs(rec.ID, rec.AssetID, rec.SignalTimestamp, rec.ScoreAtSignal, rec.RealizedReturn, "risk_on", rec.StrategyID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Append(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, "clickhouse", store.Backend())
}

func TestMemoryLedgerStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryLedgerStore()
	recs := sampleRecords()

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, store.Save(ctx, recs[:1]))
	require.NoError(t, store.Append(ctx, recs[1]))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, recs, got)

	got[0].ID = "mutated"
	again, _ := store.Load(ctx)
	assert.Equal(t, "r1", again[0].ID)
}
