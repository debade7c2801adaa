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

// CHLedgerStore keeps the performance ledger in a ClickHouse MergeTree table.
// recorded_at preserves append order across Save and Append.
type CHLedgerStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
	now   func() time.Time
}

var _ domrepo.LedgerStore = (*CHLedgerStore)(nil)

func NewCHLedgerStore(ch *pkgch.Client, table string, l *applogger.Logger) *CHLedgerStore {
	return newCHLedgerStore(ch.DB(), ch.Database()+"."+table, l)
}

func newCHLedgerStore(db *sql.DB, table string, l *applogger.Logger) *CHLedgerStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHLedgerStore{db: db, table: table, l: l, now: time.Now}
}

func (s *CHLedgerStore) Backend() string { return "clickhouse" }

func (s *CHLedgerStore) Load(ctx context.Context) ([]models.PerformanceRecord, error) {
	q := fmt.Sprintf(`SELECT id, asset_id, signal_ts, score, realized_return, regime, strategy
FROM %s
ORDER BY recorded_at ASC, id ASC`, s.table)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("clickhouse ledger load: %w", err)
	}
	defer rows.Close()

	var out []models.PerformanceRecord
	for rows.Next() {
		var (
			rec    models.PerformanceRecord
			regime string
		)
		if err := rows.Scan(&rec.ID, &rec.AssetID, &rec.SignalTimestamp, &rec.ScoreAtSignal, &rec.RealizedReturn, &regime, &rec.StrategyID); err != nil {
			return nil, fmt.Errorf("clickhouse ledger scan: %w", err)
		}
		label, err := models.ParseRegimeLabel(regime)
		if err != nil {
			s.l.Warn("skipping ledger row with unknown regime", applogger.String("id", rec.ID), applogger.String("regime", regime))
			continue
		}
		rec.Regime = label
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("clickhouse ledger rows: %w", err)
	}
	return out, nil
}

// Save replaces the ledger with records. The new rows are committed first and
// rows recorded before them are deleted afterwards, so a failed insert leaves the
// previous ledger intact.
func (s *CHLedgerStore) Save(ctx context.Context, records []models.PerformanceRecord) error {
	base := s.now().UTC()
	if len(records) > 0 {
		if err := s.insertBatch(ctx, records, base); err != nil {
			return err
		}
	}
	q := fmt.Sprintf("ALTER TABLE %s DELETE WHERE recorded_at < ?", s.table)
	if _, err := s.db.ExecContext(ctx, q, base); err != nil {
		return fmt.Errorf("clickhouse ledger prune: %w", err)
	}
	return nil
}

func (s *CHLedgerStore) insertBatch(ctx context.Context, records []models.PerformanceRecord, base time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("clickhouse ledger begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, s.insertSQL())
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clickhouse ledger prepare: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		if _, err := stmt.ExecContext(ctx, s.args(rec, base.Add(time.Duration(i)))...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("clickhouse ledger insert %s: %w", rec.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("clickhouse ledger commit: %w", err)
	}
	return nil
}

func (s *CHLedgerStore) Append(ctx context.Context, rec models.PerformanceRecord) error {
	if _, err := s.db.ExecContext(ctx, s.insertSQL(), s.args(rec, s.now().UTC())...); err != nil {
		return fmt.Errorf("clickhouse ledger append: %w", err)
	}
	return nil
}

func (s *CHLedgerStore) insertSQL() string {
	return fmt.Sprintf(`INSERT INTO %s (id, asset_id, signal_ts, score, realized_return, regime, strategy, recorded_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
}

func (s *CHLedgerStore) args(rec models.PerformanceRecord, recordedAt time.Time) []interface{} {
	return []interface{}{
		rec.ID,
		rec.AssetID,
		rec.SignalTimestamp.UTC(),
		rec.ScoreAtSignal,
		rec.RealizedReturn,
		rec.Regime.String(),
		rec.StrategyID,
		recordedAt,
	}
}
