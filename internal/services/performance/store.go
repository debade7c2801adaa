package performance

import (
	"context"

	"QuantLens/internal/domain/repository"
	"QuantLens/pkg/logger"
)

// LoadTracker restores the ledger from store. Any failure yields an empty tracker and a warning.
func LoadTracker(ctx context.Context, store repository.LedgerStore, l *logger.Logger, capacity int) *Tracker {
	t := NewTrackerWithCapacity(capacity)
	if store == nil {
		return t
	}
	records, err := store.Load(ctx)
	if err != nil {
		if l != nil {
			l.Warn("load performance ledger failed, starting empty",
				logger.String("backend", store.Backend()),
				logger.Error(err),
			)
		}
		return t
	}
	valid := records[:0:0]
	for _, r := range records {
		if err := ValidateRecord(r); err != nil {
			if l != nil {
				l.Warn("dropping invalid ledger record", logger.String("id", r.ID), logger.Error(err))
			}
			continue
		}
		valid = append(valid, r)
	}
	t.Restore(valid)
	if l != nil {
		l.Info("performance ledger loaded",
			logger.String("backend", store.Backend()),
			logger.Int("records", t.Len()),
		)
	}
	return t
}

// SaveTracker writes the full ledger to store.
func SaveTracker(ctx context.Context, store repository.LedgerStore, t *Tracker) error {
	if store == nil || t == nil {
		return nil
	}
	return store.Save(ctx, t.Records())
}
