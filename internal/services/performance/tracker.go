package performance

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"QuantLens/internal/domain/models"
)

// ErrInvalidRecord is returned for records missing identity or carrying non-finite numbers.
var ErrInvalidRecord = errors.New("performance: invalid record")

// NewPerformanceRecord validates the inputs and assigns a fresh identifier.
func NewPerformanceRecord(assetID string, signalTs time.Time, scoreAtSignal, realizedReturn float64, regime models.RegimeLabel, strategy string) (models.PerformanceRecord, error) {
	rec := models.PerformanceRecord{
		ID:              uuid.NewString(),
		AssetID:         strings.TrimSpace(assetID),
		SignalTimestamp: signalTs,
		ScoreAtSignal:   scoreAtSignal,
		RealizedReturn:  realizedReturn,
		Regime:          regime,
		StrategyID:      strings.TrimSpace(strategy),
	}
	if err := ValidateRecord(rec); err != nil {
		return models.PerformanceRecord{}, err
	}
	return rec, nil
}

// ValidateRecord checks the invariants every ledger entry must satisfy.
func ValidateRecord(rec models.PerformanceRecord) error {
	switch {
	case rec.AssetID == "":
		return fmt.Errorf("asset id is empty: %w", ErrInvalidRecord)
	case rec.StrategyID == "":
		return fmt.Errorf("strategy is empty: %w", ErrInvalidRecord)
	case !rec.Regime.Valid():
		return fmt.Errorf("regime %d is unknown: %w", int(rec.Regime), ErrInvalidRecord)
	case !finite(rec.ScoreAtSignal) || !finite(rec.RealizedReturn):
		return fmt.Errorf("non-finite score or return: %w", ErrInvalidRecord)
	}
	return nil
}

// Tracker is the append-only performance ledger. It is owned by one session and is not safe
// for concurrent use. With a positive capacity the oldest records are evicted first.
type Tracker struct {
	records  []models.PerformanceRecord
	capacity int
}

// NewTracker returns an empty, unbounded tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// NewTrackerWithCapacity returns an empty tracker that keeps at most capacity records.
// capacity <= 0 means unbounded.
func NewTrackerWithCapacity(capacity int) *Tracker {
	if capacity < 0 {
		capacity = 0
	}
	return &Tracker{capacity: capacity}
}

// Capacity returns the eviction limit, 0 when unbounded.
func (t *Tracker) Capacity() int { return t.capacity }

// AddRecord appends rec, evicting the oldest record when over capacity.
func (t *Tracker) AddRecord(rec models.PerformanceRecord) {
	t.records = append(t.records, rec)
	t.evict()
}

// Restore appends records in order, typically from a LedgerStore.
func (t *Tracker) Restore(records []models.PerformanceRecord) {
	t.records = append(t.records, records...)
	t.evict()
}

func (t *Tracker) evict() {
	if t.capacity <= 0 || len(t.records) <= t.capacity {
		return
	}
	drop := len(t.records) - t.capacity
	kept := make([]models.PerformanceRecord, t.capacity)
	copy(kept, t.records[drop:])
	t.records = kept
}

// Len returns the number of records held.
func (t *Tracker) Len() int { return len(t.records) }

// Records returns a copy of the ledger in append order.
func (t *Tracker) Records() []models.PerformanceRecord {
	out := make([]models.PerformanceRecord, len(t.records))
	copy(out, t.records)
	return out
}

// Matching returns copies of records for (strategy, regime) signalled at or before asOf.
// A zero asOf disables the time filter.
func (t *Tracker) Matching(strategy string, regime models.RegimeLabel, asOf time.Time) []models.PerformanceRecord {
	var out []models.PerformanceRecord
	for _, r := range t.records {
		if r.StrategyID != strategy || r.Regime != regime {
			continue
		}
		if !asOf.IsZero() && r.SignalTimestamp.After(asOf) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// AnalyzePerformanceByRegime groups the strategy's records by regime.
// A hit is a record with a positive realized return.
func (t *Tracker) AnalyzePerformanceByRegime(strategy string) map[models.RegimeLabel]models.RegimeStats {
	type acc struct {
		count, hits int
		sum         float64
	}
	groups := make(map[models.RegimeLabel]*acc)
	for _, r := range t.records {
		if r.StrategyID != strategy {
			continue
		}
		a, ok := groups[r.Regime]
		if !ok {
			a = &acc{}
			groups[r.Regime] = a
		}
		a.count++
		a.sum += r.RealizedReturn
		if r.Hit() {
			a.hits++
		}
	}
	out := make(map[models.RegimeLabel]models.RegimeStats, len(groups))
	for regime, a := range groups {
		out[regime] = models.RegimeStats{
			Count:      a.count,
			Hits:       a.hits,
			HitRate:    float64(a.hits) / float64(a.count),
			MeanReturn: a.sum / float64(a.count),
		}
	}
	return out
}

// Strategies lists distinct strategy identifiers in first-seen order.
func (t *Tracker) Strategies() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range t.records {
		if !seen[r.StrategyID] {
			seen[r.StrategyID] = true
			out = append(out, r.StrategyID)
		}
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
