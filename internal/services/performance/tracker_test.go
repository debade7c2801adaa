package performance

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QuantLens/internal/domain/models"
	"QuantLens/pkg/logger"
)

var t0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func mustRecord(t *testing.T, asset string, day int, ret float64, regime models.RegimeLabel, strategy string) models.PerformanceRecord {
	t.Helper()
	rec, err := NewPerformanceRecord(asset, t0.AddDate(0, 0, day), 70, ret, regime, strategy)
	require.NoError(t, err)
	return rec
}

// seedTracker adds hits positive and misses negative outcomes for (strategy, regime).
func seedTracker(t *testing.T, tr *Tracker, strategy string, regime models.RegimeLabel, hits, misses int) {
	t.Helper()
	for i := 0; i < hits; i++ {
		tr.AddRecord(mustRecord(t, "AAA", i, 0.02, regime, strategy))
	}
	for i := 0; i < misses; i++ {
		tr.AddRecord(mustRecord(t, "BBB", hits+i, -0.01, regime, strategy))
	}
}

func TestNewPerformanceRecord_Validation(t *testing.T) {
	tests := []struct {
		name     string
		asset    string
		strategy string
		score    float64
		ret      float64
		regime   models.RegimeLabel
	}{
		{"empty asset", " ", "momentum", 50, 0.1, models.RiskOn},
		{"empty strategy", "AAPL", "", 50, 0.1, models.RiskOn},
		{"nan return", "AAPL", "momentum", 50, math.NaN(), models.RiskOn},
		{"inf score", "AAPL", "momentum", math.Inf(1), 0.1, models.RiskOn},
		{"bad regime", "AAPL", "momentum", 50, 0.1, models.RegimeLabel(7)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPerformanceRecord(tt.asset, t0, tt.score, tt.ret, tt.regime, tt.strategy)
			assert.ErrorIs(t, err, ErrInvalidRecord)
		})
	}

	rec, err := NewPerformanceRecord("AAPL", t0, 80, 0.05, models.RiskOn, "momentum")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "AAPL", rec.AssetID)
}

func TestAnalyzePerformanceByRegime_HitRate(t *testing.T) {
	tr := NewTracker()
	seedTracker(t, tr, "momentum", models.RiskOn, 15, 5)
	seedTracker(t, tr, "momentum", models.RiskOff, 1, 3)
	seedTracker(t, tr, "value", models.RiskOn, 2, 0)

	stats := tr.AnalyzePerformanceByRegime("momentum")
	require.Len(t, stats, 2)
	on := stats[models.RiskOn]
	assert.Equal(t, 20, on.Count)
	assert.Equal(t, 15, on.Hits)
	assert.InDelta(t, 0.75, on.HitRate, 1e-12)
	assert.InDelta(t, (15*0.02-5*0.01)/20, on.MeanReturn, 1e-12)
	assert.InDelta(t, 0.25, stats[models.RiskOff].HitRate, 1e-12)

	assert.Empty(t, tr.AnalyzePerformanceByRegime("unknown"))
	assert.Equal(t, []string{"momentum", "value"}, tr.Strategies())
}

func TestTracker_RecordsIsCopy(t *testing.T) {
	tr := NewTracker()
	seedTracker(t, tr, "momentum", models.RiskOn, 2, 0)
	recs := tr.Records()
	recs[0].RealizedReturn = -99
	assert.Equal(t, 0.02, tr.Records()[0].RealizedReturn)
	assert.Equal(t, 2, tr.Len())
}

func TestTracker_CapacityEvictsOldest(t *testing.T) {
	tr := NewTrackerWithCapacity(3)
	var ids []string
	for i := 0; i < 5; i++ {
		rec := mustRecord(t, "AAA", i, 0.01, models.Neutral, "s")
		ids = append(ids, rec.ID)
		tr.AddRecord(rec)
	}
	require.Equal(t, 3, tr.Len())
	recs := tr.Records()
	assert.Equal(t, ids[2:], []string{recs[0].ID, recs[1].ID, recs[2].ID})
}

func TestAdjustScoreAdaptively_EmptyLedgerIsIdentity(t *testing.T) {
	res := AdjustScoreAdaptively(62.5, "momentum", models.RiskOn, t0, NewTracker(), DefaultAdaptiveConfig())
	assert.Equal(t, 62.5, res.AdjustedScore)
	assert.Equal(t, 1.0, res.Multiplier)
	assert.Equal(t, 0, res.SampleSize)

	res = AdjustScoreAdaptively(62.5, "momentum", models.RiskOn, t0, nil, DefaultAdaptiveConfig())
	assert.Equal(t, 62.5, res.AdjustedScore)
}

func TestAdjustScoreAdaptively_Direction(t *testing.T) {
	cfg := DefaultAdaptiveConfig()
	asOf := t0.AddDate(1, 0, 0)

	good := NewTracker()
	seedTracker(t, good, "momentum", models.RiskOn, 15, 5)
	up := AdjustScoreAdaptively(60, "momentum", models.RiskOn, asOf, good, cfg)
	assert.Greater(t, up.Multiplier, 1.0)
	assert.InDelta(t, 1.25, up.Multiplier, 1e-12)
	assert.InDelta(t, 75, up.AdjustedScore, 1e-9)
	assert.Equal(t, 20, up.SampleSize)

	bad := NewTracker()
	seedTracker(t, bad, "momentum", models.RiskOn, 5, 15)
	down := AdjustScoreAdaptively(60, "momentum", models.RiskOn, asOf, bad, cfg)
	assert.Less(t, down.Multiplier, 1.0)
	assert.InDelta(t, 45, down.AdjustedScore, 1e-9)

	other := AdjustScoreAdaptively(60, "momentum", models.RiskOff, asOf, good, cfg)
	assert.Equal(t, 1.0, other.Multiplier)
}

func TestAdjustScoreAdaptively_ClampsAndAsOf(t *testing.T) {
	tr := NewTracker()
	seedTracker(t, tr, "momentum", models.RiskOn, 10, 0)
	cfg := DefaultAdaptiveConfig()
	cfg.Sensitivity = 4

	res := AdjustScoreAdaptively(90, "momentum", models.RiskOn, t0.AddDate(0, 1, 0), tr, cfg)
	assert.Equal(t, 1.5, res.Multiplier)
	assert.Equal(t, 100.0, res.AdjustedScore)

	// only the first three records are visible at day 2
	res = AdjustScoreAdaptively(50, "momentum", models.RiskOn, t0.AddDate(0, 0, 2), tr, DefaultAdaptiveConfig())
	assert.Equal(t, 3, res.SampleSize)
}

func TestAdjustScoreAdaptively_ZeroConfigUsesDefaults(t *testing.T) {
	tr := NewTracker()
	seedTracker(t, tr, "momentum", models.RiskOn, 15, 5)
	asOf := t0.AddDate(1, 0, 0)

	zero := AdjustScoreAdaptively(60, "momentum", models.RiskOn, asOf, tr, AdaptiveConfig{})
	def := AdjustScoreAdaptively(60, "momentum", models.RiskOn, asOf, tr, DefaultAdaptiveConfig())
	assert.Greater(t, zero.Multiplier, 0.0)
	assert.Equal(t, def, zero)

	// an inverted band falls back to the default band
	res := AdjustScoreAdaptively(60, "momentum", models.RiskOn, asOf, tr, AdaptiveConfig{Sensitivity: 4, MinMultiplier: 2, MaxMultiplier: 1})
	assert.Equal(t, 1.5, res.Multiplier)
	assert.Equal(t, 90.0, res.AdjustedScore)
}

func TestAdjustScoreAdaptively_Decay(t *testing.T) {
	tr := NewTracker()
	// an old miss and a recent hit
	tr.AddRecord(mustRecord(t, "AAA", 0, -0.05, models.Neutral, "s"))
	tr.AddRecord(mustRecord(t, "AAA", 30, 0.05, models.Neutral, "s"))

	cfg := DefaultAdaptiveConfig()
	asOf := t0.AddDate(0, 0, 30)
	flat := AdjustScoreAdaptively(50, "s", models.Neutral, asOf, tr, cfg)
	assert.InDelta(t, 0.5, flat.HitRate, 1e-12)

	cfg.HalfLife = 30 * 24 * time.Hour
	decayed := AdjustScoreAdaptively(50, "s", models.Neutral, asOf, tr, cfg)
	assert.InDelta(t, 1/1.5, decayed.HitRate, 1e-12)
	assert.Greater(t, decayed.Multiplier, 1.0)
}

func TestAdjustScoresBatch_DoesNotMutate(t *testing.T) {
	tr := NewTracker()
	seedTracker(t, tr, "momentum", models.RiskOn, 15, 5)
	assets := []models.Asset{{Ticker: "AAA", QuantScore: 60}, {Ticker: "BBB", QuantScore: 80}}

	out := AdjustScoresBatch(assets, "momentum", models.RiskOn, t0.AddDate(1, 0, 0), tr, DefaultAdaptiveConfig())
	require.Len(t, out, 2)
	assert.Equal(t, 60.0, assets[0].QuantScore)
	assert.Equal(t, 60.0, out[0].BaseScore)
	assert.InDelta(t, 75, out[0].QuantScore, 1e-9)
	assert.InDelta(t, 100, out[1].QuantScore, 1e-9)
}

type stubStore struct {
	records []models.PerformanceRecord
	err     error
	saved   []models.PerformanceRecord
}

func (s *stubStore) Load(context.Context) ([]models.PerformanceRecord, error) { return s.records, s.err }
func (s *stubStore) Save(_ context.Context, r []models.PerformanceRecord) error {
	s.saved = r
	return nil
}
func (s *stubStore) Append(context.Context, models.PerformanceRecord) error { return nil }
func (s *stubStore) Backend() string                                        { return "stub" }

func TestLoadTracker(t *testing.T) {
	ctx := context.Background()
	l := logger.Nop()

	tr := LoadTracker(ctx, &stubStore{err: errors.New("connection refused")}, l, 0)
	require.NotNil(t, tr)
	assert.Equal(t, 0, tr.Len())

	tr = LoadTracker(ctx, &stubStore{}, l, 0)
	assert.Equal(t, 0, tr.Len())

	tr = LoadTracker(ctx, nil, nil, 0)
	assert.Equal(t, 0, tr.Len())

	good := mustRecord(t, "AAA", 0, 0.1, models.RiskOn, "s")
	bad := good
	bad.AssetID = ""
	store := &stubStore{records: []models.PerformanceRecord{good, bad}}
	tr = LoadTracker(ctx, store, l, 0)
	assert.Equal(t, 1, tr.Len())

	require.NoError(t, SaveTracker(ctx, store, tr))
	assert.Equal(t, tr.Records(), store.saved)
}
