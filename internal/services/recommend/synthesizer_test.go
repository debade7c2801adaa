package recommend

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QuantLens/internal/domain/models"
)

var now = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func newTestSynth() *Synthesizer {
	n := 0
	return NewSynthesizer(DefaultConfig(),
		WithClock(func() time.Time { return now }),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("rec-%d", n) }),
	)
}

func regimePtr(r models.RegimeLabel) *models.RegimeLabel { return &r }

func byType(recs []models.Recommendation, typ string) []models.Recommendation {
	var out []models.Recommendation
	for _, r := range recs {
		if r.Type == typ {
			out = append(out, r)
		}
	}
	return out
}

func TestGenerateRecommendations_EmptyInput(t *testing.T) {
	recs := newTestSynth().GenerateRecommendations(models.Portfolio{}, models.RecommendationInput{}, nil)
	require.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestRebalance_Boundary(t *testing.T) {
	tests := []struct {
		name    string
		current float64
		target  float64
		fires   bool
		level   int
	}{
		{"below threshold", 0.30, 0.349, false, 0},
		{"at threshold", 0.30, 0.35, true, models.PriorityMedium.Level},
		{"overweight", 0.25, 0.20, true, models.PriorityMedium.Level},
		{"exactly high edge", 0.30, 0.40, true, models.PriorityMedium.Level},
		{"above high", 0.30, 0.42, true, models.PriorityHigh.Level},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := models.Portfolio{TotalValue: 100000, Positions: []models.Position{
				{Ticker: "AAA", Sector: "Tech", CurrentWeight: tt.current, TargetWeight: tt.target},
			}}
			recs := byType(newTestSynth().GenerateRecommendations(p, models.RecommendationInput{}, nil), models.RecRebalance)
			if !tt.fires {
				assert.Empty(t, recs)
				return
			}
			require.Len(t, recs, 1)
			assert.Equal(t, tt.level, recs[0].Priority.Level)
			require.NotNil(t, recs[0].Amount)
			assert.InDelta(t, (tt.target-tt.current)*100000, *recs[0].Amount, 0.01)
		})
	}
}

func TestRiskWarning(t *testing.T) {
	p := models.Portfolio{TotalValue: 1, Positions: []models.Position{
		{Ticker: "A", Sector: "S1", CurrentWeight: 0.25, TargetWeight: 0.25},
		{Ticker: "B", Sector: "S2", CurrentWeight: 0.20, TargetWeight: 0.20},
		{Ticker: "C", Sector: "S3", CurrentWeight: 0.20, TargetWeight: 0.20},
		{Ticker: "D", Sector: "S4", CurrentWeight: 0.35, TargetWeight: 0.35},
	}}
	recs := newTestSynth().GenerateRecommendations(p, models.RecommendationInput{MarketVolatility: 35}, nil)
	warnings := byType(recs, models.RecRiskWarning)
	require.Len(t, warnings, 2)
	assert.Equal(t, models.PriorityCritical, recs[0].Priority)
	assert.Equal(t, "Market volatility spike", recs[0].Title)

	calm := newTestSynth().GenerateRecommendations(p, models.RecommendationInput{MarketVolatility: 30}, nil)
	require.Len(t, byType(calm, models.RecRiskWarning), 1)
}

func TestBuyOpportunity_TopThreeUnheld(t *testing.T) {
	p := models.Portfolio{TotalValue: 1, Positions: []models.Position{
		{Ticker: "HELD", Sector: "Tech", CurrentWeight: 0.1, TargetWeight: 0.1},
	}}
	input := models.RecommendationInput{Assets: []models.Asset{
		{Ticker: "HELD", QuantScore: 99},
		{Ticker: "A", QuantScore: 71},
		{Ticker: "B", QuantScore: 90},
		{Ticker: "C", QuantScore: 70},
		{Ticker: "D", QuantScore: 85},
		{Ticker: "E", QuantScore: 80},
	}}
	buys := byType(newTestSynth().GenerateRecommendations(p, input, nil), models.RecBuyOpportunity)
	require.Len(t, buys, 3)
	assert.Equal(t, []string{"B", "D", "E"}, []string{buys[0].Ticker, buys[1].Ticker, buys[2].Ticker})
	assert.InDelta(t, 0.9, buys[0].Confidence, 1e-12)
	assert.Equal(t, models.PriorityMedium, buys[0].Priority)
}

func TestSellAlert(t *testing.T) {
	weak := 35.0
	p := models.Portfolio{TotalValue: 1, Positions: []models.Position{
		{Ticker: "LOSER", Sector: "A", CurrentWeight: 0.1, TargetWeight: 0.1},
		{Ticker: "WEAK", Sector: "B", CurrentWeight: 0.1, TargetWeight: 0.1, QuantScore: &weak},
		{Ticker: "FINE", Sector: "C", CurrentWeight: 0.1, TargetWeight: 0.1},
		{Ticker: "UNIV", Sector: "D", CurrentWeight: 0.1, TargetWeight: 0.1},
	}}
	input := models.RecommendationInput{Assets: []models.Asset{
		{Ticker: "FINE", QuantScore: 65},
		{Ticker: "UNIV", QuantScore: 20},
	}}
	history := models.HistoricalPerformance{"LOSER": {Return60D: -20}, "FINE": {Return60D: -15}}

	sells := byType(newTestSynth().GenerateRecommendations(p, input, history), models.RecSellAlert)
	require.Len(t, sells, 3)
	assert.Equal(t, "LOSER", sells[0].Ticker)
	assert.Equal(t, models.PriorityHigh, sells[0].Priority)
	assert.Equal(t, "WEAK", sells[1].Ticker)
	assert.Equal(t, models.PriorityMedium, sells[1].Priority)
	assert.Equal(t, "UNIV", sells[2].Ticker)
}

func TestDiversification(t *testing.T) {
	p := models.Portfolio{TotalValue: 1, Positions: []models.Position{
		{Ticker: "A", Sector: "Tech", CurrentWeight: 0.2, TargetWeight: 0.2},
		{Ticker: "B", Sector: "Tech", CurrentWeight: 0.2, TargetWeight: 0.2},
		{Ticker: "C", Sector: "Energy", CurrentWeight: 0.35, TargetWeight: 0.35},
		{Ticker: "D", Sector: "Health", CurrentWeight: 0.25, TargetWeight: 0.25},
	}}
	div := byType(newTestSynth().GenerateRecommendations(p, models.RecommendationInput{}, nil), models.RecDiversification)
	require.Len(t, div, 1)
	assert.Contains(t, div[0].Title, "Tech")
}

func TestRegimeChange(t *testing.T) {
	tests := []struct {
		name       string
		prev       *models.RegimeLabel
		regime     models.RegimeLabel
		confidence float64
		fallback   bool
		want       *models.Priority
	}{
		{"no previous", nil, models.RiskOff, 0.9, false, nil},
		{"same regime", regimePtr(models.RiskOn), models.RiskOn, 0.95, false, nil},
		{"low confidence", regimePtr(models.RiskOn), models.RiskOff, 0.7, false, nil},
		{"fallback", regimePtr(models.RiskOn), models.Neutral, 0.9, true, nil},
		{"to risk off", regimePtr(models.RiskOn), models.RiskOff, 0.71, false, &models.PriorityCritical},
		{"to risk on", regimePtr(models.Neutral), models.RiskOn, 0.8, false, &models.PriorityHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := models.RecommendationInput{
				PreviousRegime: tt.prev,
				Prediction:     &models.RegimePrediction{Regime: tt.regime, Confidence: tt.confidence, Fallback: tt.fallback},
			}
			recs := byType(newTestSynth().GenerateRecommendations(models.Portfolio{}, input, nil), models.RecRegimeChange)
			if tt.want == nil {
				assert.Empty(t, recs)
				return
			}
			require.Len(t, recs, 1)
			assert.Equal(t, *tt.want, recs[0].Priority)
			require.NotNil(t, recs[0].Regime)
			assert.Equal(t, tt.regime, *recs[0].Regime)
		})
	}
}

func TestGenerateRecommendations_StableOrderAndStamps(t *testing.T) {
	p := models.Portfolio{TotalValue: 1000, Positions: []models.Position{
		{Ticker: "A", Sector: "S1", CurrentWeight: 0.10, TargetWeight: 0.17},
		{Ticker: "B", Sector: "S2", CurrentWeight: 0.10, TargetWeight: 0.16},
	}}
	input := models.RecommendationInput{Assets: []models.Asset{{Ticker: "Z", QuantScore: 88}}}
	recs := newTestSynth().GenerateRecommendations(p, input, nil)
	require.Len(t, recs, 3)

	for i := 1; i < len(recs); i++ {
		assert.GreaterOrEqual(t, recs[i-1].Priority.Level, recs[i].Priority.Level)
	}
	// equal priorities keep stage order: rebalance A, rebalance B, then buy Z
	assert.Equal(t, []string{"A", "B", "Z"}, []string{recs[0].Ticker, recs[1].Ticker, recs[2].Ticker})
	for _, r := range recs {
		assert.NotEmpty(t, r.ID)
		assert.Equal(t, now, r.Timestamp)
	}
}

func TestGenerateRecommendations_DoesNotMutateInput(t *testing.T) {
	p := models.Portfolio{TotalValue: 1000, Positions: []models.Position{{Ticker: "A", CurrentWeight: 0.5, TargetWeight: 0.2}}}
	assets := []models.Asset{{Ticker: "Q", QuantScore: 90}}
	_ = newTestSynth().GenerateRecommendations(p, models.RecommendationInput{Assets: assets}, nil)
	assert.Equal(t, "", p.Positions[0].Sector)
	assert.Equal(t, 0.0, assets[0].Volatility)
}

func TestWithStages(t *testing.T) {
	custom := func(Snapshot) []models.Recommendation {
		return []models.Recommendation{{Type: "CUSTOM", Priority: models.PriorityLow}}
	}
	s := NewSynthesizer(DefaultConfig(), WithStages(custom))
	recs := s.GenerateRecommendations(models.Portfolio{}, models.RecommendationInput{}, nil)
	require.Len(t, recs, 1)
	assert.Equal(t, "CUSTOM", recs[0].Type)
	assert.NotEmpty(t, recs[0].ID)
}
