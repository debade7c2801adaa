package models

import (
	"math"

	"github.com/creasty/defaults"
)

// Asset is a member of the scored universe. Fields tagged with a default are
// substituted by WithDefaults when missing so one malformed asset never aborts a batch.
type Asset struct {
	Ticker        string  `json:"ticker" validate:"required"`
	Name          string  `json:"name,omitempty"`
	Sector        string  `json:"sector" default:"Unknown"`
	Price         float64 `json:"price"`
	QuantScore    float64 `json:"quant_score"`
	Volatility    float64 `json:"volatility" default:"20"`
	Return1M      float64 `json:"return_1m"`
	Return3M      float64 `json:"return_3m"`
	Return6M      float64 `json:"return_6m"`
	Return12M     float64 `json:"return_12m"`
	Volume        float64 `json:"volume"`
	AvgVolume     float64 `json:"avg_volume"`
	RSI           float64 `json:"rsi" default:"50"`
	MaxDrawdown   float64 `json:"max_drawdown"`
	RiskScore     float64 `json:"risk_score" default:"50"`
	MomentumScore float64 `json:"momentum_score" default:"50"`
	TrendScore    float64 `json:"trend_score" default:"50"`

	BenchmarkCorrelation *float64 `json:"benchmark_correlation,omitempty"`
}

// WithDefaults returns a copy with non-finite numbers cleared and tagged defaults applied.
func (a Asset) WithDefaults() Asset {
	out := a
	for _, f := range []*float64{
		&out.Price, &out.QuantScore, &out.Volatility,
		&out.Return1M, &out.Return3M, &out.Return6M, &out.Return12M,
		&out.Volume, &out.AvgVolume, &out.RSI, &out.MaxDrawdown,
		&out.RiskScore, &out.MomentumScore, &out.TrendScore,
	} {
		if math.IsNaN(*f) || math.IsInf(*f, 0) {
			*f = 0
		}
	}
	if out.BenchmarkCorrelation != nil {
		c := *out.BenchmarkCorrelation
		if math.IsNaN(c) || math.IsInf(c, 0) {
			out.BenchmarkCorrelation = nil
		} else {
			out.BenchmarkCorrelation = &c
		}
	}
	// defaults.Set only fails on malformed tags, which are fixed at compile time.
	_ = defaults.Set(&out)
	return out
}

// NormalizeAssets applies WithDefaults to every asset and returns a new slice.
func NormalizeAssets(assets []Asset) []Asset {
	out := make([]Asset, len(assets))
	for i, a := range assets {
		out[i] = a.WithDefaults()
	}
	return out
}

// Position is a holding in the portfolio. Weights are fractions of TotalValue.
type Position struct {
	Ticker        string   `json:"ticker" validate:"required"`
	Sector        string   `json:"sector" default:"Unknown"`
	CurrentWeight float64  `json:"current_weight" validate:"gte=0,lte=1"`
	TargetWeight  float64  `json:"target_weight" validate:"gte=0,lte=1"`
	Value         float64  `json:"value"`
	QuantScore    *float64 `json:"quant_score,omitempty"`
}

// Portfolio is the set of current holdings.
type Portfolio struct {
	TotalValue float64    `json:"total_value"`
	Positions  []Position `json:"positions" validate:"dive"`
}

// Holds reports whether the portfolio has a position in ticker.
func (p Portfolio) Holds(ticker string) bool {
	for _, pos := range p.Positions {
		if pos.Ticker == ticker {
			return true
		}
	}
	return false
}

// AssetPerformance carries realized history for one ticker, returns in percent.
type AssetPerformance struct {
	Return60D float64 `json:"return_60d"`
}

// HistoricalPerformance maps ticker to its realized history.
type HistoricalPerformance map[string]AssetPerformance
