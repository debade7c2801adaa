package models

import "time"

// PerformanceRecord captures what a signal predicted and what happened afterwards.
// RealizedReturn is a fraction or percent; only its sign matters for hit rates.
type PerformanceRecord struct {
	ID              string      `json:"id"`
	AssetID         string      `json:"asset_id"`
	SignalTimestamp time.Time   `json:"signal_timestamp"`
	ScoreAtSignal   float64     `json:"score_at_signal"`
	RealizedReturn  float64     `json:"realized_return"`
	Regime          RegimeLabel `json:"regime"`
	StrategyID      string      `json:"strategy_id"`
}

// Hit reports whether the signal paid off.
func (r PerformanceRecord) Hit() bool {
	return r.RealizedReturn > 0
}

// RegimeStats aggregates ledger records for one (strategy, regime) pair.
type RegimeStats struct {
	Count      int     `json:"count"`
	Hits       int     `json:"hits"`
	HitRate    float64 `json:"hit_rate"`
	MeanReturn float64 `json:"mean_return"`
}

// AdaptiveResult is the outcome of an adaptive score adjustment.
type AdaptiveResult struct {
	AdjustedScore float64 `json:"adjusted_score"`
	Multiplier    float64 `json:"multiplier"`
	SampleSize    int     `json:"sample_size"`
	HitRate       float64 `json:"hit_rate"`
}

// AdjustedAsset pairs an asset with its adaptive adjustment.
type AdjustedAsset struct {
	Asset
	BaseScore float64        `json:"base_score"`
	Adaptive  AdaptiveResult `json:"adaptive"`
}

// OutcomeEvent is a realized signal outcome delivered over HTTP or Kafka.
type OutcomeEvent struct {
	AssetID         string    `json:"asset_id" validate:"required"`
	SignalTimestamp time.Time `json:"signal_timestamp" validate:"required"`
	ScoreAtSignal   float64   `json:"score_at_signal" validate:"gte=0,lte=100"`
	RealizedReturn  float64   `json:"realized_return"`
	Regime          string    `json:"regime" validate:"required,oneof=risk_off neutral risk_on"`
	Strategy        string    `json:"strategy" validate:"required"`
}
