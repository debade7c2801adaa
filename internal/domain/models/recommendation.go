package models

import "time"

// Recommendation types.
const (
	RecRebalance       = "REBALANCE"
	RecRiskWarning     = "RISK_WARNING"
	RecBuyOpportunity  = "BUY_OPPORTUNITY"
	RecSellAlert       = "SELL_ALERT"
	RecDiversification = "DIVERSIFICATION"
	RecRegimeChange    = "REGIME_CHANGE"
)

// Priority ranks a recommendation. Higher Level sorts first.
type Priority struct {
	Level int    `json:"level"`
	Label string `json:"label"`
	Color string `json:"color"`
}

var (
	PriorityLow      = Priority{Level: 1, Label: "LOW", Color: "#28a745"}
	PriorityMedium   = Priority{Level: 2, Label: "MEDIUM", Color: "#ffc107"}
	PriorityHigh     = Priority{Level: 3, Label: "HIGH", Color: "#fd7e14"}
	PriorityCritical = Priority{Level: 4, Label: "CRITICAL", Color: "#dc3545"}
)

// Recommendation is an actionable, prioritized message.
type Recommendation struct {
	ID         string       `json:"id"`
	Type       string       `json:"type"`
	Priority   Priority     `json:"priority"`
	Title      string       `json:"title"`
	Message    string       `json:"message"`
	Action     string       `json:"action"`
	Confidence float64      `json:"confidence"`
	Timestamp  time.Time    `json:"timestamp"`
	Ticker     string       `json:"ticker,omitempty"`
	Amount     *float64     `json:"amount,omitempty"`
	Regime     *RegimeLabel `json:"regime,omitempty"`
}

// RecommendationInput is the market side of a recommendation cycle.
// Prediction and PreviousRegime are optional; without them no regime-change stage output is produced.
type RecommendationInput struct {
	Assets           []Asset           `json:"assets"`
	MarketVolatility float64           `json:"market_volatility"`
	Prediction       *RegimePrediction `json:"prediction,omitempty"`
	PreviousRegime   *RegimeLabel      `json:"previous_regime,omitempty"`
}

// Insight labels.
const (
	ImpactFavorable   = "favorable"
	ImpactUnfavorable = "unfavorable"
	ImpactNeutral     = "neutral"

	ProfileDefensive  = "defensive"
	ProfileAggressive = "aggressive"
	ProfileBalanced   = "balanced"

	MomentumAccelerating   = "accelerating"
	MomentumDecelerating   = "decelerating"
	MomentumStrongPositive = "strong_positive"
	MomentumStrongNegative = "strong_negative"
	MomentumStable         = "stable"

	SignalStrongBuy  = "STRONG_BUY"
	SignalBuy        = "BUY"
	SignalHold       = "HOLD"
	SignalSell       = "SELL"
	SignalStrongSell = "STRONG_SELL"

	RiskLow      = "LOW"
	RiskModerate = "MODERATE"
	RiskHigh     = "HIGH"
	RiskVeryHigh = "VERY_HIGH"
)

// RegimeImpact describes how the current regime transition suits an asset's profile.
type RegimeImpact struct {
	Profile            string  `json:"profile"`
	Transition         string  `json:"transition"`
	Impact             string  `json:"impact"`
	RelativeVolatility float64 `json:"relative_volatility"`
}

// MomentumShift describes where an asset's momentum sits among its peers.
type MomentumShift struct {
	Label        string  `json:"label"`
	Percentile   float64 `json:"percentile"`
	Acceleration float64 `json:"acceleration"`
}

// MLSignal is the composite buy/sell band.
type MLSignal struct {
	Signal     string             `json:"signal"`
	Score      float64            `json:"score"`
	Damped     bool               `json:"damped"`
	Components map[string]float64 `json:"components"`
}

// RiskAssessment is the 0-100 composite risk score and its bucket.
type RiskAssessment struct {
	Score float64 `json:"score"`
	Level string  `json:"level"`
}

// AssetInsight is the per-asset micro-report.
type AssetInsight struct {
	Ticker       string         `json:"ticker"`
	RegimeImpact RegimeImpact   `json:"regime_impact"`
	Momentum     MomentumShift  `json:"momentum"`
	Signal       MLSignal       `json:"signal"`
	Risk         RiskAssessment `json:"risk"`
	Timestamp    time.Time      `json:"timestamp"`
}
