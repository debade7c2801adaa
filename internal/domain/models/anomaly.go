package models

// Severity grades how far an observation sits from the universe.
type Severity string

const (
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
	SeverityExtreme  Severity = "extreme"
)

// Rank orders severities; unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityModerate:
		return 1
	case SeverityHigh:
		return 2
	case SeverityExtreme:
		return 3
	default:
		return 0
	}
}

// Anomaly types emitted by the detector. Z-score anomalies use "zscore_<field>".
const (
	AnomalyClusterOutlier       = "cluster_outlier"
	AnomalyCorrelationBreakdown = "correlation_breakdown"
	AnomalyScorePriceDivergence = "score_price_divergence"
	AnomalyVolumeSpike          = "volume_spike"
	AnomalyZScorePrefix         = "zscore_"
)

// AnomalyRecord is one statistically unusual observation for a ticker.
type AnomalyRecord struct {
	Ticker      string             `json:"ticker"`
	Type        string             `json:"type"`
	Severity    Severity           `json:"severity"`
	Metrics     map[string]float64 `json:"metrics"`
	Description string             `json:"description"`
}

// AssetAnomalies groups the anomalies detected for one ticker.
type AssetAnomalies struct {
	Ticker      string          `json:"ticker"`
	Anomalies   []AnomalyRecord `json:"anomalies"`
	MaxSeverity Severity        `json:"max_severity"`
}

// AnomalySummary is a reporting rollup of a detection run.
type AnomalySummary struct {
	Total          int              `json:"total"`
	BySeverity     map[Severity]int `json:"by_severity"`
	ByType         map[string]int   `json:"by_type"`
	AffectedAssets int              `json:"affected_assets"`
}
