package models

import "time"

// ScanResult is one full intelligence cycle over a universe and portfolio.
type ScanResult struct {
	ID              string            `json:"id"`
	Strategy        string            `json:"strategy"`
	Regime          *RegimePrediction `json:"regime,omitempty"`
	Assets          []AdjustedAsset   `json:"assets"`
	Anomalies       []AssetAnomalies  `json:"anomalies"`
	AnomalySummary  AnomalySummary    `json:"anomaly_summary"`
	Recommendations []Recommendation  `json:"recommendations"`
	GeneratedAt     time.Time         `json:"generated_at"`
}

// PerformanceReport is the per-regime ledger view of a strategy.
type PerformanceReport struct {
	Strategy     string                 `json:"strategy"`
	Regimes      map[string]RegimeStats `json:"regimes"`
	TotalRecords int                    `json:"total_records"`
}
