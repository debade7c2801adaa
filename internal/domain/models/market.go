package models

import "time"

// Candle represents an OHLCV record for feature engineering and training.
type Candle struct {
	Bucket time.Time `json:"bucket"`
	Symbol string    `json:"symbol"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// MarketData is the input of regime feature extraction.
// Benchmark is required; Peers, Volume and Correlation are optional and left nil when unavailable.
type MarketData struct {
	Benchmark   []float64   `json:"benchmark"`
	Peers       [][]float64 `json:"peers,omitempty"`
	Volume      []float64   `json:"volume,omitempty"`
	Correlation [][]float64 `json:"correlation,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

// HistoricalSample pairs a market snapshot with the regime that was observed after it.
type HistoricalSample struct {
	MarketData   MarketData
	ActualRegime RegimeLabel
}

// Closes extracts close prices in candle order.
func Closes(cs []Candle) []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = c.Close
	}
	return out
}

// Volumes extracts traded volumes in candle order.
func Volumes(cs []Candle) []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = c.Volume
	}
	return out
}
