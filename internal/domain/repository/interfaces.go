package repository

import (
	"context"
	"time"

	"QuantLens/internal/domain/models"
)

// Timeframe represents candle resolution buckets.
type Timeframe string

const (
	TF1m Timeframe = "1m"
	TF5m Timeframe = "5m"
	TF1h Timeframe = "1h"
	TF1d Timeframe = "1d"
)

// MarketDataProvider provides read-only access to candles for regime features and training.
type MarketDataProvider interface {
	GetCandles(ctx context.Context, symbol string, from, to time.Time, tf Timeframe) ([]models.Candle, error)
	GetLatestNCandles(ctx context.Context, symbol string, n int, tf Timeframe) ([]models.Candle, error)
}

// LedgerStore persists the performance ledger between sessions.
// Load returns records in append order; Save replaces the stored ledger.
type LedgerStore interface {
	Load(ctx context.Context) ([]models.PerformanceRecord, error)
	Save(ctx context.Context, records []models.PerformanceRecord) error
	Append(ctx context.Context, rec models.PerformanceRecord) error
	Backend() string
}

// RecommendationPublisher fans scan results out to downstream consumers.
type RecommendationPublisher interface {
	PublishScan(ctx context.Context, result *models.ScanResult) error
}

// Metrics records domain-level measurements.
type Metrics interface {
	RecordPrediction(regime string, fallback bool, confidence float64)
	RecordTraining(duration time.Duration, accuracy float64, samples int)
	RecordLedgerSize(n int)
	RecordLedgerSaveError(backend string)
	RecordAnomalies(severity string, n int)
	RecordRecommendation(recType, priority string)
	RecordError(kind string)
}

// ModelStore keeps serialized regime models keyed by benchmark symbol.
// LoadModel reports found=false on a miss.
type ModelStore interface {
	LoadModel(ctx context.Context, symbol string) (data []byte, found bool, err error)
	SaveModel(ctx context.Context, symbol string, data []byte) error
}
