package service

import (
	"context"

	"QuantLens/internal/domain/models"
)

// Intelligence is the market-intelligence facade used by transports.
type Intelligence interface {
	TrainRegimeModel(ctx context.Context, params models.TrainParams) (*models.TrainingReport, error)
	PredictRegime(ctx context.Context, symbol string) (*models.RegimePrediction, error)
	RecordOutcome(ctx context.Context, ev models.OutcomeEvent) (*models.PerformanceRecord, error)
	Scan(ctx context.Context, req models.ScanRequest) (*models.ScanResult, error)
	AnalyzeAsset(ctx context.Context, req models.AnalyzeRequest) (*models.AssetInsight, error)
	Performance(ctx context.Context, strategy string) (*models.PerformanceReport, error)
}

// RetrainScheduler enqueues background retraining.
type RetrainScheduler interface {
	ScheduleRetrain(ctx context.Context, params models.TrainParams) error
}
