package usecase

import (
	"context"
	"fmt"

	"QuantLens/internal/domain/models"
	domsvc "QuantLens/internal/domain/service"
	applogger "QuantLens/pkg/logger"
	"QuantLens/pkg/queue"
)

// RetrainJobType is the queue message type for background regime training.
const RetrainJobType = "regime.retrain"

type retrainPayload struct {
	Symbol     string `json:"symbol"`
	N          int    `json:"n"`
	Seed       int64  `json:"seed"`
	Estimators int    `json:"estimators"`
}

// RetrainJob trains the regime model from a queued request.
type RetrainJob struct {
	intel domsvc.Intelligence
	l     *applogger.Logger
}

var _ queue.Job = (*RetrainJob)(nil)

func NewRetrainJob(intel domsvc.Intelligence, l *applogger.Logger) *RetrainJob {
	if l == nil {
		l = applogger.Nop()
	}
	return &RetrainJob{intel: intel, l: l}
}

func (j *RetrainJob) Name() string { return "regime-retrain" }
func (j *RetrainJob) Type() string { return RetrainJobType }

func (j *RetrainJob) Handle(ctx context.Context, payload []byte) error {
	p, err := queue.ParsePayload[retrainPayload](payload)
	if err != nil {
		return fmt.Errorf("retrain job: %w", err)
	}
	report, err := j.intel.TrainRegimeModel(ctx, models.TrainParams{
		Symbol:     p.Symbol,
		N:          p.N,
		Seed:       p.Seed,
		Estimators: p.Estimators,
	})
	if err != nil {
		return fmt.Errorf("retrain job: %w", err)
	}
	j.l.Info("background retrain finished",
		applogger.String("symbol", report.Symbol),
		applogger.Float64("accuracy", report.Accuracy),
		applogger.Int("samples", report.SampleCount),
	)
	return nil
}

// QueueRetrainScheduler enqueues retrain requests on the job queue.
type QueueRetrainScheduler struct {
	pub queue.Publisher
}

var _ domsvc.RetrainScheduler = (*QueueRetrainScheduler)(nil)

func NewQueueRetrainScheduler(pub queue.Publisher) *QueueRetrainScheduler {
	return &QueueRetrainScheduler{pub: pub}
}

func (s *QueueRetrainScheduler) ScheduleRetrain(ctx context.Context, params models.TrainParams) error {
	return s.pub.Enqueue(ctx, RetrainJobType, retrainPayload{
		Symbol:     params.Symbol,
		N:          params.N,
		Seed:       params.Seed,
		Estimators: params.Estimators,
	})
}
