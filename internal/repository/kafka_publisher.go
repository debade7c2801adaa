package repository

import (
	"context"
	"errors"
	"fmt"

	"QuantLens/internal/domain/models"
	domrepo "QuantLens/internal/domain/repository"
	applogger "QuantLens/pkg/logger"
)

type scanProducer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

// KafkaRecommendationPublisher publishes scan results keyed by strategy.
type KafkaRecommendationPublisher struct {
	producer scanProducer
	topic    string
	l        *applogger.Logger
}

var _ domrepo.RecommendationPublisher = (*KafkaRecommendationPublisher)(nil)

func NewKafkaRecommendationPublisher(p scanProducer, topic string, l *applogger.Logger) *KafkaRecommendationPublisher {
	if l == nil {
		l = applogger.Nop()
	}
	return &KafkaRecommendationPublisher{producer: p, topic: topic, l: l}
}

func (p *KafkaRecommendationPublisher) PublishScan(ctx context.Context, result *models.ScanResult) error {
	if result == nil {
		return nil
	}
	if err := p.producer.Publish(ctx, p.topic, []byte(result.Strategy), result); err != nil {
		p.l.Error("publish scan failed",
			applogger.String("topic", p.topic),
			applogger.String("scan_id", result.ID),
			applogger.Error(err),
		)
		return fmt.Errorf("publish scan %s: %w", result.ID, err)
	}
	p.l.Debug("scan published",
		applogger.String("topic", p.topic),
		applogger.String("scan_id", result.ID),
		applogger.Int("recommendations", len(result.Recommendations)),
	)
	return nil
}

// FanoutPublisher delivers each scan to every publisher and joins their errors.
type FanoutPublisher []domrepo.RecommendationPublisher

var _ domrepo.RecommendationPublisher = FanoutPublisher(nil)

func (f FanoutPublisher) PublishScan(ctx context.Context, result *models.ScanResult) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.PublishScan(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
