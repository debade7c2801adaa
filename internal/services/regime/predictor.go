package regime

import (
	"errors"
	"fmt"
	"time"

	"QuantLens/internal/domain/models"
	"QuantLens/internal/services/features"
	"QuantLens/internal/services/ml"
)

// MinTrainingSamples is the smallest training set Train accepts.
const MinTrainingSamples = 30

var (
	// ErrInsufficientSamples is returned by Train below MinTrainingSamples.
	ErrInsufficientSamples = errors.New("regime: insufficient training samples")
	// ErrModelNotTrained marks predictions made without a usable model.
	ErrModelNotTrained = errors.New("regime: model not trained")
)

// FallbackProbabilities is the near-uniform distribution reported with a fallback prediction.
var FallbackProbabilities = []float64{0.33, 0.34, 0.33}

// Model bundles a fitted forest with the scaler it was trained behind.
type Model struct {
	Forest            *ml.RandomForest `json:"forest"`
	Scaler            *Scaler          `json:"scaler"`
	Accuracy          float64          `json:"accuracy"`
	SampleCount       int              `json:"sample_count"`
	ClassDistribution map[string]int   `json:"class_distribution"`
	TrainedAt         time.Time        `json:"trained_at"`
}

// Ready reports whether the model can serve predictions.
func (m *Model) Ready() bool {
	return m != nil && m.Forest != nil && m.Forest.Fitted() && m.Scaler != nil
}

// Predictor orchestrates feature extraction, scaling and the ensemble.
type Predictor struct {
	now func() time.Time
}

// Option configures a Predictor.
type Option func(*Predictor)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Predictor) { p.now = now }
}

// NewPredictor returns a Predictor using the wall clock unless overridden.
func NewPredictor(opts ...Option) *Predictor {
	p := &Predictor{now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PrepareTrainingData extracts features for each sample, skipping those without enough data.
func (p *Predictor) PrepareTrainingData(samples []models.HistoricalSample) ([][]float64, []float64, int) {
	X := make([][]float64, 0, len(samples))
	y := make([]float64, 0, len(samples))
	skipped := 0
	for _, s := range samples {
		if !s.ActualRegime.Valid() {
			skipped++
			continue
		}
		fv, err := features.ExtractRegimeFeatures(s.MarketData)
		if err != nil {
			skipped++
			continue
		}
		X = append(X, fv.ToSlice())
		y = append(y, float64(s.ActualRegime))
	}
	return X, y, skipped
}

// Train standardizes X, fits a forest and reports resubstitution accuracy.
// The forest always votes over the regime labels regardless of cfg.NumClasses.
func (p *Predictor) Train(X [][]float64, y []float64, cfg ml.ForestConfig) (*Model, error) {
	cfg.NumClasses = models.NumRegimes
	if len(X) < MinTrainingSamples {
		return nil, fmt.Errorf("train: %d samples, need %d: %w", len(X), MinTrainingSamples, ErrInsufficientSamples)
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("train: %w", ml.ErrInvalidTrainingData)
	}
	scaler, err := FitScaler(X)
	if err != nil {
		return nil, fmt.Errorf("train: %w", ml.ErrInvalidTrainingData)
	}
	Xs, err := scaler.Transform(X)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	forest := ml.NewRandomForest(cfg)
	if err := forest.Fit(Xs, y); err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	preds, err := forest.Predict(Xs)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	correct := 0
	dist := make(map[string]int, models.NumRegimes)
	for i, label := range y {
		dist[models.RegimeLabel(int(label)).String()]++
		if float64(preds[i]) == label {
			correct++
		}
	}
	return &Model{
		Forest:            forest,
		Scaler:            scaler,
		Accuracy:          float64(correct) / float64(len(y)),
		SampleCount:       len(y),
		ClassDistribution: dist,
		TrainedAt:         p.now(),
	}, nil
}

// Predict classifies the regime of md. It never fails: missing data or an unusable model
// produce a neutral fallback with Fallback set and Error describing the cause.
func (p *Predictor) Predict(md models.MarketData, model *Model) models.RegimePrediction {
	if !model.Ready() {
		return p.fallback(ErrModelNotTrained)
	}
	fv, err := features.ExtractRegimeFeatures(md)
	if err != nil {
		return p.fallback(err)
	}
	row, err := model.Scaler.TransformRow(fv.ToSlice())
	if err != nil {
		return p.fallback(err)
	}
	proba, err := model.Forest.PredictProba([][]float64{row})
	if err != nil {
		return p.fallback(err)
	}

	probs := proba[0]
	if len(probs) != models.NumRegimes {
		return p.fallback(fmt.Errorf("model votes over %d classes: %w", len(probs), ErrModelNotTrained))
	}
	best := ml.ArgMax(probs)
	return models.RegimePrediction{
		Regime:        models.RegimeLabel(best),
		Confidence:    probs[best],
		Probabilities: probs,
		Features:      &fv,
		Timestamp:     p.now(),
	}
}

func (p *Predictor) fallback(err error) models.RegimePrediction {
	probs := make([]float64, len(FallbackProbabilities))
	copy(probs, FallbackProbabilities)
	return models.RegimePrediction{
		Regime:        models.Neutral,
		Confidence:    0,
		Probabilities: probs,
		Timestamp:     p.now(),
		Fallback:      true,
		Error:         err.Error(),
	}
}
