package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"QuantLens/internal/domain/repository"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	predictions     *prometheus.CounterVec
	confidence      prometheus.Histogram
	trainingSeconds prometheus.Histogram
	trainingAcc     prometheus.Gauge
	trainingSamples prometheus.Gauge
	ledgerSize      prometheus.Gauge
	ledgerSaveErrs  *prometheus.CounterVec
	anomalies       *prometheus.CounterVec
	recommendations *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	latency         *prometheus.HistogramVec
}

var _ repository.Metrics = (*Recorder)(nil)

// New creates a recorder registered on the default Prometheus registry.
// It must be called once per process.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder registered on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		predictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantlens_regime_predictions_total",
				Help: "Regime predictions by label and fallback flag",
			},
			[]string{"regime", "fallback"},
		),
		confidence: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "quantlens_regime_confidence",
				Help:    "Confidence of regime predictions",
				Buckets: prometheus.LinearBuckets(0.3, 0.1, 8),
			},
		),
		trainingSeconds: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "quantlens_regime_training_duration_seconds",
				Help:    "Duration of regime model training",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
		),
		trainingAcc: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "quantlens_regime_training_accuracy",
				Help: "In-sample accuracy of the installed regime model",
			},
		),
		trainingSamples: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "quantlens_regime_training_samples",
				Help: "Number of samples used to train the installed regime model",
			},
		),
		ledgerSize: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "quantlens_ledger_records",
				Help: "Number of records in the performance ledger",
			},
		),
		ledgerSaveErrs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantlens_ledger_save_errors_total",
				Help: "Failed ledger persistence attempts by backend",
			},
			[]string{"backend"},
		),
		anomalies: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantlens_anomalies_total",
				Help: "Detected anomalies by severity",
			},
			[]string{"severity"},
		),
		recommendations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantlens_recommendations_total",
				Help: "Generated recommendations by type and priority",
			},
			[]string{"type", "priority"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantlens_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quantlens_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordPrediction(regime string, fallback bool, confidence float64) {
	fb := "false"
	if fallback {
		fb = "true"
	}
	r.predictions.WithLabelValues(regime, fb).Inc()
	r.confidence.Observe(confidence)
}

func (r *Recorder) RecordTraining(duration time.Duration, accuracy float64, samples int) {
	r.trainingSeconds.Observe(duration.Seconds())
	r.trainingAcc.Set(accuracy)
	r.trainingSamples.Set(float64(samples))
}

func (r *Recorder) RecordLedgerSize(n int) {
	r.ledgerSize.Set(float64(n))
}

func (r *Recorder) RecordLedgerSaveError(backend string) {
	r.ledgerSaveErrs.WithLabelValues(backend).Inc()
}

func (r *Recorder) RecordAnomalies(severity string, n int) {
	if n > 0 {
		r.anomalies.WithLabelValues(severity).Add(float64(n))
	}
}

func (r *Recorder) RecordRecommendation(recType, priority string) {
	r.recommendations.WithLabelValues(recType, priority).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards all measurements.
type Nop struct{}

var _ repository.Metrics = Nop{}

func (Nop) RecordPrediction(string, bool, float64) {}
func (Nop) RecordTraining(time.Duration, float64, int) {}
func (Nop) RecordLedgerSize(int) {}
func (Nop) RecordLedgerSaveError(string) {}
func (Nop) RecordAnomalies(string, int) {}
func (Nop) RecordRecommendation(string, string) {}
func (Nop) RecordError(string) {}
