package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"QuantLens/internal/domain/models"
	domrepo "QuantLens/internal/domain/repository"
)

type fakeMarket struct {
	mu     sync.Mutex
	series map[string][]models.Candle
	calls  int
	err    error
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{series: map[string][]models.Candle{}}
}

// add generates n daily candles of a trending sine wave for symbol.
func (f *fakeMarket) add(symbol string, n int, phase float64) {
	start := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	cs := make([]models.Candle, n)
	for i := range cs {
		x := float64(i)
		price := 100 * math.Exp(0.0004*x+0.08*math.Sin(x/30+phase))
		cs[i] = models.Candle{
			Bucket: start.AddDate(0, 0, i),
			Symbol: symbol,
			Open:   price,
			High:   price * 1.01,
			Low:    price * 0.99,
			Close:  price,
			Volume: 1e6 + 2e5*math.Sin(x/7),
		}
	}
	f.series[symbol] = cs
}

func (f *fakeMarket) GetCandles(_ context.Context, symbol string, from, to time.Time, _ domrepo.Timeframe) ([]models.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	var out []models.Candle
	for _, c := range f.series[symbol] {
		if !c.Bucket.Before(from) && !c.Bucket.After(to) {
			out = append(out, c)
		}
	}
	return out, f.err
}

func (f *fakeMarket) GetLatestNCandles(_ context.Context, symbol string, n int, _ domrepo.Timeframe) ([]models.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	cs := f.series[symbol]
	if len(cs) > n {
		cs = cs[len(cs)-n:]
	}
	return append([]models.Candle(nil), cs...), nil
}

func (f *fakeMarket) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingMetrics struct {
	mu              sync.Mutex
	predictions     []string
	trainings       int
	ledgerSize      int
	saveErrors      []string
	anomalies       map[string]int
	recommendations int
	errors          []string
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{anomalies: map[string]int{}}
}

func (m *recordingMetrics) RecordPrediction(regime string, fallback bool, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fallback {
		regime += "/fallback"
	}
	m.predictions = append(m.predictions, regime)
}

func (m *recordingMetrics) RecordTraining(time.Duration, float64, int) {
	m.mu.Lock()
	m.trainings++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordLedgerSize(n int) {
	m.mu.Lock()
	m.ledgerSize = n
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordLedgerSaveError(backend string) {
	m.mu.Lock()
	m.saveErrors = append(m.saveErrors, backend)
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordAnomalies(severity string, n int) {
	m.mu.Lock()
	m.anomalies[severity] += n
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordRecommendation(string, string) {
	m.mu.Lock()
	m.recommendations++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors = append(m.errors, kind)
	m.mu.Unlock()
}

type failingStore struct{}

func (failingStore) Load(context.Context) ([]models.PerformanceRecord, error) {
	return nil, errors.New("ledger offline")
}
func (failingStore) Save(context.Context, []models.PerformanceRecord) error {
	return errors.New("ledger offline")
}
func (failingStore) Append(context.Context, models.PerformanceRecord) error {
	return errors.New("ledger offline")
}
func (failingStore) Backend() string { return "redis" }

type capturePublisher struct {
	results []*models.ScanResult
	err     error
}

func (c *capturePublisher) PublishScan(_ context.Context, r *models.ScanResult) error {
	c.results = append(c.results, r)
	return c.err
}

func seqIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}
