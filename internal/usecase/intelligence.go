package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"QuantLens/internal/domain/models"
	domrepo "QuantLens/internal/domain/repository"
	domsvc "QuantLens/internal/domain/service"
	"QuantLens/internal/services/anomaly"
	"QuantLens/internal/services/features"
	"QuantLens/internal/services/ml"
	"QuantLens/internal/services/performance"
	"QuantLens/internal/services/recommend"
	"QuantLens/internal/services/regime"
	"QuantLens/pkg/cache"
	applogger "QuantLens/pkg/logger"
	"QuantLens/pkg/metrics"
	"QuantLens/pkg/util"
)

var (
	// ErrTrainingInProgress is returned when another worker holds the training lock for a symbol.
	ErrTrainingInProgress = errors.New("usecase: training already in progress")
	// ErrNoMarketData is returned when the provider has no candles for a symbol.
	ErrNoMarketData = errors.New("usecase: no market data")
)

const (
	correlationWindow = 60
	trainLockTTL      = 10 * time.Minute
)

// IntelligenceConfig groups the analytics settings the service needs.
type IntelligenceConfig struct {
	Benchmark    string
	Peers        []string
	LookbackBars int
	TrainingBars int
	Forest       ml.ForestConfig
	Training     regime.SampleOptions
	Adaptive     performance.AdaptiveConfig
	Anomaly      anomaly.Config
	Recommend    recommend.Config
	CacheTTL     time.Duration
}

func (c IntelligenceConfig) normalized() IntelligenceConfig {
	if c.Benchmark == "" {
		c.Benchmark = "SPY"
	}
	c.Benchmark = util.NormalizeSymbol(c.Benchmark)
	if c.LookbackBars < features.MinBenchmarkPoints {
		c.LookbackBars = 300
	}
	if c.TrainingBars <= 0 {
		c.TrainingBars = 1500
	}
	if c.Forest.NEstimators <= 0 {
		c.Forest = ml.DefaultForestConfig()
	}
	if c.Adaptive.MaxMultiplier <= 0 {
		c.Adaptive = performance.DefaultAdaptiveConfig()
	}
	if c.Recommend.RebalanceThreshold <= 0 {
		c.Recommend = recommend.DefaultConfig()
	}
	return c
}

// IntelligenceService is the market-intelligence facade over the engine packages.
type IntelligenceService struct {
	cfg       IntelligenceConfig
	session   *Session
	market    domrepo.MarketDataProvider
	cache     cache.Service
	models    domrepo.ModelStore
	publisher domrepo.RecommendationPublisher
	metrics   domrepo.Metrics
	l         *applogger.Logger

	predictor   *regime.Predictor
	detector    *anomaly.Detector
	synthesizer *recommend.Synthesizer
	now         func() time.Time
	newID       func() string
}

var _ domsvc.Intelligence = (*IntelligenceService)(nil)

type ServiceOption func(*IntelligenceService)

// WithCache enables prediction caching and the distributed training lock.
func WithCache(c cache.Service) ServiceOption {
	return func(s *IntelligenceService) { s.cache = c }
}

func WithModelStore(m domrepo.ModelStore) ServiceOption {
	return func(s *IntelligenceService) { s.models = m }
}

func WithPublisher(p domrepo.RecommendationPublisher) ServiceOption {
	return func(s *IntelligenceService) { s.publisher = p }
}

func WithMetrics(m domrepo.Metrics) ServiceOption {
	return func(s *IntelligenceService) { s.metrics = m }
}

func WithLogger(l *applogger.Logger) ServiceOption {
	return func(s *IntelligenceService) { s.l = l }
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *IntelligenceService) { s.now = now }
}

func WithIDGenerator(gen func() string) ServiceOption {
	return func(s *IntelligenceService) { s.newID = gen }
}

func NewIntelligenceService(cfg IntelligenceConfig, session *Session, market domrepo.MarketDataProvider, opts ...ServiceOption) *IntelligenceService {
	s := &IntelligenceService{
		cfg:     cfg.normalized(),
		session: session,
		market:  market,
		metrics: metrics.Nop{},
		l:       applogger.Nop(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.session == nil {
		s.session = NewSession(nil, nil, s.l)
	}
	s.predictor = regime.NewPredictor(regime.WithClock(s.now))
	s.detector = anomaly.NewDetector(s.cfg.Anomaly)
	s.synthesizer = recommend.NewSynthesizer(s.cfg.Recommend,
		recommend.WithClock(s.now),
		recommend.WithIDGenerator(s.newID),
	)
	return s
}

// Session exposes the shared engine state.
func (s *IntelligenceService) Session() *Session { return s.session }

// RestoreModel installs the persisted model for the benchmark, if any.
func (s *IntelligenceService) RestoreModel(ctx context.Context) (bool, error) {
	if s.models == nil {
		return false, nil
	}
	data, found, err := s.models.LoadModel(ctx, s.cfg.Benchmark)
	if err != nil || !found {
		return false, err
	}
	var m regime.Model
	if err := json.Unmarshal(data, &m); err != nil {
		return false, fmt.Errorf("decode model: %w", err)
	}
	if !m.Ready() {
		return false, fmt.Errorf("decode model: %w", ml.ErrInvalidModelState)
	}
	s.session.SetModel(&m)
	s.l.Info("regime model restored",
		applogger.String("symbol", s.cfg.Benchmark),
		applogger.Float64("accuracy", m.Accuracy),
		applogger.Time("trained_at", m.TrainedAt),
	)
	return true, nil
}

func (s *IntelligenceService) TrainRegimeModel(ctx context.Context, params models.TrainParams) (*models.TrainingReport, error) {
	symbol := s.symbol(params.Symbol)
	n := params.N
	if n <= 0 {
		n = s.cfg.TrainingBars
	}

	if s.cache != nil {
		lockKey := cache.GenerateKey("regime:train", symbol)
		ok, err := s.cache.TryLock(ctx, lockKey, trainLockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire training lock: %w", err)
		}
		if !ok {
			return nil, ErrTrainingInProgress
		}
		defer func() {
			if err := s.cache.Unlock(context.WithoutCancel(ctx), lockKey); err != nil {
				s.l.Warn("release training lock failed", applogger.String("symbol", symbol), applogger.Error(err))
			}
		}()
	}

	start := time.Now()
	candles, err := s.market.GetLatestNCandles(ctx, symbol, n, domrepo.TF1d)
	if err != nil {
		s.metrics.RecordError("market_data")
		return nil, fmt.Errorf("load training history: %w", err)
	}
	samples := regime.BuildHistoricalSamples(models.Closes(candles), models.Volumes(candles), s.cfg.Training)
	X, y, skipped := s.predictor.PrepareTrainingData(samples)

	forestCfg := s.cfg.Forest
	if params.Estimators > 0 {
		forestCfg.NEstimators = params.Estimators
	}
	if params.Seed != 0 {
		forestCfg.Seed = params.Seed
	}
	model, err := s.predictor.Train(X, y, forestCfg)
	if err != nil {
		s.metrics.RecordError("train")
		s.l.Warn("regime training failed",
			applogger.String("symbol", symbol),
			applogger.Int("candles", len(candles)),
			applogger.Int("samples", len(X)),
			applogger.Error(err),
		)
		return nil, err
	}
	elapsed := time.Since(start)
	s.session.SetModel(model)
	s.metrics.RecordTraining(elapsed, model.Accuracy, model.SampleCount)
	s.persistModel(ctx, symbol, model)
	s.invalidatePrediction(ctx, symbol)

	s.l.Info("regime model trained",
		applogger.String("symbol", symbol),
		applogger.Int("samples", model.SampleCount),
		applogger.Int("skipped", skipped),
		applogger.Float64("accuracy", model.Accuracy),
		applogger.Duration("duration", elapsed),
	)
	return &models.TrainingReport{
		Symbol:            symbol,
		Accuracy:          model.Accuracy,
		SampleCount:       model.SampleCount,
		Skipped:           skipped,
		ClassDistribution: model.ClassDistribution,
		Estimators:        model.Forest.Size(),
		TrainedAt:         model.TrainedAt,
		Duration:          elapsed,
	}, nil
}

func (s *IntelligenceService) PredictRegime(ctx context.Context, symbol string) (*models.RegimePrediction, error) {
	symbol = s.symbol(symbol)
	key := predictionKey(symbol)
	if s.cache != nil {
		cached, ok, err := cache.GetTyped[models.RegimePrediction](ctx, s.cache, key)
		if err != nil {
			s.l.Warn("prediction cache read failed", applogger.String("symbol", symbol), applogger.Error(err))
		} else if ok {
			return &cached, nil
		}
	}

	md, err := s.marketData(ctx, symbol)
	if err != nil {
		s.metrics.RecordError("market_data")
		return nil, err
	}
	pred := s.predictor.Predict(md, s.session.Model())
	pred.Symbol = symbol
	s.metrics.RecordPrediction(pred.Regime.String(), pred.Fallback, pred.Confidence)

	if pred.Fallback {
		s.l.Debug("regime fallback prediction", applogger.String("symbol", symbol), applogger.String("reason", pred.Error))
	} else if s.cache != nil && s.cfg.CacheTTL > 0 {
		if err := s.cache.Set(ctx, key, pred, s.cfg.CacheTTL); err != nil {
			s.l.Warn("prediction cache write failed", applogger.String("symbol", symbol), applogger.Error(err))
		}
	}
	return &pred, nil
}

func (s *IntelligenceService) RecordOutcome(ctx context.Context, ev models.OutcomeEvent) (*models.PerformanceRecord, error) {
	label, err := models.ParseRegimeLabel(ev.Regime)
	if err != nil {
		return nil, fmt.Errorf("record outcome: %w", performance.ErrInvalidRecord)
	}
	rec, err := performance.NewPerformanceRecord(ev.AssetID, ev.SignalTimestamp, ev.ScoreAtSignal, ev.RealizedReturn, label, ev.Strategy)
	if err != nil {
		return nil, fmt.Errorf("record outcome: %w", err)
	}

	n, err := s.session.AddRecord(ctx, rec)
	s.metrics.RecordLedgerSize(n)
	if err != nil {
		backend := "unknown"
		if s.session.store != nil {
			backend = s.session.store.Backend()
		}
		s.metrics.RecordLedgerSaveError(backend)
		s.l.Error("persist performance record failed",
			applogger.String("id", rec.ID),
			applogger.String("backend", backend),
			applogger.Error(err),
		)
	}
	return &rec, nil
}

func (s *IntelligenceService) Scan(ctx context.Context, req models.ScanRequest) (*models.ScanResult, error) {
	now := s.now()
	assets := models.NormalizeAssets(req.Assets)

	var pred *models.RegimePrediction
	if !req.SkipRegime {
		p, err := s.PredictRegime(ctx, req.Symbol)
		if err != nil {
			s.l.Warn("scan continues without regime", applogger.String("strategy", req.Strategy), applogger.Error(err))
		} else {
			pred = p
		}
	}

	label := models.Neutral
	var previous *models.RegimeLabel
	if pred != nil && !pred.Fallback {
		label = pred.Regime
		previous = s.session.AdvanceRegime(pred.Regime)
	} else {
		previous = s.session.PreviousRegime()
	}

	vol := req.MarketVolatility
	if vol == 0 && pred != nil && pred.Features != nil {
		vol = pred.Features.Vol20
	}

	adjusted := s.session.AdjustScores(assets, req.Strategy, label, now, s.cfg.Adaptive)
	scored := make([]models.Asset, len(adjusted))
	for i, a := range adjusted {
		scored[i] = a.Asset
	}

	groups := s.detector.DetectAllAnomalies(scored)
	summary := anomaly.GetAnomalySummary(groups)
	recs := s.synthesizer.GenerateRecommendations(req.Portfolio, models.RecommendationInput{
		Assets:           scored,
		MarketVolatility: vol,
		Prediction:       pred,
		PreviousRegime:   previous,
	}, req.History)

	result := &models.ScanResult{
		ID:              s.newID(),
		Strategy:        req.Strategy,
		Regime:          pred,
		Assets:          adjusted,
		Anomalies:       groups,
		AnomalySummary:  summary,
		Recommendations: recs,
		GeneratedAt:     now,
	}
	s.recordScan(result)

	if s.publisher != nil {
		if err := s.publisher.PublishScan(ctx, result); err != nil {
			s.metrics.RecordError("publish")
			s.l.Warn("publish scan failed", applogger.String("scan_id", result.ID), applogger.Error(err))
		}
	}
	return result, nil
}

func (s *IntelligenceService) AnalyzeAsset(ctx context.Context, req models.AnalyzeRequest) (*models.AssetInsight, error) {
	var pred *models.RegimePrediction
	if p, err := s.PredictRegime(ctx, ""); err == nil && !p.Fallback {
		pred = p
	}
	insight := s.synthesizer.AnalyzeAssetML(req.Asset, models.RecommendationInput{
		Assets:           req.Peers,
		MarketVolatility: req.MarketVolatility,
		Prediction:       pred,
		PreviousRegime:   s.session.PreviousRegime(),
	}, req.Peers)
	return &insight, nil
}

func (s *IntelligenceService) Performance(_ context.Context, strategy string) (*models.PerformanceReport, error) {
	stats := s.session.PerformanceByRegime(strategy)
	report := &models.PerformanceReport{
		Strategy: strategy,
		Regimes:  make(map[string]models.RegimeStats, len(stats)),
	}
	for label, st := range stats {
		report.Regimes[label.String()] = st
		report.TotalRecords += st.Count
	}
	return report, nil
}

func (s *IntelligenceService) marketData(ctx context.Context, symbol string) (models.MarketData, error) {
	bench, err := s.market.GetLatestNCandles(ctx, symbol, s.cfg.LookbackBars, domrepo.TF1d)
	if err != nil {
		return models.MarketData{}, fmt.Errorf("load %s candles: %w", symbol, err)
	}
	if len(bench) == 0 {
		return models.MarketData{}, fmt.Errorf("%s: %w", symbol, ErrNoMarketData)
	}
	md := models.MarketData{
		Benchmark: models.Closes(bench),
		Volume:    models.Volumes(bench),
		Timestamp: bench[len(bench)-1].Bucket,
	}

	for _, peer := range s.cfg.Peers {
		peer = util.NormalizeSymbol(peer)
		if peer == symbol {
			continue
		}
		cs, err := s.market.GetLatestNCandles(ctx, peer, s.cfg.LookbackBars, domrepo.TF1d)
		if err != nil || len(cs) == 0 {
			s.l.Warn("skipping peer without candles", applogger.String("peer", peer), applogger.Error(err))
			continue
		}
		md.Peers = append(md.Peers, models.Closes(cs))
	}
	if len(md.Peers) > 0 {
		series := append([][]float64{md.Benchmark}, md.Peers...)
		md.Correlation = features.CorrelationMatrix(series, correlationWindow)
	}
	return md, nil
}

func (s *IntelligenceService) recordScan(r *models.ScanResult) {
	severities := make([]string, 0, len(r.AnomalySummary.BySeverity))
	for sev := range r.AnomalySummary.BySeverity {
		severities = append(severities, string(sev))
	}
	sort.Strings(severities)
	for _, sev := range severities {
		s.metrics.RecordAnomalies(sev, r.AnomalySummary.BySeverity[models.Severity(sev)])
	}
	for _, rec := range r.Recommendations {
		s.metrics.RecordRecommendation(rec.Type, rec.Priority.Label)
	}
}

func (s *IntelligenceService) persistModel(ctx context.Context, symbol string, m *regime.Model) {
	if s.models == nil {
		return
	}
	data, err := json.Marshal(m)
	if err == nil {
		err = s.models.SaveModel(ctx, symbol, data)
	}
	if err != nil {
		s.metrics.RecordError("model_persist")
		s.l.Warn("persist regime model failed", applogger.String("symbol", symbol), applogger.Error(err))
	}
}

func (s *IntelligenceService) invalidatePrediction(ctx context.Context, symbol string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, predictionKey(symbol)); err != nil {
		s.l.Warn("prediction cache invalidation failed", applogger.String("symbol", symbol), applogger.Error(err))
	}
}

func (s *IntelligenceService) symbol(sym string) string {
	if sym = util.NormalizeSymbol(sym); sym != "" {
		return sym
	}
	return s.cfg.Benchmark
}

func predictionKey(symbol string) string {
	return cache.GenerateKey("regime:prediction", symbol)
}
