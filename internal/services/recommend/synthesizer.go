package recommend

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"QuantLens/internal/domain/models"
)

// Config holds the thresholds used by the recommendation stages.
type Config struct {
	RebalanceThreshold  float64 `yaml:"rebalance_threshold" default:"0.05" validate:"gt=0,lt=1"`
	RebalanceHigh       float64 `yaml:"rebalance_high" default:"0.10" validate:"gtfield=RebalanceThreshold"`
	ConcentrationLimit  float64 `yaml:"concentration_limit" default:"0.60" validate:"gt=0,lte=1"`
	ConcentrationTopN   int     `yaml:"concentration_top_n" default:"3" validate:"gte=1"`
	VolatilitySpike     float64 `yaml:"volatility_spike" default:"30" validate:"gt=0"`
	BuyScore            float64 `yaml:"buy_score" default:"70" validate:"gte=0,lte=100"`
	BuyTopN             int     `yaml:"buy_top_n" default:"3" validate:"gte=1"`
	SellReturn60D       float64 `yaml:"sell_return_60d" default:"-15"`
	SellScore           float64 `yaml:"sell_score" default:"40" validate:"gte=0,lte=100"`
	SectorLimit         float64 `yaml:"sector_limit" default:"0.35" validate:"gt=0,lte=1"`
	RegimeConfidenceMin float64 `yaml:"regime_confidence_min" default:"0.7" validate:"gte=0,lte=1"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		RebalanceThreshold:  0.05,
		RebalanceHigh:       0.10,
		ConcentrationLimit:  0.60,
		ConcentrationTopN:   3,
		VolatilitySpike:     30,
		BuyScore:            70,
		BuyTopN:             3,
		SellReturn60D:       -15,
		SellScore:           40,
		SectorLimit:         0.35,
		RegimeConfidenceMin: 0.7,
	}
}

// Snapshot is the read-only view every stage receives.
type Snapshot struct {
	Config    Config
	Portfolio models.Portfolio
	Input     models.RecommendationInput
	History   models.HistoricalPerformance
	Now       time.Time

	assets map[string]models.Asset
}

// Asset looks up a universe member by ticker.
func (s Snapshot) Asset(ticker string) (models.Asset, bool) {
	a, ok := s.assets[ticker]
	return a, ok
}

// Stage is one independent detector. It must not mutate the snapshot.
type Stage func(s Snapshot) []models.Recommendation

// DefaultStages lists the stages in emission order.
func DefaultStages() []Stage {
	return []Stage{
		RebalanceStage,
		RiskWarningStage,
		BuyOpportunityStage,
		SellAlertStage,
		DiversificationStage,
		RegimeChangeStage,
	}
}

// Synthesizer turns regime, scores and portfolio state into a ranked recommendation list.
type Synthesizer struct {
	cfg    Config
	stages []Stage
	now    func() time.Time
	newID  func() string
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Synthesizer) { s.now = now }
}

// WithStages replaces the stage pipeline.
func WithStages(stages ...Stage) Option {
	return func(s *Synthesizer) { s.stages = stages }
}

// WithIDGenerator overrides recommendation identifiers.
func WithIDGenerator(gen func() string) Option {
	return func(s *Synthesizer) { s.newID = gen }
}

// NewSynthesizer builds a synthesizer running DefaultStages.
func NewSynthesizer(cfg Config, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		cfg:    cfg,
		stages: DefaultStages(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the thresholds in use.
func (s *Synthesizer) Config() Config { return s.cfg }

// GenerateRecommendations runs every stage and orders the combined output by priority,
// highest first. Equal priorities keep stage emission order. The result is never nil.
func (s *Synthesizer) GenerateRecommendations(portfolio models.Portfolio, input models.RecommendationInput, history models.HistoricalPerformance) []models.Recommendation {
	snap := s.snapshot(portfolio, input, history)
	out := make([]models.Recommendation, 0)
	for _, stage := range s.stages {
		for _, rec := range stage(snap) {
			if rec.ID == "" {
				rec.ID = s.newID()
			}
			if rec.Timestamp.IsZero() {
				rec.Timestamp = snap.Now
			}
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority.Level > out[j].Priority.Level
	})
	return out
}

func (s *Synthesizer) snapshot(portfolio models.Portfolio, input models.RecommendationInput, history models.HistoricalPerformance) Snapshot {
	positions := make([]models.Position, len(portfolio.Positions))
	copy(positions, portfolio.Positions)
	portfolio.Positions = positions

	input.Assets = models.NormalizeAssets(input.Assets)
	assets := make(map[string]models.Asset, len(input.Assets))
	for _, a := range input.Assets {
		if _, dup := assets[a.Ticker]; !dup {
			assets[a.Ticker] = a
		}
	}
	hist := make(models.HistoricalPerformance, len(history))
	for k, v := range history {
		hist[k] = v
	}
	return Snapshot{
		Config:    s.cfg,
		Portfolio: portfolio,
		Input:     input,
		History:   hist,
		Now:       s.now(),
		assets:    assets,
	}
}
