package performance

import (
	"math"
	"time"

	"QuantLens/internal/domain/models"
)

// AdaptiveConfig shapes the hit-rate to multiplier mapping.
type AdaptiveConfig struct {
	NeutralHitRate float64       `yaml:"neutral_hit_rate" default:"0.5" validate:"gte=0,lte=1"`
	Sensitivity    float64       `yaml:"sensitivity" default:"1.0" validate:"gte=0"`
	MinMultiplier  float64       `yaml:"min_multiplier" default:"0.5" validate:"gt=0"`
	MaxMultiplier  float64       `yaml:"max_multiplier" default:"1.5" validate:"gtfield=MinMultiplier"`
	HalfLife       time.Duration `yaml:"half_life"`
}

// DefaultAdaptiveConfig centres at a 50% hit rate with a [0.5, 1.5] multiplier band and no decay.
func DefaultAdaptiveConfig() AdaptiveConfig {
	return AdaptiveConfig{NeutralHitRate: 0.5, Sensitivity: 1.0, MinMultiplier: 0.5, MaxMultiplier: 1.5}
}

// normalized fills an unset multiplier band or an unset neutral point from the defaults.
// A zero AdaptiveConfig therefore behaves like DefaultAdaptiveConfig with no decay.
func (c AdaptiveConfig) normalized() AdaptiveConfig {
	def := DefaultAdaptiveConfig()
	if c.MinMultiplier <= 0 || c.MaxMultiplier < c.MinMultiplier {
		c.MinMultiplier, c.MaxMultiplier = def.MinMultiplier, def.MaxMultiplier
	}
	if c.NeutralHitRate == 0 && c.Sensitivity == 0 {
		c.NeutralHitRate, c.Sensitivity = def.NeutralHitRate, def.Sensitivity
	}
	return c
}

// AdjustScoreAdaptively rescales base by the historical hit rate of (strategy, regime)
// for signals at or before signalTs. Without matching history the score is returned unchanged.
func AdjustScoreAdaptively(base float64, strategy string, regime models.RegimeLabel, signalTs time.Time, tracker *Tracker, cfg AdaptiveConfig) models.AdaptiveResult {
	identity := models.AdaptiveResult{AdjustedScore: base, Multiplier: 1}
	if tracker == nil {
		return identity
	}
	matches := tracker.Matching(strategy, regime, signalTs)
	if len(matches) == 0 {
		return identity
	}
	cfg = cfg.normalized()

	var weighted, total float64
	for _, r := range matches {
		w := decayWeight(signalTs, r.SignalTimestamp, cfg.HalfLife)
		total += w
		if r.Hit() {
			weighted += w
		}
	}
	if total == 0 {
		return identity
	}
	hitRate := weighted / total
	multiplier := clamp(1+(hitRate-cfg.NeutralHitRate)*cfg.Sensitivity, cfg.MinMultiplier, cfg.MaxMultiplier)
	return models.AdaptiveResult{
		AdjustedScore: clamp(base*multiplier, 0, 100),
		Multiplier:    multiplier,
		SampleSize:    len(matches),
		HitRate:       hitRate,
	}
}

// AdjustScoresBatch adjusts each asset's quant score without touching the input slice.
func AdjustScoresBatch(assets []models.Asset, strategy string, regime models.RegimeLabel, signalTs time.Time, tracker *Tracker, cfg AdaptiveConfig) []models.AdjustedAsset {
	out := make([]models.AdjustedAsset, len(assets))
	for i, a := range assets {
		res := AdjustScoreAdaptively(a.QuantScore, strategy, regime, signalTs, tracker, cfg)
		adjusted := a
		adjusted.QuantScore = res.AdjustedScore
		out[i] = models.AdjustedAsset{Asset: adjusted, BaseScore: a.QuantScore, Adaptive: res}
	}
	return out
}

func decayWeight(now, ts time.Time, halfLife time.Duration) float64 {
	if halfLife <= 0 {
		return 1
	}
	age := now.Sub(ts)
	if age < 0 {
		age = 0
	}
	return math.Pow(0.5, float64(age)/float64(halfLife))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
