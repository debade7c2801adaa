package regime

import "QuantLens/internal/domain/models"

// SampleOptions controls how a long history is cut into labelled windows.
type SampleOptions struct {
	WindowSize       int     `yaml:"window_size" default:"250" validate:"gte=200"`
	Step             int     `yaml:"step" default:"5" validate:"gte=1"`
	Horizon          int     `yaml:"horizon" default:"20" validate:"gte=1"`
	RiskOnThreshold  float64 `yaml:"risk_on_threshold" default:"0.03" validate:"gt=0"`
	RiskOffThreshold float64 `yaml:"risk_off_threshold" default:"0.03" validate:"gt=0"`
}

// DefaultSampleOptions labels 250-bar windows every 5 bars by their 20-bar forward return.
func DefaultSampleOptions() SampleOptions {
	return SampleOptions{WindowSize: 250, Step: 5, Horizon: 20, RiskOnThreshold: 0.03, RiskOffThreshold: 0.03}
}

func (o SampleOptions) normalized() SampleOptions {
	def := DefaultSampleOptions()
	if o.WindowSize <= 0 {
		o.WindowSize = def.WindowSize
	}
	if o.Step <= 0 {
		o.Step = def.Step
	}
	if o.Horizon <= 0 {
		o.Horizon = def.Horizon
	}
	if o.RiskOnThreshold <= 0 {
		o.RiskOnThreshold = def.RiskOnThreshold
	}
	if o.RiskOffThreshold <= 0 {
		o.RiskOffThreshold = def.RiskOffThreshold
	}
	return o
}

// LabelForwardReturn maps a forward return fraction to a regime.
func (o SampleOptions) LabelForwardReturn(r float64) models.RegimeLabel {
	switch {
	case r > o.RiskOnThreshold:
		return models.RiskOn
	case r < -o.RiskOffThreshold:
		return models.RiskOff
	default:
		return models.Neutral
	}
}

// BuildHistoricalSamples walks benchmark history and labels each window by what followed it.
// volume is sliced alongside the benchmark when both have the same length.
func BuildHistoricalSamples(benchmark, volume []float64, opts SampleOptions) []models.HistoricalSample {
	opts = opts.normalized()
	withVolume := len(volume) == len(benchmark)
	var out []models.HistoricalSample
	for start := 0; start+opts.WindowSize+opts.Horizon <= len(benchmark); start += opts.Step {
		end := start + opts.WindowSize
		last := benchmark[end-1]
		if last <= 0 {
			continue
		}
		fwd := benchmark[end-1+opts.Horizon]/last - 1

		md := models.MarketData{Benchmark: benchmark[start:end]}
		if withVolume {
			md.Volume = volume[start:end]
		}
		out = append(out, models.HistoricalSample{
			MarketData:   md,
			ActualRegime: opts.LabelForwardReturn(fwd),
		})
	}
	return out
}
