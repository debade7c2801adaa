package anomaly

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"QuantLens/internal/domain/models"
)

// Config holds detection thresholds.
type Config struct {
	ZThreshold          float64 `yaml:"z_threshold" default:"2.0" validate:"gt=0"`
	HighZ               float64 `yaml:"high_z" default:"3.0" validate:"gtefield=ZThreshold"`
	ExtremeZ            float64 `yaml:"extreme_z" default:"3.5" validate:"gtefield=HighZ"`
	ClusterThreshold    float64 `yaml:"cluster_threshold" default:"2.0" validate:"gt=0"`
	ClusterIterations   int     `yaml:"cluster_iterations" default:"20" validate:"gte=1"`
	CorrelationGap      float64 `yaml:"correlation_gap" default:"0.5" validate:"gt=0"`
	DivergenceThreshold float64 `yaml:"divergence_threshold" default:"2.0" validate:"gt=0"`
	VolumeModerate      float64 `yaml:"volume_moderate" default:"2" validate:"gt=1"`
	VolumeHigh          float64 `yaml:"volume_high" default:"3" validate:"gtefield=VolumeModerate"`
	VolumeExtreme       float64 `yaml:"volume_extreme" default:"5" validate:"gtefield=VolumeHigh"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		ZThreshold:          2.0,
		HighZ:               3.0,
		ExtremeZ:            3.5,
		ClusterThreshold:    2.0,
		ClusterIterations:   20,
		CorrelationGap:      0.5,
		DivergenceThreshold: 2.0,
		VolumeModerate:      2,
		VolumeHigh:          3,
		VolumeExtreme:       5,
	}
}

// minUniverse is the smallest universe for which dispersion statistics are meaningful.
const minUniverse = 3

// Field names accepted by DetectZScoreAnomalies.
const (
	FieldQuantScore  = "quant_score"
	FieldVolatility  = "volatility"
	FieldReturn1M    = "return_1m"
	FieldReturn3M    = "return_3m"
	FieldReturn6M    = "return_6m"
	FieldReturn12M   = "return_12m"
	FieldRSI         = "rsi"
	FieldVolumeRatio = "volume_ratio"
)

// fieldValue extracts a numeric field; ok is false when the asset has no usable value.
func fieldValue(a models.Asset, field string) (float64, bool) {
	switch field {
	case FieldQuantScore:
		return a.QuantScore, true
	case FieldVolatility:
		return a.Volatility, true
	case FieldReturn1M:
		return a.Return1M, true
	case FieldReturn3M:
		return a.Return3M, true
	case FieldReturn6M:
		return a.Return6M, true
	case FieldReturn12M:
		return a.Return12M, true
	case FieldRSI:
		return a.RSI, true
	case FieldVolumeRatio:
		if a.AvgVolume <= 0 {
			return 0, false
		}
		return a.Volume / a.AvgVolume, true
	default:
		return 0, false
	}
}

// Detector flags statistically unusual assets within a universe. It is stateless apart from Config.
type Detector struct {
	cfg Config
}

// NewDetector returns a detector with cfg; zero thresholds take the defaults.
func NewDetector(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.ZThreshold <= 0 {
		cfg.ZThreshold = def.ZThreshold
	}
	if cfg.HighZ <= 0 {
		cfg.HighZ = def.HighZ
	}
	if cfg.ExtremeZ <= 0 {
		cfg.ExtremeZ = def.ExtremeZ
	}
	if cfg.ClusterThreshold <= 0 {
		cfg.ClusterThreshold = def.ClusterThreshold
	}
	if cfg.ClusterIterations <= 0 {
		cfg.ClusterIterations = def.ClusterIterations
	}
	if cfg.CorrelationGap <= 0 {
		cfg.CorrelationGap = def.CorrelationGap
	}
	if cfg.DivergenceThreshold <= 0 {
		cfg.DivergenceThreshold = def.DivergenceThreshold
	}
	if cfg.VolumeModerate <= 0 {
		cfg.VolumeModerate = def.VolumeModerate
	}
	if cfg.VolumeHigh <= 0 {
		cfg.VolumeHigh = def.VolumeHigh
	}
	if cfg.VolumeExtreme <= 0 {
		cfg.VolumeExtreme = def.VolumeExtreme
	}
	return &Detector{cfg: cfg}
}

// Config returns the effective thresholds.
func (d *Detector) Config() Config { return d.cfg }

func (d *Detector) zSeverity(z float64) models.Severity {
	az := math.Abs(z)
	switch {
	case az >= d.cfg.ExtremeZ:
		return models.SeverityExtreme
	case az >= d.cfg.HighZ:
		return models.SeverityHigh
	default:
		return models.SeverityModerate
	}
}

// DetectZScoreAnomalies flags assets whose field lies more than ZThreshold population
// standard deviations from the universe mean.
func (d *Detector) DetectZScoreAnomalies(assets []models.Asset, field string) []models.AnomalyRecord {
	assets = models.NormalizeAssets(assets)
	idx := make([]int, 0, len(assets))
	vals := make([]float64, 0, len(assets))
	for i, a := range assets {
		if v, ok := fieldValue(a, field); ok {
			idx = append(idx, i)
			vals = append(vals, v)
		}
	}
	if len(vals) < minUniverse {
		return nil
	}
	mean, std := stat.PopMeanStdDev(vals, nil)
	if std == 0 {
		return nil
	}

	var out []models.AnomalyRecord
	for k, v := range vals {
		z := (v - mean) / std
		if math.Abs(z) <= d.cfg.ZThreshold {
			continue
		}
		a := assets[idx[k]]
		dir := "above"
		if z < 0 {
			dir = "below"
		}
		out = append(out, models.AnomalyRecord{
			Ticker:   a.Ticker,
			Type:     models.AnomalyZScorePrefix + field,
			Severity: d.zSeverity(z),
			Metrics: map[string]float64{
				"value":   v,
				"z_score": z,
				"mean":    mean,
				"std":     std,
			},
			Description: fmt.Sprintf("%s %s of %.2f is %.2f standard deviations %s the universe mean", a.Ticker, field, v, math.Abs(z), dir),
		})
	}
	return out
}

// DetectCorrelationAnomalies flags assets that decoupled from the benchmark relative to their peers.
func (d *Detector) DetectCorrelationAnomalies(assets []models.Asset) []models.AnomalyRecord {
	assets = models.NormalizeAssets(assets)
	var with []models.Asset
	var corr []float64
	for _, a := range assets {
		if a.BenchmarkCorrelation == nil {
			continue
		}
		with = append(with, a)
		corr = append(corr, *a.BenchmarkCorrelation)
	}
	if len(with) < minUniverse {
		return nil
	}
	mean := stat.Mean(corr, nil)
	gap := d.cfg.CorrelationGap

	var out []models.AnomalyRecord
	for i, a := range with {
		diff := mean - corr[i]
		if diff <= gap {
			continue
		}
		sev := models.SeverityModerate
		switch {
		case diff >= 2*gap:
			sev = models.SeverityExtreme
		case diff >= 1.5*gap:
			sev = models.SeverityHigh
		}
		out = append(out, models.AnomalyRecord{
			Ticker:   a.Ticker,
			Type:     models.AnomalyCorrelationBreakdown,
			Severity: sev,
			Metrics: map[string]float64{
				"correlation":     corr[i],
				"universe_mean":   mean,
				"correlation_gap": diff,
				"gap_threshold":   gap,
			},
			Description: fmt.Sprintf("%s benchmark correlation %.2f is %.2f below the universe mean %.2f", a.Ticker, corr[i], diff, mean),
		})
	}
	return out
}

// DetectDivergenceAnomalies flags assets whose quant score and 3-month return disagree.
func (d *Detector) DetectDivergenceAnomalies(assets []models.Asset) []models.AnomalyRecord {
	assets = models.NormalizeAssets(assets)
	if len(assets) < minUniverse {
		return nil
	}
	scores := make([]float64, len(assets))
	rets := make([]float64, len(assets))
	for i, a := range assets {
		scores[i] = a.QuantScore
		rets[i] = a.Return3M
	}
	ms, ss := stat.PopMeanStdDev(scores, nil)
	mr, sr := stat.PopMeanStdDev(rets, nil)
	if ss == 0 || sr == 0 {
		return nil
	}

	t := d.cfg.DivergenceThreshold
	var out []models.AnomalyRecord
	for i, a := range assets {
		zs := (scores[i] - ms) / ss
		zr := (rets[i] - mr) / sr
		div := zs - zr
		ad := math.Abs(div)
		if ad <= t {
			continue
		}
		sev := models.SeverityModerate
		switch {
		case ad >= t+1.0:
			sev = models.SeverityExtreme
		case ad >= t+0.5:
			sev = models.SeverityHigh
		}
		desc := fmt.Sprintf("%s quant score is strong while its 3-month return lags (divergence %.2f)", a.Ticker, div)
		if div < 0 {
			desc = fmt.Sprintf("%s 3-month return runs ahead of its quant score (divergence %.2f)", a.Ticker, div)
		}
		out = append(out, models.AnomalyRecord{
			Ticker:   a.Ticker,
			Type:     models.AnomalyScorePriceDivergence,
			Severity: sev,
			Metrics: map[string]float64{
				"score_z":    zs,
				"return_z":   zr,
				"divergence": div,
			},
			Description: desc,
		})
	}
	return out
}

// DetectVolumeAnomalies flags unusual volume relative to the asset's own average.
func (d *Detector) DetectVolumeAnomalies(assets []models.Asset) []models.AnomalyRecord {
	assets = models.NormalizeAssets(assets)
	var out []models.AnomalyRecord
	for _, a := range assets {
		ratio, ok := fieldValue(a, FieldVolumeRatio)
		if !ok || ratio < d.cfg.VolumeModerate {
			continue
		}
		sev := models.SeverityModerate
		switch {
		case ratio >= d.cfg.VolumeExtreme:
			sev = models.SeverityExtreme
		case ratio >= d.cfg.VolumeHigh:
			sev = models.SeverityHigh
		}
		out = append(out, models.AnomalyRecord{
			Ticker:   a.Ticker,
			Type:     models.AnomalyVolumeSpike,
			Severity: sev,
			Metrics: map[string]float64{
				"volume":       a.Volume,
				"avg_volume":   a.AvgVolume,
				"volume_ratio": ratio,
			},
			Description: fmt.Sprintf("%s traded %.1fx its average volume", a.Ticker, ratio),
		})
	}
	return out
}

// DetectAllAnomalies runs every detector and groups findings by ticker in universe order.
func (d *Detector) DetectAllAnomalies(assets []models.Asset) []models.AssetAnomalies {
	var all []models.AnomalyRecord
	for _, field := range []string{FieldQuantScore, FieldVolatility, FieldReturn3M} {
		all = append(all, d.DetectZScoreAnomalies(assets, field)...)
	}
	all = append(all, d.DetectClusterAnomalies(assets)...)
	all = append(all, d.DetectCorrelationAnomalies(assets)...)
	all = append(all, d.DetectDivergenceAnomalies(assets)...)
	all = append(all, d.DetectVolumeAnomalies(assets)...)

	byTicker := make(map[string][]models.AnomalyRecord)
	for _, r := range all {
		byTicker[r.Ticker] = append(byTicker[r.Ticker], r)
	}

	out := make([]models.AssetAnomalies, 0, len(byTicker))
	emitted := make(map[string]bool, len(byTicker))
	for _, a := range assets {
		recs, ok := byTicker[a.Ticker]
		if !ok || emitted[a.Ticker] {
			continue
		}
		emitted[a.Ticker] = true
		group := models.AssetAnomalies{Ticker: a.Ticker, Anomalies: recs}
		for _, r := range recs {
			if r.Severity.Rank() > group.MaxSeverity.Rank() {
				group.MaxSeverity = r.Severity
			}
		}
		out = append(out, group)
	}
	return out
}

// GetAnomalySummary counts anomalies by severity and type.
func GetAnomalySummary(groups []models.AssetAnomalies) models.AnomalySummary {
	s := models.AnomalySummary{
		BySeverity: make(map[models.Severity]int),
		ByType:     make(map[string]int),
	}
	for _, g := range groups {
		if len(g.Anomalies) == 0 {
			continue
		}
		s.AffectedAssets++
		for _, r := range g.Anomalies {
			s.Total++
			s.BySeverity[r.Severity]++
			s.ByType[r.Type]++
		}
	}
	return s
}
