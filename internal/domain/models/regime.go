package models

import (
	"fmt"
	"strings"
	"time"
)

// RegimeLabel is the discrete market-state classification.
type RegimeLabel int

const (
	RiskOff RegimeLabel = iota
	Neutral
	RiskOn
)

// NumRegimes is the number of regime classes.
const NumRegimes = 3

func (r RegimeLabel) String() string {
	switch r {
	case RiskOff:
		return "risk_off"
	case Neutral:
		return "neutral"
	case RiskOn:
		return "risk_on"
	default:
		return "unknown"
	}
}

// Valid reports whether r is one of the known classes.
func (r RegimeLabel) Valid() bool {
	return r >= RiskOff && r <= RiskOn
}

// ParseRegimeLabel converts "risk_off", "neutral" or "risk_on" (case-insensitive) to a label.
func ParseRegimeLabel(s string) (RegimeLabel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "risk_off", "risk-off", "riskoff":
		return RiskOff, nil
	case "neutral":
		return Neutral, nil
	case "risk_on", "risk-on", "riskon":
		return RiskOn, nil
	default:
		return Neutral, fmt.Errorf("unknown regime %q", s)
	}
}

func (r RegimeLabel) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid regime %d", int(r))
	}
	return []byte(r.String()), nil
}

func (r *RegimeLabel) UnmarshalText(b []byte) error {
	v, err := ParseRegimeLabel(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// FeatureCount is the dimension of FeatureVector.
const FeatureCount = 12

// FeatureNames is the fixed column order used for training and inference.
var FeatureNames = [FeatureCount]string{
	"trend_short",
	"trend_medium",
	"trend_long",
	"ema_alignment",
	"vol_20",
	"vol_60",
	"vol_ratio",
	"roc_20",
	"roc_60",
	"breadth_score",
	"avg_correlation",
	"volume_trend",
}

// FeatureVector holds the regime features. ToSlice() order must match FeatureNames.
type FeatureVector struct {
	TrendShort     float64 `json:"trend_short"`
	TrendMedium    float64 `json:"trend_medium"`
	TrendLong      float64 `json:"trend_long"`
	EMAAlignment   float64 `json:"ema_alignment"`
	Vol20          float64 `json:"vol_20"`
	Vol60          float64 `json:"vol_60"`
	VolRatio       float64 `json:"vol_ratio"`
	ROC20          float64 `json:"roc_20"`
	ROC60          float64 `json:"roc_60"`
	BreadthScore   float64 `json:"breadth_score"`
	AvgCorrelation float64 `json:"avg_correlation"`
	VolumeTrend    float64 `json:"volume_trend"`
}

// ToSlice returns the features in FeatureNames order.
func (f FeatureVector) ToSlice() []float64 {
	return []float64{
		f.TrendShort,
		f.TrendMedium,
		f.TrendLong,
		f.EMAAlignment,
		f.Vol20,
		f.Vol60,
		f.VolRatio,
		f.ROC20,
		f.ROC60,
		f.BreadthScore,
		f.AvgCorrelation,
		f.VolumeTrend,
	}
}

// Map returns the features keyed by name.
func (f FeatureVector) Map() map[string]float64 {
	vals := f.ToSlice()
	out := make(map[string]float64, FeatureCount)
	for i, name := range FeatureNames {
		out[name] = vals[i]
	}
	return out
}

// RegimePrediction is the output of the regime predictor.
// When Fallback is true the prediction is a neutral placeholder and Error explains why.
type RegimePrediction struct {
	Symbol        string         `json:"symbol,omitempty"`
	Regime        RegimeLabel    `json:"regime"`
	Confidence    float64        `json:"confidence"`
	Probabilities []float64      `json:"probabilities"`
	Features      *FeatureVector `json:"features,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	Fallback      bool           `json:"fallback"`
	Error         string         `json:"error,omitempty"`
}

// TrainingReport summarizes a regime model training session.
type TrainingReport struct {
	Symbol            string         `json:"symbol,omitempty"`
	Accuracy          float64        `json:"accuracy"`
	SampleCount       int            `json:"sample_count"`
	Skipped           int            `json:"skipped"`
	ClassDistribution map[string]int `json:"class_distribution"`
	Estimators        int            `json:"estimators"`
	TrainedAt         time.Time      `json:"trained_at"`
	Duration          time.Duration  `json:"duration"`
}
