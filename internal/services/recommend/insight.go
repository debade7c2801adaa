package recommend

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"QuantLens/internal/domain/models"
)

const (
	transitionImproving     = "improving"
	transitionDeteriorating = "deteriorating"
	transitionStable        = "stable"
)

var signalBands = []string{
	models.SignalStrongSell,
	models.SignalSell,
	models.SignalHold,
	models.SignalBuy,
	models.SignalStrongBuy,
}

// AnalyzeAssetML builds the per-asset micro-report against its peers and the regime in input.
func (s *Synthesizer) AnalyzeAssetML(asset models.Asset, input models.RecommendationInput, peers []models.Asset) models.AssetInsight {
	asset = asset.WithDefaults()
	peers = models.NormalizeAssets(peers)
	others := make([]models.Asset, 0, len(peers))
	for _, p := range peers {
		if p.Ticker != asset.Ticker {
			others = append(others, p)
		}
	}
	return models.AssetInsight{
		Ticker:       asset.Ticker,
		RegimeImpact: regimeImpact(asset, input, others),
		Momentum:     momentumShift(asset, others),
		Signal:       compositeSignal(asset),
		Risk:         riskAssessment(asset),
		Timestamp:    s.now(),
	}
}

func regimeImpact(a models.Asset, input models.RecommendationInput, peers []models.Asset) models.RegimeImpact {
	rel := 1.0
	if len(peers) > 0 {
		vols := make([]float64, len(peers))
		for i, p := range peers {
			vols[i] = p.Volatility
		}
		if m := stat.Mean(vols, nil); m > 0 {
			rel = a.Volatility / m
		}
	}

	profile := models.ProfileBalanced
	switch {
	case a.Volatility < 20 && rel < 0.9:
		profile = models.ProfileDefensive
	case a.Volatility > 30 || rel > 1.2:
		profile = models.ProfileAggressive
	}

	current := models.Neutral
	if input.Prediction != nil && !input.Prediction.Fallback {
		current = input.Prediction.Regime
	}
	previous := current
	if input.PreviousRegime != nil {
		previous = *input.PreviousRegime
	}
	transition := transitionStable
	switch {
	case current > previous:
		transition = transitionImproving
	case current < previous:
		transition = transitionDeteriorating
	}

	favored := ""
	switch {
	case transition == transitionDeteriorating:
		favored = models.ProfileDefensive
	case transition == transitionImproving:
		favored = models.ProfileAggressive
	case current == models.RiskOff:
		favored = models.ProfileDefensive
	case current == models.RiskOn:
		favored = models.ProfileAggressive
	}

	impact := models.ImpactNeutral
	if favored != "" && profile != models.ProfileBalanced {
		if profile == favored {
			impact = models.ImpactFavorable
		} else {
			impact = models.ImpactUnfavorable
		}
	}
	return models.RegimeImpact{
		Profile:            profile,
		Transition:         previous.String() + "->" + current.String(),
		Impact:             impact,
		RelativeVolatility: rel,
	}
}

func momentumShift(a models.Asset, peers []models.Asset) models.MomentumShift {
	pct := 0.5
	if len(peers) > 0 {
		below := 0
		for _, p := range peers {
			if p.Return6M < a.Return6M {
				below++
			}
		}
		pct = float64(below) / float64(len(peers))
	}
	accel := a.Return6M - a.Return12M/2

	label := models.MomentumStable
	switch {
	case pct >= 0.8 && accel > 0:
		label = models.MomentumStrongPositive
	case pct <= 0.2 && accel < 0:
		label = models.MomentumStrongNegative
	case accel > 5:
		label = models.MomentumAccelerating
	case accel < -5:
		label = models.MomentumDecelerating
	}
	return models.MomentumShift{Label: label, Percentile: pct, Acceleration: accel}
}

// rsiOpportunity is 1 when oversold, 0 when overbought and linear in between.
func rsiOpportunity(rsi float64) float64 {
	switch {
	case rsi <= 30:
		return 1
	case rsi >= 70:
		return 0
	default:
		return (70 - rsi) / 40
	}
}

func compositeSignal(a models.Asset) models.MLSignal {
	quant := clamp01(a.QuantScore / 100)
	synergy := clamp01((a.MomentumScore + a.TrendScore) / 200)
	risk := clamp01(a.RiskScore / 100)
	rsi := rsiOpportunity(a.RSI)
	score := 0.4*quant + 0.3*synergy + 0.2*risk + 0.1*rsi

	band := 0
	switch {
	case score >= 0.75:
		band = 4
	case score >= 0.6:
		band = 3
	case score >= 0.4:
		band = 2
	case score >= 0.25:
		band = 1
	}
	damped := false
	if a.Volatility > 40 && band != 2 {
		damped = true
		if band > 2 {
			band--
		} else {
			band++
		}
	}
	return models.MLSignal{
		Signal: signalBands[band],
		Score:  score,
		Damped: damped,
		Components: map[string]float64{
			"quant":           quant,
			"synergy":         synergy,
			"risk":            risk,
			"rsi_opportunity": rsi,
		},
	}
}

func riskAssessment(a models.Asset) models.RiskAssessment {
	vol := math.Min(a.Volatility/60, 1) * 100
	dd := math.Min(math.Abs(a.MaxDrawdown)/50, 1) * 100
	quality := 100 - a.RiskScore
	score := math.Max(0, math.Min(100, 0.4*vol+0.35*dd+0.25*quality))

	level := models.RiskVeryHigh
	switch {
	case score < 25:
		level = models.RiskLow
	case score < 50:
		level = models.RiskModerate
	case score < 75:
		level = models.RiskHigh
	}
	return models.RiskAssessment{Score: score, Level: level}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
