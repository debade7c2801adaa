package recommend

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"QuantLens/internal/domain/models"
)

// RebalanceStage flags positions drifting from target weight. Deviations are rounded to
// three decimals before comparison.
func RebalanceStage(s Snapshot) []models.Recommendation {
	threshold := decimal.NewFromFloat(s.Config.RebalanceThreshold)
	high := decimal.NewFromFloat(s.Config.RebalanceHigh)
	total := decimal.NewFromFloat(s.Portfolio.TotalValue)

	var out []models.Recommendation
	for _, p := range s.Portfolio.Positions {
		current := decimal.NewFromFloat(p.CurrentWeight)
		target := decimal.NewFromFloat(p.TargetWeight)
		dev := current.Sub(target).Abs().Round(3)
		if dev.LessThan(threshold) {
			continue
		}
		priority := models.PriorityMedium
		if dev.GreaterThan(high) {
			priority = models.PriorityHigh
		}
		amount, _ := target.Sub(current).Mul(total).Round(2).Float64()
		action := "BUY"
		if amount < 0 {
			action = "SELL"
		}
		devPct, _ := dev.Mul(decimal.NewFromInt(100)).Float64()
		confidence, _ := decimal.Min(dev.Mul(decimal.NewFromInt(5)), decimal.NewFromInt(1)).Float64()
		out = append(out, models.Recommendation{
			Type:     models.RecRebalance,
			Priority: priority,
			Title:    fmt.Sprintf("Rebalance %s", p.Ticker),
			Message: fmt.Sprintf("%s weight %.1f%% deviates %.1f%% from its %.1f%% target",
				p.Ticker, p.CurrentWeight*100, devPct, p.TargetWeight*100),
			Action:     action,
			Confidence: confidence,
			Ticker:     p.Ticker,
			Amount:     &amount,
		})
	}
	return out
}

// RiskWarningStage flags position concentration and market volatility spikes.
func RiskWarningStage(s Snapshot) []models.Recommendation {
	var out []models.Recommendation

	weights := make([]float64, 0, len(s.Portfolio.Positions))
	for _, p := range s.Portfolio.Positions {
		weights = append(weights, p.CurrentWeight)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(weights)))
	n := s.Config.ConcentrationTopN
	if n > len(weights) {
		n = len(weights)
	}
	concentration := 0.0
	for _, w := range weights[:n] {
		concentration += w
	}
	if concentration > s.Config.ConcentrationLimit {
		out = append(out, models.Recommendation{
			Type:       models.RecRiskWarning,
			Priority:   models.PriorityHigh,
			Title:      "High portfolio concentration",
			Message:    fmt.Sprintf("Top %d positions hold %.1f%% of the portfolio", n, concentration*100),
			Action:     "DIVERSIFY",
			Confidence: 0.9,
		})
	}

	if vol := s.Input.MarketVolatility; vol > s.Config.VolatilitySpike {
		out = append(out, models.Recommendation{
			Type:       models.RecRiskWarning,
			Priority:   models.PriorityCritical,
			Title:      "Market volatility spike",
			Message:    fmt.Sprintf("Market volatility at %.1f%% exceeds %.0f%%", vol, s.Config.VolatilitySpike),
			Action:     "REDUCE_RISK",
			Confidence: 0.85,
		})
	}
	return out
}

// BuyOpportunityStage suggests the best-scored assets not already held.
func BuyOpportunityStage(s Snapshot) []models.Recommendation {
	var candidates []models.Asset
	seen := make(map[string]bool)
	for _, a := range s.Input.Assets {
		if seen[a.Ticker] || s.Portfolio.Holds(a.Ticker) || a.QuantScore <= s.Config.BuyScore {
			continue
		}
		seen[a.Ticker] = true
		candidates = append(candidates, a)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].QuantScore > candidates[j].QuantScore
	})
	if len(candidates) > s.Config.BuyTopN {
		candidates = candidates[:s.Config.BuyTopN]
	}

	out := make([]models.Recommendation, 0, len(candidates))
	for _, a := range candidates {
		out = append(out, models.Recommendation{
			Type:       models.RecBuyOpportunity,
			Priority:   models.PriorityMedium,
			Title:      fmt.Sprintf("Buy opportunity: %s", a.Ticker),
			Message:    fmt.Sprintf("%s scores %.1f and is not in the portfolio", a.Ticker, a.QuantScore),
			Action:     "BUY",
			Confidence: a.QuantScore / 100,
			Ticker:     a.Ticker,
		})
	}
	return out
}

// SellAlertStage flags held positions with poor realized returns or weak scores.
func SellAlertStage(s Snapshot) []models.Recommendation {
	var out []models.Recommendation
	for _, p := range s.Portfolio.Positions {
		if perf, ok := s.History[p.Ticker]; ok && perf.Return60D < s.Config.SellReturn60D {
			out = append(out, models.Recommendation{
				Type:       models.RecSellAlert,
				Priority:   models.PriorityHigh,
				Title:      fmt.Sprintf("Sell alert: %s", p.Ticker),
				Message:    fmt.Sprintf("%s returned %.1f%% over 60 days", p.Ticker, perf.Return60D),
				Action:     "SELL",
				Confidence: 0.8,
				Ticker:     p.Ticker,
			})
			continue
		}
		score, ok := positionScore(s, p)
		if ok && score < s.Config.SellScore {
			out = append(out, models.Recommendation{
				Type:       models.RecSellAlert,
				Priority:   models.PriorityMedium,
				Title:      fmt.Sprintf("Weak score: %s", p.Ticker),
				Message:    fmt.Sprintf("%s quant score dropped to %.1f", p.Ticker, score),
				Action:     "REVIEW",
				Confidence: 1 - score/100,
				Ticker:     p.Ticker,
			})
		}
	}
	return out
}

func positionScore(s Snapshot, p models.Position) (float64, bool) {
	if p.QuantScore != nil {
		return *p.QuantScore, true
	}
	if a, ok := s.Asset(p.Ticker); ok {
		return a.QuantScore, true
	}
	return 0, false
}

// DiversificationStage flags sectors holding more than the configured share.
func DiversificationStage(s Snapshot) []models.Recommendation {
	var order []string
	exposure := make(map[string]float64)
	for _, p := range s.Portfolio.Positions {
		sector := p.Sector
		if sector == "" {
			if a, ok := s.Asset(p.Ticker); ok {
				sector = a.Sector
			} else {
				sector = "Unknown"
			}
		}
		if _, ok := exposure[sector]; !ok {
			order = append(order, sector)
		}
		exposure[sector] += p.CurrentWeight
	}

	var out []models.Recommendation
	for _, sector := range order {
		w := exposure[sector]
		if w <= s.Config.SectorLimit {
			continue
		}
		out = append(out, models.Recommendation{
			Type:       models.RecDiversification,
			Priority:   models.PriorityMedium,
			Title:      fmt.Sprintf("Sector overweight: %s", sector),
			Message:    fmt.Sprintf("%s makes up %.1f%% of the portfolio", sector, w*100),
			Action:     "DIVERSIFY",
			Confidence: 0.75,
		})
	}
	return out
}

// RegimeChangeStage reports a confident change of market regime.
func RegimeChangeStage(s Snapshot) []models.Recommendation {
	pred := s.Input.Prediction
	prev := s.Input.PreviousRegime
	if pred == nil || prev == nil || pred.Fallback {
		return nil
	}
	if pred.Regime == *prev || pred.Confidence <= s.Config.RegimeConfidenceMin {
		return nil
	}
	priority := models.PriorityHigh
	action := "INCREASE_EXPOSURE"
	switch pred.Regime {
	case models.RiskOff:
		priority = models.PriorityCritical
		action = "REDUCE_RISK"
	case models.Neutral:
		action = "REVIEW"
	}
	regime := pred.Regime
	return []models.Recommendation{{
		Type:       models.RecRegimeChange,
		Priority:   priority,
		Title:      fmt.Sprintf("Regime change: %s to %s", prev.String(), regime.String()),
		Message:    fmt.Sprintf("Market regime shifted to %s with %.0f%% confidence", regime.String(), pred.Confidence*100),
		Action:     action,
		Confidence: pred.Confidence,
		Regime:     &regime,
	}}
}
