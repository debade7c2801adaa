package features

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// SimpleReturns computes r_t = P_t/P_{t-1} - 1. Non-positive previous prices yield 0.
func SimpleReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, prices[i]/prices[i-1]-1)
	}
	return out
}

// RealizedVolatility is the annualized sample standard deviation of the last window returns.
func RealizedVolatility(returns []float64, window int, barsPerYear float64) float64 {
	if window <= 1 || len(returns) < window {
		return 0
	}
	sd := stat.StdDev(returns[len(returns)-window:], nil)
	if math.IsNaN(sd) {
		return 0
	}
	return sd * math.Sqrt(barsPerYear)
}
