package features

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"QuantLens/internal/domain/models"
)

// TradingDaysPerYear annualizes daily volatility.
const TradingDaysPerYear = 252

// MinBenchmarkPoints is the shortest benchmark history that supports the 200-bar EMA.
const MinBenchmarkPoints = 200

// ErrInsufficientData is returned when the benchmark series is too short.
var ErrInsufficientData = errors.New("features: insufficient market data")

// ExtractRegimeFeatures maps market data to the 12 regime features.
// The result depends only on the input.
func ExtractRegimeFeatures(md models.MarketData) (models.FeatureVector, error) {
	prices := md.Benchmark
	if len(prices) < MinBenchmarkPoints {
		return models.FeatureVector{}, fmt.Errorf("benchmark has %d points, need %d: %w", len(prices), MinBenchmarkPoints, ErrInsufficientData)
	}
	for i, p := range prices {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return models.FeatureVector{}, fmt.Errorf("benchmark point %d is not finite: %w", i, ErrInsufficientData)
		}
	}

	last := prices[len(prices)-1]
	ema20 := EMA(prices, 20)
	ema50 := EMA(prices, 50)
	ema200 := EMA(prices, 200)

	var fv models.FeatureVector
	fv.TrendShort = pctFrom(last, ema20)
	fv.TrendMedium = pctFrom(last, ema50)
	fv.TrendLong = pctFrom(last, ema200)
	switch {
	case ema20 > ema50 && ema50 > ema200:
		fv.EMAAlignment = 1
	case ema20 < ema50 && ema50 < ema200:
		fv.EMAAlignment = -1
	}

	returns := SimpleReturns(prices)
	fv.Vol20 = RealizedVolatility(returns, 20, TradingDaysPerYear) * 100
	fv.Vol60 = RealizedVolatility(returns, 60, TradingDaysPerYear) * 100
	fv.VolRatio = 1
	if fv.Vol60 != 0 {
		fv.VolRatio = fv.Vol20 / fv.Vol60
	}

	fv.ROC20 = ROC(prices, 20)
	fv.ROC60 = ROC(prices, 60)
	fv.BreadthScore = Breadth(md.Peers)
	fv.AvgCorrelation = AverageCorrelation(md.Correlation)
	fv.VolumeTrend = VolumeTrend(md.Volume)
	return fv, nil
}

// EMA returns the exponential moving average of prices with period n, seeded with
// the simple average of the first n points. Returns the last price when len(prices) < n.
func EMA(prices []float64, n int) float64 {
	if len(prices) == 0 {
		return 0
	}
	if n <= 0 || len(prices) < n {
		return prices[len(prices)-1]
	}
	ema := stat.Mean(prices[:n], nil)
	k := 2.0 / float64(n+1)
	for _, p := range prices[n:] {
		ema = p*k + ema*(1-k)
	}
	return ema
}

// ROC is the percent change from n bars ago to the last price.
func ROC(prices []float64, n int) float64 {
	if n <= 0 || len(prices) <= n {
		return 0
	}
	base := prices[len(prices)-1-n]
	if base == 0 {
		return 0
	}
	return (prices[len(prices)-1]/base - 1) * 100
}

// Breadth is the fraction of peers trading above their own 20-bar EMA.
// Peers shorter than 20 points are ignored; with none usable the score is 0.5.
func Breadth(peers [][]float64) float64 {
	usable, above := 0, 0
	for _, series := range peers {
		if len(series) < 20 {
			continue
		}
		usable++
		if series[len(series)-1] > EMA(series, 20) {
			above++
		}
	}
	if usable == 0 {
		return 0.5
	}
	return float64(above) / float64(usable)
}

// AverageCorrelation is the mean absolute upper-triangle correlation, 0.5 when unavailable.
func AverageCorrelation(corr [][]float64) float64 {
	sum, n := 0.0, 0
	for i := range corr {
		for j := i + 1; j < len(corr[i]); j++ {
			v := corr[i][j]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			sum += math.Abs(v)
			n++
		}
	}
	if n == 0 {
		return 0.5
	}
	return sum / float64(n)
}

// VolumeTrend compares the last 20 bars of volume to the last 60; 1 when unavailable.
func VolumeTrend(volume []float64) float64 {
	if len(volume) < 60 {
		return 1
	}
	long := stat.Mean(volume[len(volume)-60:], nil)
	if long == 0 || math.IsNaN(long) {
		return 1
	}
	return stat.Mean(volume[len(volume)-20:], nil) / long
}

// CorrelationMatrix returns pairwise Pearson correlations of the trailing returns of each series.
// Series are aligned on their most recent window points.
func CorrelationMatrix(series [][]float64, window int) [][]float64 {
	rets := make([][]float64, 0, len(series))
	for _, s := range series {
		r := SimpleReturns(s)
		if window > 0 && len(r) > window {
			r = r[len(r)-window:]
		}
		rets = append(rets, r)
	}
	n := len(rets)
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
		out[i][i] = 1
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			a, b := tail(rets[i], rets[j])
			c := math.NaN()
			if len(a) >= 3 {
				c = stat.Correlation(a, b, nil)
			}
			out[i][j], out[j][i] = c, c
		}
	}
	return out
}

func tail(a, b []float64) ([]float64, []float64) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	return a[len(a)-n:], b[len(b)-n:]
}

func pctFrom(last, ref float64) float64 {
	if ref == 0 {
		return 0
	}
	return (last - ref) / ref * 100
}
