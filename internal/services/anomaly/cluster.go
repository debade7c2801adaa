package anomaly

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"QuantLens/internal/domain/models"
)

// clusterFeatures are standardized before clustering.
func clusterFeatures(a models.Asset) []float64 {
	return []float64{a.QuantScore, a.Volatility, a.Return3M, a.RSI}
}

// DetectClusterAnomalies groups assets with k-means and flags those unusually far from
// their own centroid. Initialization is farthest-first from the first asset, so results
// depend only on the input order.
func (d *Detector) DetectClusterAnomalies(assets []models.Asset) []models.AnomalyRecord {
	assets = models.NormalizeAssets(assets)
	n := len(assets)
	k := n / 3
	if k > 3 {
		k = 3
	}
	if k < 1 {
		return nil
	}

	points := standardize(assets)
	centroids := farthestFirst(points, k)
	assign := make([]int, n)
	for iter := 0; iter < d.cfg.ClusterIterations; iter++ {
		changed := false
		for i, p := range points {
			if c := nearest(p, centroids); c != assign[i] {
				assign[i] = c
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}
		centroids = recompute(points, assign, centroids)
	}

	sizes := make([]int, len(centroids))
	for _, c := range assign {
		sizes[c]++
	}
	// a point alone in its cluster is measured against the nearest populated centroid
	dist := make([]float64, n)
	for i, p := range points {
		if sizes[assign[i]] > 1 {
			dist[i] = euclidean(p, centroids[assign[i]])
			continue
		}
		dist[i] = math.Inf(1)
		for c, centroid := range centroids {
			if c == assign[i] || sizes[c] == 0 {
				continue
			}
			dist[i] = math.Min(dist[i], euclidean(p, centroid))
		}
		if math.IsInf(dist[i], 1) {
			dist[i] = 0
		}
	}
	mean, std := stat.PopMeanStdDev(dist, nil)
	if std == 0 {
		return nil
	}

	var out []models.AnomalyRecord
	for i, a := range assets {
		z := (dist[i] - mean) / std
		if z <= d.cfg.ClusterThreshold {
			continue
		}
		out = append(out, models.AnomalyRecord{
			Ticker:   a.Ticker,
			Type:     models.AnomalyClusterOutlier,
			Severity: d.zSeverity(z),
			Metrics: map[string]float64{
				"cluster":  float64(assign[i]),
				"distance": dist[i],
				"z_score":  z,
			},
			Description: fmt.Sprintf("%s sits %.2f standard deviations farther from its peer cluster than typical", a.Ticker, z),
		})
	}
	return out
}

func standardize(assets []models.Asset) [][]float64 {
	n := len(assets)
	points := make([][]float64, n)
	for i, a := range assets {
		points[i] = clusterFeatures(a)
	}
	dims := len(points[0])
	col := make([]float64, n)
	for j := 0; j < dims; j++ {
		for i := range points {
			col[i] = points[i][j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		for i := range points {
			if std == 0 {
				points[i][j] = 0
				continue
			}
			points[i][j] = (points[i][j] - mean) / std
		}
	}
	return points
}

func farthestFirst(points [][]float64, k int) [][]float64 {
	centroids := [][]float64{clone(points[0])}
	for len(centroids) < k {
		best, bestDist := 0, -1.0
		for i, p := range points {
			dd := euclidean(p, centroids[nearest(p, centroids)])
			if dd > bestDist {
				best, bestDist = i, dd
			}
		}
		centroids = append(centroids, clone(points[best]))
	}
	return centroids
}

func recompute(points [][]float64, assign []int, prev [][]float64) [][]float64 {
	dims := len(points[0])
	sums := make([][]float64, len(prev))
	counts := make([]int, len(prev))
	for c := range sums {
		sums[c] = make([]float64, dims)
	}
	for i, p := range points {
		c := assign[i]
		counts[c]++
		for j, v := range p {
			sums[c][j] += v
		}
	}
	out := make([][]float64, len(prev))
	for c := range sums {
		if counts[c] == 0 {
			out[c] = clone(prev[c])
			continue
		}
		for j := range sums[c] {
			sums[c][j] /= float64(counts[c])
		}
		out[c] = sums[c]
	}
	return out
}

func nearest(p []float64, centroids [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if dd := euclidean(p, centroid); dd < bestDist {
			best, bestDist = c, dd
		}
	}
	return best
}

func euclidean(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return math.Sqrt(s)
}

func clone(v []float64) []float64 {
	return append([]float64(nil), v...)
}
