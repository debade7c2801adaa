package ml

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// TreeConfig bounds tree growth.
type TreeConfig struct {
	MaxDepth        int `yaml:"max_depth" json:"max_depth" default:"8"`
	MinSamplesSplit int `yaml:"min_samples_split" json:"min_samples_split" default:"5"`
	MinSamplesLeaf  int `yaml:"min_samples_leaf" json:"min_samples_leaf" default:"2"`
}

// DefaultTreeConfig returns the growth limits used by the forest.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{MaxDepth: 8, MinSamplesSplit: 5, MinSamplesLeaf: 2}
}

func (c TreeConfig) normalized() TreeConfig {
	if c.MaxDepth <= 0 {
		c.MaxDepth = 8
	}
	if c.MinSamplesSplit < 2 {
		c.MinSamplesSplit = 2
	}
	if c.MinSamplesLeaf < 1 {
		c.MinSamplesLeaf = 1
	}
	return c
}

// TreeNode is a split or a leaf. Leaves have nil children.
type TreeNode struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Value     float64   `json:"value"`
	Left      *TreeNode `json:"left,omitempty"`
	Right     *TreeNode `json:"right,omitempty"`
}

// IsLeaf reports whether n has no children.
func (n *TreeNode) IsLeaf() bool {
	return n.Left == nil && n.Right == nil
}

// validate checks that every split has both children and a feature index below features.
func (n *TreeNode) validate(features int) error {
	if n.IsLeaf() {
		return nil
	}
	if n.Left == nil || n.Right == nil {
		return fmt.Errorf("split on feature %d has one child: %w", n.Feature, ErrInvalidModelState)
	}
	if n.Feature < 0 || n.Feature >= features {
		return fmt.Errorf("split feature %d out of range [0,%d): %w", n.Feature, features, ErrInvalidModelState)
	}
	if err := n.Left.validate(features); err != nil {
		return err
	}
	return n.Right.validate(features)
}

// DecisionTree is a variance-minimizing regression tree.
type DecisionTree struct {
	cfg      TreeConfig
	root     *TreeNode
	features int
	rng      *rand.Rand
}

// NewDecisionTree creates an unfitted tree. rng drives per-node feature subsampling;
// a nil rng falls back to a fixed seed.
func NewDecisionTree(cfg TreeConfig, rng *rand.Rand) *DecisionTree {
	if rng == nil {
		rng = rand.New(rand.NewSource(42))
	}
	return &DecisionTree{cfg: cfg.normalized(), rng: rng}
}

// Root exposes the fitted structure, nil before Fit.
func (t *DecisionTree) Root() *TreeNode { return t.root }

// Depth returns the number of levels below the root.
func (t *DecisionTree) Depth() int { return depth(t.root) }

func depth(n *TreeNode) int {
	if n == nil || n.IsLeaf() {
		return 0
	}
	l, r := depth(n.Left), depth(n.Right)
	if l > r {
		return l + 1
	}
	return r + 1
}

// Fit grows the tree on X, y. Inputs are not modified.
func (t *DecisionTree) Fit(X [][]float64, y []float64) error {
	d, err := validateXY(X, y)
	if err != nil {
		return fmt.Errorf("fit tree: %w", err)
	}
	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	t.features = d
	t.root = t.grow(X, y, idx, 0)
	return nil
}

// Predict returns the leaf value reached by each row.
func (t *DecisionTree) Predict(X [][]float64) ([]float64, error) {
	if t.root == nil {
		return nil, ErrInvalidModelState
	}
	out := make([]float64, len(X))
	for i, row := range X {
		if len(row) != t.features {
			return nil, fmt.Errorf("predict row %d: want %d features, got %d: %w", i, t.features, len(row), ErrInvalidTrainingData)
		}
		out[i] = t.predictOne(row)
	}
	return out, nil
}

func (t *DecisionTree) predictOne(row []float64) float64 {
	n := t.root
	for !n.IsLeaf() {
		if row[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

func (t *DecisionTree) grow(X [][]float64, y []float64, idx []int, level int) *TreeNode {
	mean, variance := meanVariance(y, idx)
	leaf := &TreeNode{Feature: -1, Value: mean}
	if level >= t.cfg.MaxDepth || len(idx) < t.cfg.MinSamplesSplit || variance == 0 {
		return leaf
	}

	feature, threshold, ok := t.bestSplit(X, y, idx)
	if !ok {
		return leaf
	}
	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return &TreeNode{
		Feature:   feature,
		Threshold: threshold,
		Value:     mean,
		Left:      t.grow(X, y, left, level+1),
		Right:     t.grow(X, y, right, level+1),
	}
}

// bestSplit searches midpoints of a random feature subset for the lowest weighted child variance.
// The first candidate wins ties.
func (t *DecisionTree) bestSplit(X [][]float64, y []float64, idx []int) (int, float64, bool) {
	bestFeature, bestThreshold := -1, 0.0
	bestScore := math.Inf(1)
	n := float64(len(idx))

	type pair struct{ x, y float64 }
	pairs := make([]pair, len(idx))

	for _, f := range t.featureSubset() {
		for k, i := range idx {
			pairs[k] = pair{X[i][f], y[i]}
		}
		sort.SliceStable(pairs, func(a, b int) bool { return pairs[a].x < pairs[b].x })

		// prefix sums give O(1) child variance per candidate
		var totalSum, totalSq float64
		for _, p := range pairs {
			totalSum += p.y
			totalSq += p.y * p.y
		}
		var leftSum, leftSq float64
		for k := 0; k < len(pairs)-1; k++ {
			leftSum += pairs[k].y
			leftSq += pairs[k].y * pairs[k].y
			if pairs[k].x == pairs[k+1].x {
				continue
			}
			nl := float64(k + 1)
			nr := n - nl
			if int(nl) < t.cfg.MinSamplesLeaf || int(nr) < t.cfg.MinSamplesLeaf {
				continue
			}
			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			varL := leftSq/nl - (leftSum/nl)*(leftSum/nl)
			varR := rightSq/nr - (rightSum/nr)*(rightSum/nr)
			score := (nl*math.Max(varL, 0) + nr*math.Max(varR, 0)) / n
			if score < bestScore {
				bestScore = score
				bestFeature = f
				bestThreshold = (pairs[k].x + pairs[k+1].x) / 2
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

func (t *DecisionTree) featureSubset() []int {
	k := int(math.Round(math.Sqrt(float64(t.features))))
	if k < 1 {
		k = 1
	}
	if k > t.features {
		k = t.features
	}
	return t.rng.Perm(t.features)[:k]
}

func meanVariance(y []float64, idx []int) (float64, float64) {
	if len(idx) == 0 {
		return 0, 0
	}
	var sum float64
	for _, i := range idx {
		sum += y[i]
	}
	mean := sum / float64(len(idx))
	var ss float64
	for _, i := range idx {
		d := y[i] - mean
		ss += d * d
	}
	return mean, ss / float64(len(idx))
}
