package ml

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
)

// ForestConfig configures the bagged ensemble.
type ForestConfig struct {
	NEstimators     int   `yaml:"n_estimators" json:"n_estimators" default:"50" validate:"gte=1,lte=1000"`
	MaxDepth        int   `yaml:"max_depth" json:"max_depth" default:"8" validate:"gte=1,lte=64"`
	MinSamplesSplit int   `yaml:"min_samples_split" json:"min_samples_split" default:"5" validate:"gte=2"`
	MinSamplesLeaf  int   `yaml:"min_samples_leaf" json:"min_samples_leaf" default:"2" validate:"gte=1"`
	NumClasses      int   `yaml:"num_classes" json:"num_classes" default:"3" validate:"gte=2"`
	Seed            int64 `yaml:"seed" json:"seed" default:"42"`
}

// DefaultForestConfig returns 50 trees of depth 8 over 3 classes, seeded with 42.
func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		NEstimators:     50,
		MaxDepth:        8,
		MinSamplesSplit: 5,
		MinSamplesLeaf:  2,
		NumClasses:      3,
		Seed:            42,
	}
}

func (c ForestConfig) tree() TreeConfig {
	return TreeConfig{MaxDepth: c.MaxDepth, MinSamplesSplit: c.MinSamplesSplit, MinSamplesLeaf: c.MinSamplesLeaf}
}

// RandomForest is a bootstrap-aggregated voting classifier built from regression trees.
// Each tree output is rounded and clamped to a class index and counted as one vote.
type RandomForest struct {
	cfg      ForestConfig
	trees    []*DecisionTree
	features int
}

// NewRandomForest returns an unfitted forest. Zero fields in cfg take the defaults.
func NewRandomForest(cfg ForestConfig) *RandomForest {
	def := DefaultForestConfig()
	if cfg.NEstimators <= 0 {
		cfg.NEstimators = def.NEstimators
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = def.MaxDepth
	}
	if cfg.MinSamplesSplit <= 0 {
		cfg.MinSamplesSplit = def.MinSamplesSplit
	}
	if cfg.MinSamplesLeaf <= 0 {
		cfg.MinSamplesLeaf = def.MinSamplesLeaf
	}
	if cfg.NumClasses < 2 {
		cfg.NumClasses = def.NumClasses
	}
	return &RandomForest{cfg: cfg}
}

// Config returns the effective configuration.
func (f *RandomForest) Config() ForestConfig { return f.cfg }

// Fitted reports whether Fit completed.
func (f *RandomForest) Fitted() bool { return len(f.trees) > 0 }

// Size returns the number of fitted trees.
func (f *RandomForest) Size() int { return len(f.trees) }

// Fit draws NEstimators bootstrap samples and grows one tree per sample.
// A previous fit is discarded. All randomness comes from a *rand.Rand seeded with cfg.Seed.
func (f *RandomForest) Fit(X [][]float64, y []float64) error {
	d, err := validateXY(X, y)
	if err != nil {
		return fmt.Errorf("fit forest: %w", err)
	}
	rng := rand.New(rand.NewSource(f.cfg.Seed))
	n := len(X)
	trees := make([]*DecisionTree, 0, f.cfg.NEstimators)
	bx := make([][]float64, n)
	by := make([]float64, n)
	for e := 0; e < f.cfg.NEstimators; e++ {
		for i := 0; i < n; i++ {
			j := rng.Intn(n)
			bx[i] = X[j]
			by[i] = y[j]
		}
		tree := NewDecisionTree(f.cfg.tree(), rng)
		if err := tree.Fit(bx, by); err != nil {
			return fmt.Errorf("fit estimator %d: %w", e, err)
		}
		trees = append(trees, tree)
	}
	f.trees = trees
	f.features = d
	return nil
}

// PredictProba returns per-row class vote fractions. Each row sums to 1.
func (f *RandomForest) PredictProba(X [][]float64) ([][]float64, error) {
	if !f.Fitted() {
		return nil, ErrInvalidModelState
	}
	k := f.cfg.NumClasses
	out := make([][]float64, len(X))
	for i := range out {
		out[i] = make([]float64, k)
	}
	for _, tree := range f.trees {
		preds, err := tree.Predict(X)
		if err != nil {
			return nil, err
		}
		for i, p := range preds {
			out[i][f.vote(p)]++
		}
	}
	total := float64(len(f.trees))
	for i := range out {
		for c := range out[i] {
			out[i][c] /= total
		}
	}
	return out, nil
}

// Predict returns the arg-max class per row; the lowest class wins ties.
func (f *RandomForest) Predict(X [][]float64) ([]int, error) {
	proba, err := f.PredictProba(X)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(proba))
	for i, row := range proba {
		out[i] = ArgMax(row)
	}
	return out, nil
}

func (f *RandomForest) vote(p float64) int {
	top := float64(f.cfg.NumClasses - 1)
	r := math.Round(p)
	switch {
	case math.IsNaN(r) || r < 0:
		return 0
	case r > top:
		return int(top)
	default:
		return int(r)
	}
}

// ArgMax returns the index of the largest value, preferring the lowest index on ties.
func ArgMax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

type forestJSON struct {
	Config   ForestConfig `json:"config"`
	Features int          `json:"features"`
	Trees    []*TreeNode  `json:"trees"`
}

// MarshalJSON serializes the fitted trees.
func (f *RandomForest) MarshalJSON() ([]byte, error) {
	roots := make([]*TreeNode, len(f.trees))
	for i, t := range f.trees {
		roots[i] = t.root
	}
	return json.Marshal(forestJSON{Config: f.cfg, Features: f.features, Trees: roots})
}

// UnmarshalJSON restores a forest written by MarshalJSON.
func (f *RandomForest) UnmarshalJSON(b []byte) error {
	var raw forestJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("unmarshal forest: %w", err)
	}
	trees := make([]*DecisionTree, 0, len(raw.Trees))
	for i, root := range raw.Trees {
		if root == nil {
			return fmt.Errorf("unmarshal forest: tree %d is empty: %w", i, ErrInvalidModelState)
		}
		if err := root.validate(raw.Features); err != nil {
			return fmt.Errorf("unmarshal forest: tree %d: %w", i, err)
		}
		trees = append(trees, &DecisionTree{cfg: raw.Config.tree().normalized(), root: root, features: raw.Features})
	}
	f.cfg = raw.Config
	f.features = raw.Features
	f.trees = trees
	return nil
}
