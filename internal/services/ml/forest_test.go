package ml

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// threeClassData builds a separable dataset where class depends on the first feature.
func threeClassData(n int, seed int64) ([][]float64, []float64) {
	rng := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		c := i % 3
		X[i] = []float64{float64(c)*10 + rng.Float64(), rng.Float64(), rng.Float64() * 5}
		y[i] = float64(c)
	}
	return X, y
}

func TestDecisionTree_FitErrors(t *testing.T) {
	tests := []struct {
		name string
		X    [][]float64
		y    []float64
	}{
		{"empty", nil, nil},
		{"length mismatch", [][]float64{{1}, {2}}, []float64{1}},
		{"ragged", [][]float64{{1, 2}, {3}}, []float64{0, 1}},
		{"zero width", [][]float64{{}, {}}, []float64{0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewDecisionTree(DefaultTreeConfig(), nil).Fit(tt.X, tt.y)
			assert.ErrorIs(t, err, ErrInvalidTrainingData)
		})
	}
}

func TestDecisionTree_PredictBeforeFit(t *testing.T) {
	_, err := NewDecisionTree(DefaultTreeConfig(), nil).Predict([][]float64{{1}})
	assert.ErrorIs(t, err, ErrInvalidModelState)
}

func TestDecisionTree_SplitsOnSingleFeature(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}, {4}, {10}, {11}, {12}, {13}}
	y := []float64{0, 0, 0, 0, 2, 2, 2, 2}
	tree := NewDecisionTree(TreeConfig{MaxDepth: 3, MinSamplesSplit: 2, MinSamplesLeaf: 1}, rand.New(rand.NewSource(1)))
	require.NoError(t, tree.Fit(X, y))

	root := tree.Root()
	require.False(t, root.IsLeaf())
	assert.Equal(t, 0, root.Feature)
	assert.InDelta(t, 7.0, root.Threshold, 1e-12)

	preds, err := tree.Predict([][]float64{{0}, {5}, {9}, {100}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 2, 2}, preds)
}

func TestDecisionTree_StopsOnZeroVariance(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}, {4}, {5}, {6}}
	y := []float64{1, 1, 1, 1, 1, 1}
	tree := NewDecisionTree(DefaultTreeConfig(), nil)
	require.NoError(t, tree.Fit(X, y))
	assert.True(t, tree.Root().IsLeaf())
	assert.Equal(t, 1.0, tree.Root().Value)
}

func TestDecisionTree_RespectsLimits(t *testing.T) {
	X, y := threeClassData(90, 7)
	tree := NewDecisionTree(TreeConfig{MaxDepth: 2, MinSamplesSplit: 5, MinSamplesLeaf: 2}, rand.New(rand.NewSource(3)))
	require.NoError(t, tree.Fit(X, y))
	assert.LessOrEqual(t, tree.Depth(), 2)
}

func TestDecisionTree_DoesNotMutateInput(t *testing.T) {
	X, y := threeClassData(30, 2)
	xCopy := make([][]float64, len(X))
	for i := range X {
		xCopy[i] = append([]float64(nil), X[i]...)
	}
	yCopy := append([]float64(nil), y...)

	require.NoError(t, NewDecisionTree(DefaultTreeConfig(), nil).Fit(X, y))
	assert.Equal(t, xCopy, X)
	assert.Equal(t, yCopy, y)
}

func TestRandomForest_ProbabilitiesSumToOne(t *testing.T) {
	X, y := threeClassData(60, 11)
	forest := NewRandomForest(ForestConfig{NEstimators: 15, Seed: 5})
	require.NoError(t, forest.Fit(X, y))
	assert.Equal(t, 15, forest.Size())

	proba, err := forest.PredictProba(X)
	require.NoError(t, err)
	require.Len(t, proba, len(X))
	for _, row := range proba {
		require.Len(t, row, 3)
		sum := 0.0
		for _, p := range row {
			assert.GreaterOrEqual(t, p, 0.0)
			assert.LessOrEqual(t, p, 1.0)
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}

func TestRandomForest_LearnsSeparableClasses(t *testing.T) {
	X, y := threeClassData(90, 13)
	forest := NewRandomForest(DefaultForestConfig())
	require.NoError(t, forest.Fit(X, y))

	preds, err := forest.Predict(X)
	require.NoError(t, err)
	correct := 0
	for i, p := range preds {
		if float64(p) == y[i] {
			correct++
		}
	}
	assert.Greater(t, float64(correct)/float64(len(y)), 0.9)
}

func TestRandomForest_Deterministic(t *testing.T) {
	X, y := threeClassData(45, 17)
	a := NewRandomForest(ForestConfig{NEstimators: 10, Seed: 99})
	b := NewRandomForest(ForestConfig{NEstimators: 10, Seed: 99})
	require.NoError(t, a.Fit(X, y))
	require.NoError(t, b.Fit(X, y))

	pa, err := a.PredictProba(X)
	require.NoError(t, err)
	pb, err := b.PredictProba(X)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
}

func TestRandomForest_PredictBeforeFit(t *testing.T) {
	forest := NewRandomForest(DefaultForestConfig())
	_, err := forest.PredictProba([][]float64{{1, 2, 3}})
	assert.ErrorIs(t, err, ErrInvalidModelState)
	_, err = forest.Predict([][]float64{{1, 2, 3}})
	assert.ErrorIs(t, err, ErrInvalidModelState)
}

func TestRandomForest_VoteClamps(t *testing.T) {
	forest := NewRandomForest(ForestConfig{NumClasses: 3})
	assert.Equal(t, 0, forest.vote(-4.2))
	assert.Equal(t, 1, forest.vote(1.49))
	assert.Equal(t, 2, forest.vote(1.5))
	assert.Equal(t, 2, forest.vote(math.Inf(1)))
}

func TestArgMax_LowestWinsTies(t *testing.T) {
	assert.Equal(t, 0, ArgMax([]float64{0.4, 0.4, 0.2}))
	assert.Equal(t, 1, ArgMax([]float64{0.2, 0.4, 0.4}))
	assert.Equal(t, 2, ArgMax([]float64{0.1, 0.2, 0.7}))
}

func TestRandomForest_JSONRoundTrip(t *testing.T) {
	X, y := threeClassData(30, 23)
	forest := NewRandomForest(ForestConfig{NEstimators: 5, Seed: 1})
	require.NoError(t, forest.Fit(X, y))

	b, err := json.Marshal(forest)
	require.NoError(t, err)

	restored := &RandomForest{}
	require.NoError(t, json.Unmarshal(b, restored))

	want, err := forest.PredictProba(X)
	require.NoError(t, err)
	got, err := restored.PredictProba(X)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRandomForest_UnmarshalRejectsMalformedTrees(t *testing.T) {
	cases := map[string]string{
		"one child":      `{"config":{"num_classes":3},"features":2,"trees":[{"feature":0,"threshold":1,"left":{"feature":-1,"value":2}}]}`,
		"feature range":  `{"config":{"num_classes":3},"features":2,"trees":[{"feature":5,"threshold":1,"left":{"feature":-1,"value":0},"right":{"feature":-1,"value":2}}]}`,
		"nested one arm": `{"config":{"num_classes":3},"features":2,"trees":[{"feature":0,"threshold":1,"left":{"feature":-1,"value":0},"right":{"feature":1,"threshold":3,"right":{"feature":-1,"value":2}}}]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			restored := &RandomForest{}
			err := json.Unmarshal([]byte(raw), restored)
			assert.ErrorIs(t, err, ErrInvalidModelState)
			assert.NotPanics(t, func() {
				_, err := restored.PredictProba([][]float64{{4, 4}})
				assert.ErrorIs(t, err, ErrInvalidModelState)
			})
		})
	}
}
