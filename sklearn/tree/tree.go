// Package tree implements a CART regression tree with variance reduction,
// weighted (bootstrap) samples and per-split feature subsampling.
package tree

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/housingrf/core/model"
	"github.com/YuminosukeSato/housingrf/core/parallel"
	"github.com/YuminosukeSato/housingrf/metrics"
	"github.com/YuminosukeSato/housingrf/pkg/errors"
)

const leafChild = -1

var _ model.TreeRegressor = (*DecisionTreeRegressor)(nil)

// node is one entry of the tree arena. Internal nodes send x[feature] <=
// threshold to left and the rest to right; leaves have left == right == -1.
type node struct {
	feature   int
	threshold float64
	left      int
	right     int
	value     float64 // weighted mean of the target
	impurity  float64 // weighted variance of the target
	weight    float64 // sum of sample weights
	nSamples  int     // distinct training rows
}

func (n *node) isLeaf() bool {
	return n.left == leafChild
}

// DecisionTreeRegressor is a regression tree stored as a flat node arena.
type DecisionTreeRegressor struct {
	state *model.StateManager

	maxDepth        int
	maxFeatures     MaxFeatures
	minSamplesSplit int
	minSamplesLeaf  int
	randomState     int64

	nodes       []node
	importances []float64
	depth       int
}

// NewDecisionTreeRegressor creates an unfitted tree. Defaults: unlimited
// depth, all features, min_samples_split 2, min_samples_leaf 1, seed 0.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	t := &DecisionTreeRegressor{
		state:           model.NewStateManager(),
		maxFeatures:     AllFeatures(),
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ValidateParams checks the hyperparameters against a data set width.
func (t *DecisionTreeRegressor) ValidateParams(nFeatures int) (int, error) {
	if t.maxDepth < 0 {
		return 0, errors.NewValidationError("max_depth", "must be >= 0 (0 means unlimited)", t.maxDepth)
	}
	if t.minSamplesSplit < 2 {
		return 0, errors.NewValidationError("min_samples_split", "must be at least 2", t.minSamplesSplit)
	}
	if t.minSamplesLeaf < 1 {
		return 0, errors.NewValidationError("min_samples_leaf", "must be at least 1", t.minSamplesLeaf)
	}
	return t.maxFeatures.Resolve(nFeatures)
}

// Fit builds the tree with every row weighted 1.
func (t *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	d, err := NewDataset(X, y)
	if err != nil {
		return err
	}
	return t.FitDataset(d, nil)
}

// FitDataset builds the tree from d. weights holds a non-negative weight per
// row (bootstrap draw counts); rows with weight 0 are left out. nil weights
// means every row counts once.
func (t *DecisionTreeRegressor) FitDataset(d *Dataset, weights []float64) (err error) {
	defer errors.Recover(&err, "DecisionTreeRegressor.Fit")

	k, err := t.ValidateParams(d.nFeatures)
	if err != nil {
		return err
	}
	if weights == nil {
		weights = make([]float64, d.nSamples)
		for i := range weights {
			weights[i] = 1
		}
	}
	if len(weights) != d.nSamples {
		return errors.NewDimensionError("DecisionTreeRegressor.Fit", d.nSamples, len(weights), 0)
	}

	samples := make([]int, 0, d.nSamples)
	for i, w := range weights {
		if w < 0 {
			return errors.NewValidationError("sample_weight", "must be non-negative", w)
		}
		if w > 0 {
			samples = append(samples, i)
		}
	}
	if len(samples) == 0 {
		return errors.NewValueError("DecisionTreeRegressor.Fit", "all sample weights are zero")
	}

	t.state.Reset()
	b := &builder{
		tree:        t,
		data:        d,
		weights:     weights,
		samples:     samples,
		maxFeatures: k,
		rng:         rand.New(rand.NewSource(t.randomState)),
		scratch:     make([]sortItem, len(samples)),
	}
	t.nodes, t.depth = b.build()
	t.importances = t.computeImportances(d.nFeatures)
	t.state.SetFitted(d.nFeatures, len(samples))
	return nil
}

// computeImportances sums the weighted impurity decrease of every split per
// feature and normalizes the result to 1. A tree without splits yields zeros.
func (t *DecisionTreeRegressor) computeImportances(nFeatures int) []float64 {
	imp := make([]float64, nFeatures)
	for i := range t.nodes {
		n := &t.nodes[i]
		if n.isLeaf() {
			continue
		}
		l, r := &t.nodes[n.left], &t.nodes[n.right]
		imp[n.feature] += n.weight*n.impurity - l.weight*l.impurity - r.weight*r.impurity
	}

	var total float64
	for _, v := range imp {
		total += v
	}
	if total > 0 {
		for i := range imp {
			imp[i] /= total
		}
	}
	return imp
}

// Predict returns an n_samples × 1 matrix of predictions.
func (t *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := t.state.RequireFitted("DecisionTreeRegressor", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := t.state.RequireFeatures("DecisionTreeRegressor.Predict", cols); err != nil {
		return nil, err
	}

	out := make([]float64, rows)
	parallel.ParallelizeWithThreshold(rows, parallel.DefaultThreshold, 0, func(start, end int) {
		row := make([]float64, cols)
		for i := start; i < end; i++ {
			mat.Row(row, i, X)
			out[i] = t.PredictRow(row)
		}
	})
	return mat.NewDense(rows, 1, out), nil
}

// Score returns R² of the predictions for X against y (n_samples × 1).
func (t *DecisionTreeRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := t.Predict(X)
	if err != nil {
		return 0, err
	}
	yRows, yCols := y.Dims()
	if yCols != 1 {
		return 0, errors.NewDimensionError("DecisionTreeRegressor.Score", 1, yCols, 1)
	}
	return metrics.R2Score(
		mat.NewVecDense(yRows, mat.Col(nil, 0, y)),
		mat.NewVecDense(yRows, mat.Col(nil, 0, pred)),
	)
}

// PredictRow walks the tree for a single row. The tree must be fitted and
// len(row) must match the training width.
func (t *DecisionTreeRegressor) PredictRow(row []float64) float64 {
	i := 0
	for {
		n := &t.nodes[i]
		if n.isLeaf() {
			return n.value
		}
		if row[n.feature] <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
}

// FeatureImportances returns the normalized impurity-decrease importances.
func (t *DecisionTreeRegressor) FeatureImportances() ([]float64, error) {
	if err := t.state.RequireFitted("DecisionTreeRegressor", "FeatureImportances"); err != nil {
		return nil, err
	}
	return append([]float64(nil), t.importances...), nil
}

// IsFitted reports whether Fit has completed.
func (t *DecisionTreeRegressor) IsFitted() bool {
	return t.state.IsFitted()
}

// NodeCount returns the number of nodes in the arena.
func (t *DecisionTreeRegressor) NodeCount() int {
	return len(t.nodes)
}

// NLeaves returns the number of leaves.
func (t *DecisionTreeRegressor) NLeaves() int {
	n := 0
	for i := range t.nodes {
		if t.nodes[i].isLeaf() {
			n++
		}
	}
	return n
}

// Depth returns the depth of the deepest leaf (a single leaf has depth 0).
func (t *DecisionTreeRegressor) Depth() int {
	return t.depth
}

// GetParams returns the hyperparameters.
func (t *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"max_depth":         t.maxDepth,
		"max_features":      t.maxFeatures.String(),
		"min_samples_split": t.minSamplesSplit,
		"min_samples_leaf":  t.minSamplesLeaf,
		"random_state":      t.randomState,
	}
}

func (t *DecisionTreeRegressor) String() string {
	if !t.state.IsFitted() {
		return fmt.Sprintf("DecisionTreeRegressor(max_depth=%d, max_features=%s)", t.maxDepth, t.maxFeatures)
	}
	return fmt.Sprintf("DecisionTreeRegressor(nodes=%d, leaves=%d, depth=%d)", t.NodeCount(), t.NLeaves(), t.depth)
}
