// Package ensemble provides a bagged random forest of regression trees.
package ensemble

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/housingrf/core/model"
	"github.com/YuminosukeSato/housingrf/core/parallel"
	"github.com/YuminosukeSato/housingrf/metrics"
	"github.com/YuminosukeSato/housingrf/pkg/errors"
	"github.com/YuminosukeSato/housingrf/pkg/log"
	"github.com/YuminosukeSato/housingrf/sklearn/tree"
)

const modelName = "RandomForestRegressor"

var (
	_ model.TreeRegressor = (*RandomForestRegressor)(nil)
	_ model.ContextFitter = (*RandomForestRegressor)(nil)
)

// RandomForestRegressor averages regression trees grown on bootstrap
// resamples with random feature subsets at every split.
//
// Fit must not be called concurrently on the same instance. Once fitted,
// Predict and FeatureImportances are safe for concurrent use.
type RandomForestRegressor struct {
	state *model.StateManager

	// Hyperparameters
	NEstimators     int              // Number of trees
	MaxDepth        int              // Maximum depth, 0 = unlimited
	MaxFeatures     tree.MaxFeatures // Features drawn per split
	MinSamplesSplit int              // Minimum rows to split a node
	MinSamplesLeaf  int              // Minimum rows per leaf
	Bootstrap       bool             // Resample rows with replacement per tree
	RandomState     int64            // Seed of the whole ensemble
	NJobs           int              // Concurrent tree fits, <= 0 = all CPUs

	trees       []*tree.DecisionTreeRegressor
	importances []float64
}

// NewRandomForestRegressor creates an unfitted forest with 200 trees grown
// to purity on all features, bootstrap on, seed 42, all CPUs.
func NewRandomForestRegressor(opts ...Option) *RandomForestRegressor {
	f := &RandomForestRegressor{
		state:           model.NewStateManager(),
		NEstimators:     200,
		MaxDepth:        0,
		MaxFeatures:     tree.Fraction(1.0),
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
		RandomState:     42,
		NJobs:           -1,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// BuildModel returns a configured, untrained forest. No data is touched.
func BuildModel(opts ...Option) *RandomForestRegressor {
	return NewRandomForestRegressor(opts...)
}

// Fit trains the forest on X (n_samples × n_features) and y (n_samples × 1).
func (f *RandomForestRegressor) Fit(X, y mat.Matrix) error {
	return f.FitContext(context.Background(), X, y)
}

// FitContext trains the forest, stopping early when ctx is cancelled.
//
// Two seeds per tree are drawn up front from a generator seeded with
// RandomState, one for the bootstrap sample and one for feature sampling.
// Each tree is stored at its own index, so the result does not depend on
// how the fits are scheduled.
func (f *RandomForestRegressor) FitContext(ctx context.Context, X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestRegressor.Fit")

	logger := log.GetLoggerWithName("ensemble").With(log.ModelNameKey, modelName)
	start := time.Now()

	if err := f.validate(); err != nil {
		return err
	}
	d, err := tree.NewDataset(X, y)
	if err != nil {
		return err
	}
	nSamples, nFeatures := d.Dims()
	if _, err := f.MaxFeatures.Resolve(nFeatures); err != nil {
		return err
	}

	type treeSeeds struct{ bootstrap, split int64 }
	master := rand.New(rand.NewSource(f.RandomState))
	seeds := make([]treeSeeds, f.NEstimators)
	for i := range seeds {
		seeds[i] = treeSeeds{bootstrap: master.Int63(), split: master.Int63()}
	}

	workers := f.workers()
	logger.Debug("Fitting forest",
		log.OperationKey, log.OperationFit,
		log.TreesKey, f.NEstimators,
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		log.WorkersKey, workers,
		log.HyperParamsKey, f.GetParams(),
	)

	trees := make([]*tree.DecisionTreeRegressor, f.NEstimators)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range trees {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t := tree.NewDecisionTreeRegressor(
				tree.WithMaxDepth(f.MaxDepth),
				tree.WithMaxFeatures(f.MaxFeatures),
				tree.WithMinSamplesSplit(f.MinSamplesSplit),
				tree.WithMinSamplesLeaf(f.MinSamplesLeaf),
				tree.WithRandomState(seeds[i].split),
			)
			var weights []float64
			if f.Bootstrap {
				weights = bootstrapCounts(nSamples, seeds[i].bootstrap)
			}
			if err := t.FitDataset(d, weights); err != nil {
				return errors.Wrapf(err, "tree %d", i)
			}
			trees[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errors.WithStack(err)
	}

	importances, err := averageImportances(trees, nFeatures)
	if err != nil {
		return err
	}

	f.trees = trees
	f.importances = importances
	f.state.SetFitted(nFeatures, nSamples)

	logger.Info("Forest fitted",
		log.TreesKey, len(trees),
		log.SamplesKey, nSamples,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// bootstrapCounts draws n rows with replacement and returns how often each
// row was drawn.
func bootstrapCounts(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	counts := make([]float64, n)
	for i := 0; i < n; i++ {
		counts[rng.Intn(n)]++
	}
	return counts
}

// averageImportances averages the per-tree normalized importances and
// normalizes the mean again. All zeros when no tree has a split.
func averageImportances(trees []*tree.DecisionTreeRegressor, nFeatures int) ([]float64, error) {
	mean := make([]float64, nFeatures)
	for _, t := range trees {
		imp, err := t.FeatureImportances()
		if err != nil {
			return nil, err
		}
		floats.Add(mean, imp)
	}
	if total := floats.Sum(mean); total > 0 {
		floats.Scale(1/total, mean)
	}
	return mean, nil
}

func (f *RandomForestRegressor) validate() error {
	if f.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be at least 1", f.NEstimators)
	}
	if f.MaxDepth < 0 {
		return errors.NewValidationError("max_depth", "must be >= 0 (0 means unlimited)", f.MaxDepth)
	}
	if f.MinSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be at least 2", f.MinSamplesSplit)
	}
	if f.MinSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", f.MinSamplesLeaf)
	}
	return nil
}

func (f *RandomForestRegressor) workers() int {
	if f.NJobs <= 0 {
		return runtime.NumCPU()
	}
	return f.NJobs
}

// Predict returns the mean tree prediction for every row of X as an
// n_samples × 1 matrix.
func (f *RandomForestRegressor) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "RandomForestRegressor.Predict")

	if err := f.state.RequireFitted(modelName, "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := f.state.RequireFeatures("RandomForestRegressor.Predict", cols); err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, errors.NewEmptyInputError("RandomForestRegressor.Predict")
	}

	out := make([]float64, rows)
	nTrees := float64(len(f.trees))
	parallel.ParallelizeWithThreshold(rows, parallel.DefaultThreshold, f.workers(), func(start, end int) {
		row := make([]float64, cols)
		for i := start; i < end; i++ {
			mat.Row(row, i, X)
			var sum float64
			for _, t := range f.trees {
				sum += t.PredictRow(row)
			}
			out[i] = sum / nTrees
		}
	})

	log.GetLoggerWithName("ensemble").Debug("Predicted",
		log.ModelNameKey, modelName,
		log.OperationKey, log.OperationPredict,
		log.PredsKey, rows,
	)
	return mat.NewDense(rows, 1, out), nil
}

// FeatureImportances returns impurity-based importances aligned to the
// training columns. They are non-negative and sum to 1 unless every tree is
// a single leaf, in which case they are all zero.
func (f *RandomForestRegressor) FeatureImportances() ([]float64, error) {
	if err := f.state.RequireFitted(modelName, "FeatureImportances"); err != nil {
		return nil, err
	}
	return append([]float64(nil), f.importances...), nil
}

// Score returns R² of the predictions for X against y.
func (f *RandomForestRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := f.Predict(X)
	if err != nil {
		return 0, err
	}
	yRows, yCols := y.Dims()
	if yCols != 1 {
		return 0, errors.NewDimensionError("RandomForestRegressor.Score", 1, yCols, 1)
	}
	return metrics.R2Score(
		mat.NewVecDense(yRows, mat.Col(nil, 0, y)),
		mat.NewVecDense(yRows, mat.Col(nil, 0, pred)),
	)
}

// IsFitted reports whether Fit has completed.
func (f *RandomForestRegressor) IsFitted() bool {
	return f.state.IsFitted()
}

// Estimators returns the fitted trees in ensemble order.
func (f *RandomForestRegressor) Estimators() []*tree.DecisionTreeRegressor {
	return append([]*tree.DecisionTreeRegressor(nil), f.trees...)
}

// GetParams returns the hyperparameters.
func (f *RandomForestRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      f.NEstimators,
		"max_depth":         f.MaxDepth,
		"max_features":      f.MaxFeatures.String(),
		"min_samples_split": f.MinSamplesSplit,
		"min_samples_leaf":  f.MinSamplesLeaf,
		"bootstrap":         f.Bootstrap,
		"random_state":      f.RandomState,
		"n_jobs":            f.NJobs,
	}
}

func (f *RandomForestRegressor) String() string {
	depth := "None"
	if f.MaxDepth > 0 {
		depth = fmt.Sprint(f.MaxDepth)
	}
	return fmt.Sprintf("RandomForestRegressor(n_estimators=%d, max_depth=%s, max_features=%s, min_samples_split=%d, random_state=%d)",
		f.NEstimators, depth, f.MaxFeatures, f.MinSamplesSplit, f.RandomState)
}
