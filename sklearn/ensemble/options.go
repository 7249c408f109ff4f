package ensemble

import "github.com/YuminosukeSato/housingrf/sklearn/tree"

// Option configures a RandomForestRegressor.
type Option func(*RandomForestRegressor)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) Option {
	return func(f *RandomForestRegressor) {
		f.NEstimators = n
	}
}

// WithMaxDepth limits tree depth. 0 grows trees until the leaves are pure.
func WithMaxDepth(depth int) Option {
	return func(f *RandomForestRegressor) {
		f.MaxDepth = depth
	}
}

// WithMaxFeatures sets the number of features drawn at each split.
func WithMaxFeatures(m tree.MaxFeatures) Option {
	return func(f *RandomForestRegressor) {
		f.MaxFeatures = m
	}
}

// WithMinSamplesSplit sets the minimum number of rows required to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(f *RandomForestRegressor) {
		f.MinSamplesSplit = n
	}
}

// WithMinSamplesLeaf sets the minimum number of rows in a leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(f *RandomForestRegressor) {
		f.MinSamplesLeaf = n
	}
}

// WithBootstrap toggles bootstrap resampling of the training rows.
func WithBootstrap(bootstrap bool) Option {
	return func(f *RandomForestRegressor) {
		f.Bootstrap = bootstrap
	}
}

// WithRandomState seeds bootstrap resampling and feature sampling.
func WithRandomState(seed int64) Option {
	return func(f *RandomForestRegressor) {
		f.RandomState = seed
	}
}

// WithNJobs sets the number of trees fitted concurrently. Values <= 0 use
// every CPU.
func WithNJobs(n int) Option {
	return func(f *RandomForestRegressor) {
		f.NJobs = n
	}
}
