package tree

// Option configures a DecisionTreeRegressor.
type Option func(*DecisionTreeRegressor)

// WithMaxDepth limits the depth of the tree. 0 means unlimited.
func WithMaxDepth(depth int) Option {
	return func(t *DecisionTreeRegressor) {
		t.maxDepth = depth
	}
}

// WithMaxFeatures sets the number of features drawn at each split.
func WithMaxFeatures(m MaxFeatures) Option {
	return func(t *DecisionTreeRegressor) {
		t.maxFeatures = m
	}
}

// WithMinSamplesSplit sets the minimum number of rows a node needs to be split.
func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTreeRegressor) {
		t.minSamplesSplit = n
	}
}

// WithMinSamplesLeaf sets the minimum number of rows in each child.
func WithMinSamplesLeaf(n int) Option {
	return func(t *DecisionTreeRegressor) {
		t.minSamplesLeaf = n
	}
}

// WithRandomState seeds the per-split feature sampling.
func WithRandomState(seed int64) Option {
	return func(t *DecisionTreeRegressor) {
		t.randomState = seed
	}
}
