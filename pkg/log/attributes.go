// Package log defines standard attribute keys for pipeline operations.
//
// Keys follow a hierarchical naming convention (e.g. "model.name",
// "data.samples") so that logs can be filtered consistently.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of machine learning model.
	// Examples: "RandomForestRegressor", "StandardScaler"
	ModelNameKey = "model.name"

	// OperationKey specifies the machine learning operation being performed.
	// Standard values: "fit", "predict", "fit_transform"
	OperationKey = "ml.operation"

	// ComponentKey identifies which component or package is performing the operation.
	ComponentKey = "ml.component"

	// StageKey names the pipeline stage (LOAD, SPLIT, FIT, ...).
	StageKey = "pipeline.stage"

	// RunIDKey identifies one pipeline run.
	RunIDKey = "pipeline.run_id"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of samples (rows) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns) in the dataset.
	FeaturesKey = "data.features"

	// SourceKey identifies where a dataset was read from.
	SourceKey = "data.source"

	// PathKey is a filesystem path written or read by an operation.
	PathKey = "io.path"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// R2ScoreKey records R² coefficient of determination for regression.
	R2ScoreKey = "metrics.r2_score"

	// RMSEKey records the root mean squared error.
	RMSEKey = "metrics.rmse"

	// TreesKey records the number of trees in an ensemble.
	TreesKey = "model.trees"

	// WorkersKey records the number of concurrent workers.
	WorkersKey = "infra.workers"
)

// Prediction Context
const (
	// PredsKey indicates the number of predictions made.
	PredsKey = "preds.count"
)

// Hyperparameters and Configuration
const (
	// HyperParamsKey contains model hyperparameters as a structured object.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Error Context
const (
	// ErrAttrKey holds the error value of an Error record.
	ErrAttrKey = "error"

	// StacktraceKey contains stack trace information for debugging.
	// Automatically populated from cockroachdb/errors stacks.
	StacktraceKey = "error.stacktrace"
)

// Standard attribute value constants for common operations.
const (
	OperationFit          = "fit"
	OperationPredict      = "predict"
	OperationFitTransform = "fit_transform"
)
