// Package pipeline runs the housing regression end to end: load, split,
// fit a random forest, evaluate it and render the diagnostic charts.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/housingrf/dataset"
	"github.com/YuminosukeSato/housingrf/metrics"
	"github.com/YuminosukeSato/housingrf/pkg/log"
	"github.com/YuminosukeSato/housingrf/preprocessing"
	"github.com/YuminosukeSato/housingrf/sklearn/ensemble"
	"github.com/YuminosukeSato/housingrf/visualize"
)

// Config holds every tunable of a run.
type Config struct {
	// Source of the data set. nil means dataset.DefaultSource().
	Source dataset.Source

	TestSize      float64
	RandomState   int64
	ScaleFeatures bool

	// ModelOptions are applied on top of the forest defaults.
	ModelOptions []ensemble.Option

	// OutputDir receives the charts.
	OutputDir string
}

// DefaultConfig returns a 0.2 test split with seed 42, no scaling, the
// default forest and charts under visualize.DefaultDir.
func DefaultConfig() Config {
	return Config{
		TestSize:    0.2,
		RandomState: 42,
		OutputDir:   visualize.DefaultDir,
	}
}

// Result is the outcome of a successful run.
type Result struct {
	RunID string

	Model        *ensemble.RandomForestRegressor
	Metrics      metrics.Report
	FeatureNames []string
	Importances  []float64

	ImportancePath string
	PredictionPath string

	TrainRows int
	TestRows  int
	Duration  time.Duration
}

// Pipeline runs the stages in a fixed order.
type Pipeline struct {
	cfg    Config
	logger log.Logger
	newID  func() string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger replaces the component logger.
func WithLogger(logger log.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithRunID fixes the run identifier instead of generating a UUID.
func WithRunID(id string) Option {
	return func(p *Pipeline) {
		p.newID = func() string { return id }
	}
}

// New creates a Pipeline for cfg.
func New(cfg Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		logger: log.GetLoggerWithName("pipeline"),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the default pipeline, optionally standardizing features.
func Run(ctx context.Context, scaleFeatures bool) (*Result, error) {
	cfg := DefaultConfig()
	cfg.ScaleFeatures = scaleFeatures
	return New(cfg).Run(ctx)
}

// Run executes LOAD through VISUALIZE_PREDICTIONS. The first failing stage
// aborts the run with a StageError and no partial result.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	runID := p.newID()
	logger := p.logger.With(log.RunIDKey, runID)

	src := p.cfg.Source
	if src == nil {
		src = dataset.DefaultSource()
	}
	viz := visualize.New(p.cfg.OutputDir)

	var (
		X           *dataset.Frame
		y           *dataset.Series
		split       *preprocessing.Split
		forest      *ensemble.RandomForestRegressor
		predictions *mat.VecDense
		report      metrics.Report
		importances []float64
		impPath     string
		predPath    string
	)

	steps := []struct {
		stage Stage
		run   func() error
	}{
		{StageLoad, func() (err error) {
			X, y, err = dataset.LoadFrom(ctx, src)
			return err
		}},
		{StageSplit, func() (err error) {
			split, err = preprocessing.SplitData(X, y,
				preprocessing.WithTestSize(p.cfg.TestSize),
				preprocessing.WithRandomState(p.cfg.RandomState),
				preprocessing.WithScale(p.cfg.ScaleFeatures),
			)
			return err
		}},
		{StageBuild, func() error {
			forest = ensemble.BuildModel(p.cfg.ModelOptions...)
			logger.Debug("Model built", log.ModelNameKey, forest.String())
			return nil
		}},
		{StageFit, func() error {
			return forest.FitContext(ctx, split.XTrain.Data, split.YTrain.Values)
		}},
		{StagePredict, func() error {
			pred, err := forest.Predict(split.XTest.Data)
			if err != nil {
				return err
			}
			rows, _ := pred.Dims()
			predictions = mat.NewVecDense(rows, mat.Col(nil, 0, pred))
			return nil
		}},
		{StageEvaluate, func() (err error) {
			report, err = metrics.RegressionMetrics(split.YTest.Values, predictions)
			return err
		}},
		{StageVisualizeImportance, func() (err error) {
			importances, err = forest.FeatureImportances()
			if err != nil {
				return err
			}
			impPath, err = viz.PlotFeatureImportance(X.Columns, importances)
			return err
		}},
		{StageVisualizePredictions, func() (err error) {
			predPath, err = viz.PlotPredictions(
				mat.Col(nil, 0, split.YTest.Values),
				predictions.RawVector().Data,
			)
			return err
		}},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, newStageError(step.stage, err)
		}
		stageStart := time.Now()
		if err := step.run(); err != nil {
			logger.Error("Stage failed", err, log.StageKey, string(step.stage))
			return nil, newStageError(step.stage, err)
		}
		logger.Info("Stage finished",
			log.StageKey, string(step.stage),
			log.DurationMsKey, time.Since(stageStart).Milliseconds(),
		)
	}

	trainRows, _ := split.XTrain.Dims()
	testRows, _ := split.XTest.Dims()
	res := &Result{
		RunID:          runID,
		Model:          forest,
		Metrics:        report,
		FeatureNames:   append([]string(nil), X.Columns...),
		Importances:    importances,
		ImportancePath: impPath,
		PredictionPath: predPath,
		TrainRows:      trainRows,
		TestRows:       testRows,
		Duration:       time.Since(start),
	}
	logger.Info("Pipeline finished",
		log.StageKey, string(StageDone),
		log.R2ScoreKey, report.R2,
		log.RMSEKey, report.RMSE,
		log.DurationMsKey, res.Duration.Milliseconds(),
	)
	return res, nil
}
