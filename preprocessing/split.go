package preprocessing

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/housingrf/dataset"
	"github.com/YuminosukeSato/housingrf/pkg/errors"
	"github.com/YuminosukeSato/housingrf/pkg/log"
)

// Split holds the four partitions produced by SplitData. Scaler is the
// scaler fitted on XTrain when scaling was requested, nil otherwise.
type Split struct {
	XTrain *dataset.Frame
	XTest  *dataset.Frame
	YTrain *dataset.Series
	YTest  *dataset.Series
	Scaler *StandardScaler
}

type splitConfig struct {
	testSize    float64
	randomState int64
	scale       bool
}

// SplitOption configures SplitData.
type SplitOption func(*splitConfig)

// WithTestSize sets the fraction of rows placed in the test partition.
func WithTestSize(size float64) SplitOption {
	return func(c *splitConfig) {
		c.testSize = size
	}
}

// WithRandomState sets the shuffle seed.
func WithRandomState(seed int64) SplitOption {
	return func(c *splitConfig) {
		c.randomState = seed
	}
}

// WithScale enables standardization fitted on the train partition.
func WithScale(scale bool) SplitOption {
	return func(c *splitConfig) {
		c.scale = scale
	}
}

// SplitData shuffles rows with a seeded permutation and puts the first
// ceil(testSize*n) of them in the test partition and the rest in train.
// Defaults: test size 0.2, seed 42, no scaling. With scaling the scaler
// is fitted on the train rows only and then applied to both partitions.
func SplitData(X *dataset.Frame, y *dataset.Series, opts ...SplitOption) (*Split, error) {
	cfg := splitConfig{testSize: 0.2, randomState: 42}
	for _, opt := range opts {
		opt(&cfg)
	}

	if math.IsNaN(cfg.testSize) || cfg.testSize <= 0 || cfg.testSize >= 1 {
		return nil, errors.NewInvalidSplitConfigError("test_size", "must be in (0, 1)", cfg.testSize)
	}
	if X == nil || y == nil {
		return nil, errors.NewInvalidSplitConfigError("input", "features and target are required", nil)
	}
	n, _ := X.Dims()
	if n == 0 || y.Len() == 0 {
		return nil, errors.NewInvalidSplitConfigError("n_samples", "input has no rows", 0)
	}
	if n != y.Len() {
		return nil, errors.NewInvalidSplitConfigError("n_samples",
			"feature and target row counts differ", fmt.Sprintf("%d != %d", n, y.Len()))
	}

	nTest := int(math.Ceil(cfg.testSize * float64(n)))
	if nTest >= n {
		return nil, errors.NewInvalidSplitConfigError("test_size",
			fmt.Sprintf("leaves no training rows out of %d", n), cfg.testSize)
	}

	perm := rand.New(rand.NewSource(cfg.randomState)).Perm(n)
	testRows, trainRows := perm[:nTest], perm[nTest:]

	s := &Split{
		XTrain: X.Take(trainRows),
		XTest:  X.Take(testRows),
		YTrain: y.Take(trainRows),
		YTest:  y.Take(testRows),
	}

	if cfg.scale {
		scaler := NewStandardScaler()
		trainScaled, err := scaler.FitTransform(s.XTrain.Data)
		if err != nil {
			return nil, err
		}
		testScaled, err := scaler.Transform(s.XTest.Data)
		if err != nil {
			return nil, err
		}
		s.XTrain.Data = mat.DenseCopyOf(trainScaled)
		s.XTest.Data = mat.DenseCopyOf(testScaled)
		s.Scaler = scaler
		log.GetLoggerWithName("preprocessing").Debug("Scaled features",
			log.ModelNameKey, scaler.String(),
			log.OperationKey, log.OperationFitTransform,
		)
	}

	log.GetLoggerWithName("preprocessing").Debug("Split data",
		log.SamplesKey, n,
		"split.train", len(trainRows),
		"split.test", len(testRows),
		"split.scaled", cfg.scale,
		log.RandomSeedKey, cfg.randomState,
	)
	return s, nil
}
