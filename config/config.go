// Package config loads the command-line configuration from defaults, an
// optional YAML file, an optional .env file and HOUSINGRF_* variables.
package config

import (
	"bytes"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/housingrf/dataset"
	"github.com/YuminosukeSato/housingrf/pkg/errors"
	"github.com/YuminosukeSato/housingrf/pkg/log"
	"github.com/YuminosukeSato/housingrf/pipeline"
	"github.com/YuminosukeSato/housingrf/sklearn/ensemble"
	"github.com/YuminosukeSato/housingrf/sklearn/tree"
	"github.com/YuminosukeSato/housingrf/visualize"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HOUSINGRF_"

// Config represents the complete configuration.
type Config struct {
	Log     log.Config    `yaml:"log"`
	Dataset DatasetConfig `yaml:"dataset"`
	Split   SplitConfig   `yaml:"split"`
	Forest  ForestConfig  `yaml:"forest"`
	Output  OutputConfig  `yaml:"output"`
}

// DatasetConfig selects where the data set is read from.
type DatasetConfig struct {
	// Source is empty (public archive), an http(s) URL, s3://bucket/key or a path.
	Source   string                    `yaml:"source"`
	CacheDir string                    `yaml:"cache_dir"`
	S3       dataset.ObjectCredentials `yaml:"s3"`
}

// SplitConfig configures the train/test split.
type SplitConfig struct {
	TestSize    float64 `yaml:"test_size"`
	RandomState int64   `yaml:"random_state"`
	Scale       bool    `yaml:"scale"`
}

// ForestConfig holds the random forest hyperparameters.
type ForestConfig struct {
	NEstimators     int    `yaml:"n_estimators"`
	MaxDepth        int    `yaml:"max_depth"`
	MaxFeatures     string `yaml:"max_features"`
	MinSamplesSplit int    `yaml:"min_samples_split"`
	MinSamplesLeaf  int    `yaml:"min_samples_leaf"`
	Bootstrap       bool   `yaml:"bootstrap"`
	RandomState     int64  `yaml:"random_state"`
	NJobs           int    `yaml:"n_jobs"`
}

// OutputConfig configures where charts are written.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Log: log.DefaultConfig(),
		Dataset: DatasetConfig{
			CacheDir: dataset.DefaultCacheDir(),
		},
		Split: SplitConfig{
			TestSize:    0.2,
			RandomState: 42,
		},
		Forest: ForestConfig{
			NEstimators:     200,
			MaxDepth:        0,
			MaxFeatures:     "1.0",
			MinSamplesSplit: 2,
			MinSamplesLeaf:  1,
			Bootstrap:       true,
			RandomState:     42,
			NJobs:           -1,
		},
		Output: OutputConfig{
			Dir: visualize.DefaultDir,
		},
	}
}

// Load builds a Config. path names an optional YAML file ("" skips it).
// envFiles are loaded with godotenv before the environment overrides are
// read; by default ".env" is tried. Missing env files are ignored, a
// missing YAML file is an error.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, errors.Wrapf(err, "load config file %s", path)
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, errors.Wrapf(err, "load env file %s", f)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile reads configuration from a YAML file.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	// 空ファイルはデフォルトのまま
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnvOverrides applies HOUSINGRF_* environment variable overrides.
func applyEnvOverrides(cfg *Config) error {
	e := envReader{}

	e.str("LOG_LEVEL", &cfg.Log.Level)
	e.str("LOG_FORMAT", &cfg.Log.Format)
	e.str("LOG_FILE", &cfg.Log.File)

	e.str("DATASET_SOURCE", &cfg.Dataset.Source)
	e.str("DATASET_CACHE_DIR", &cfg.Dataset.CacheDir)
	e.str("S3_ENDPOINT", &cfg.Dataset.S3.Endpoint)
	e.str("S3_ACCESS_KEY", &cfg.Dataset.S3.AccessKey)
	e.str("S3_SECRET_KEY", &cfg.Dataset.S3.SecretKey)
	e.boolean("S3_USE_SSL", &cfg.Dataset.S3.UseSSL)
	e.str("S3_REGION", &cfg.Dataset.S3.Region)

	e.float("SPLIT_TEST_SIZE", &cfg.Split.TestSize)
	e.int64("SPLIT_RANDOM_STATE", &cfg.Split.RandomState)
	e.boolean("SPLIT_SCALE", &cfg.Split.Scale)

	e.integer("FOREST_N_ESTIMATORS", &cfg.Forest.NEstimators)
	e.integer("FOREST_MAX_DEPTH", &cfg.Forest.MaxDepth)
	e.str("FOREST_MAX_FEATURES", &cfg.Forest.MaxFeatures)
	e.integer("FOREST_MIN_SAMPLES_SPLIT", &cfg.Forest.MinSamplesSplit)
	e.integer("FOREST_MIN_SAMPLES_LEAF", &cfg.Forest.MinSamplesLeaf)
	e.boolean("FOREST_BOOTSTRAP", &cfg.Forest.Bootstrap)
	e.int64("FOREST_RANDOM_STATE", &cfg.Forest.RandomState)
	e.integer("FOREST_N_JOBS", &cfg.Forest.NJobs)

	e.str("OUTPUT_DIR", &cfg.Output.Dir)

	return e.err
}

// envReader keeps the first parse error so callers can chain lookups.
type envReader struct {
	err error
}

func (e *envReader) lookup(name string) (string, bool) {
	if e.err != nil {
		return "", false
	}
	v, ok := os.LookupEnv(EnvPrefix + name)
	return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
}

func (e *envReader) fail(name, value string, err error) {
	e.err = errors.NewValidationError(EnvPrefix+name, err.Error(), value)
}

func (e *envReader) str(name string, dst *string) {
	if v, ok := e.lookup(name); ok {
		*dst = v
	}
}

func (e *envReader) integer(name string, dst *int) {
	if v, ok := e.lookup(name); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(name, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) int64(name string, dst *int64) {
	if v, ok := e.lookup(name); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.fail(name, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) float(name string, dst *float64) {
	if v, ok := e.lookup(name); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(name, v, err)
			return
		}
		*dst = f
	}
}

func (e *envReader) boolean(name string, dst *bool) {
	if v, ok := e.lookup(name); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(name, v, err)
			return
		}
		*dst = b
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return errors.NewValidationError("log.format", "must be json or console", c.Log.Format)
	}

	if c.Split.TestSize <= 0 || c.Split.TestSize >= 1 {
		return errors.NewValidationError("split.test_size", "must be in (0, 1)", c.Split.TestSize)
	}

	f := c.Forest
	if f.NEstimators < 1 {
		return errors.NewValidationError("forest.n_estimators", "must be at least 1", f.NEstimators)
	}
	if f.MaxDepth < 0 {
		return errors.NewValidationError("forest.max_depth", "must be >= 0 (0 means unlimited)", f.MaxDepth)
	}
	if f.MinSamplesSplit < 2 {
		return errors.NewValidationError("forest.min_samples_split", "must be at least 2", f.MinSamplesSplit)
	}
	if f.MinSamplesLeaf < 1 {
		return errors.NewValidationError("forest.min_samples_leaf", "must be at least 1", f.MinSamplesLeaf)
	}
	if _, err := tree.ParseMaxFeatures(f.MaxFeatures); err != nil {
		return err
	}

	if c.Output.Dir == "" {
		return errors.NewValidationError("output.dir", "must not be empty", c.Output.Dir)
	}
	return nil
}

// ModelOptions converts the forest section into ensemble options.
func (c *Config) ModelOptions() ([]ensemble.Option, error) {
	mf, err := tree.ParseMaxFeatures(c.Forest.MaxFeatures)
	if err != nil {
		return nil, err
	}
	return []ensemble.Option{
		ensemble.WithNEstimators(c.Forest.NEstimators),
		ensemble.WithMaxDepth(c.Forest.MaxDepth),
		ensemble.WithMaxFeatures(mf),
		ensemble.WithMinSamplesSplit(c.Forest.MinSamplesSplit),
		ensemble.WithMinSamplesLeaf(c.Forest.MinSamplesLeaf),
		ensemble.WithBootstrap(c.Forest.Bootstrap),
		ensemble.WithRandomState(c.Forest.RandomState),
		ensemble.WithNJobs(c.Forest.NJobs),
	}, nil
}

// PipelineConfig converts c into a pipeline.Config.
func (c *Config) PipelineConfig() (pipeline.Config, error) {
	cacheDir := c.Dataset.CacheDir
	if cacheDir == "" {
		cacheDir = dataset.DefaultCacheDir()
	}
	src, err := dataset.ParseSource(c.Dataset.Source, cacheDir, c.Dataset.S3)
	if err != nil {
		return pipeline.Config{}, err
	}
	opts, err := c.ModelOptions()
	if err != nil {
		return pipeline.Config{}, err
	}
	return pipeline.Config{
		Source:        src,
		TestSize:      c.Split.TestSize,
		RandomState:   c.Split.RandomState,
		ScaleFeatures: c.Split.Scale,
		ModelOptions:  opts,
		OutputDir:     c.Output.Dir,
	}, nil
}
