package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/housingrf/dataset"
	"github.com/YuminosukeSato/housingrf/pkg/errors"
	"github.com/YuminosukeSato/housingrf/sklearn/ensemble"
	"github.com/YuminosukeSato/housingrf/sklearn/tree"
	"github.com/YuminosukeSato/housingrf/visualize"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// noEnvFile points Load at a file that does not exist so a stray .env in
// the package directory cannot leak into the test.
func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 0.2, cfg.Split.TestSize)
	assert.Equal(t, int64(42), cfg.Split.RandomState)
	assert.False(t, cfg.Split.Scale)
	assert.Equal(t, 200, cfg.Forest.NEstimators)
	assert.Equal(t, "1.0", cfg.Forest.MaxFeatures)
	assert.True(t, cfg.Forest.Bootstrap)
	assert.Equal(t, -1, cfg.Forest.NJobs)
	assert.Equal(t, visualize.DefaultDir, cfg.Output.Dir)
	assert.Equal(t, dataset.DefaultCacheDir(), cfg.Dataset.CacheDir)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "housingrf.yaml", `
log:
  level: debug
  format: json
dataset:
  source: s3://datasets/cal_housing.tgz
  s3:
    endpoint: localhost:9000
    access_key: minio
    secret_key: minio123
split:
  test_size: 0.25
  random_state: 7
  scale: true
forest:
  n_estimators: 50
  max_depth: 12
  max_features: sqrt
  n_jobs: 2
output:
  dir: charts
`)

	cfg, err := Load(path, noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "s3://datasets/cal_housing.tgz", cfg.Dataset.Source)
	assert.Equal(t, "localhost:9000", cfg.Dataset.S3.Endpoint)
	assert.Equal(t, 0.25, cfg.Split.TestSize)
	assert.Equal(t, int64(7), cfg.Split.RandomState)
	assert.True(t, cfg.Split.Scale)
	assert.Equal(t, 50, cfg.Forest.NEstimators)
	assert.Equal(t, 12, cfg.Forest.MaxDepth)
	assert.Equal(t, "sqrt", cfg.Forest.MaxFeatures)
	assert.Equal(t, 2, cfg.Forest.NJobs)
	// 未指定のキーはデフォルトのまま
	assert.Equal(t, 2, cfg.Forest.MinSamplesSplit)
	assert.True(t, cfg.Forest.Bootstrap)
	assert.Equal(t, "charts", cfg.Output.Dir)
}

func TestLoad_EmptyYAMLKeepsDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "empty.yaml", "")
	cfg, err := Load(path, noEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_FileErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), noEnvFile(t))
		assert.Error(t, err)
	})
	t.Run("unknown key", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "bad.yaml", "forest:\n  n_trees: 3\n")
		_, err := Load(path, noEnvFile(t))
		assert.Error(t, err)
	})
	t.Run("malformed yaml", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "bad.yaml", "split: [\n")
		_, err := Load(path, noEnvFile(t))
		assert.Error(t, err)
	})
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, t.TempDir(), "housingrf.yaml", "forest:\n  n_estimators: 50\n")

	t.Setenv("HOUSINGRF_FOREST_N_ESTIMATORS", "25")
	t.Setenv("HOUSINGRF_FOREST_MAX_FEATURES", "0.5")
	t.Setenv("HOUSINGRF_FOREST_BOOTSTRAP", "false")
	t.Setenv("HOUSINGRF_SPLIT_TEST_SIZE", "0.3")
	t.Setenv("HOUSINGRF_SPLIT_RANDOM_STATE", "99")
	t.Setenv("HOUSINGRF_SPLIT_SCALE", "true")
	t.Setenv("HOUSINGRF_S3_USE_SSL", "true")
	t.Setenv("HOUSINGRF_OUTPUT_DIR", "out")
	t.Setenv("HOUSINGRF_LOG_LEVEL", "warn")

	cfg, err := Load(path, noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Forest.NEstimators)
	assert.Equal(t, "0.5", cfg.Forest.MaxFeatures)
	assert.False(t, cfg.Forest.Bootstrap)
	assert.Equal(t, 0.3, cfg.Split.TestSize)
	assert.Equal(t, int64(99), cfg.Split.RandomState)
	assert.True(t, cfg.Split.Scale)
	assert.True(t, cfg.Dataset.S3.UseSSL)
	assert.Equal(t, "out", cfg.Output.Dir)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_EnvOverrideParseError(t *testing.T) {
	t.Setenv("HOUSINGRF_FOREST_N_ESTIMATORS", "many")

	_, err := Load("", noEnvFile(t))
	require.Error(t, err)

	var vErr *errors.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "HOUSINGRF_FOREST_N_ESTIMATORS", vErr.ParamName)
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, ".env", "HOUSINGRF_FOREST_N_JOBS=3\nHOUSINGRF_DATASET_SOURCE=/data/cal_housing.tgz\n")

	// godotenv は os.Setenv するので後始末用に空で登録しておく
	t.Setenv("HOUSINGRF_FOREST_N_JOBS", "")
	t.Setenv("HOUSINGRF_DATASET_SOURCE", "")
	require.NoError(t, os.Unsetenv("HOUSINGRF_FOREST_N_JOBS"))
	require.NoError(t, os.Unsetenv("HOUSINGRF_DATASET_SOURCE"))

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Forest.NJobs)
	assert.Equal(t, "/data/cal_housing.tgz", cfg.Dataset.Source)
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, ".env", "HOUSINGRF_FOREST_MAX_DEPTH=3\n")
	t.Setenv("HOUSINGRF_FOREST_MAX_DEPTH", "8")

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Forest.MaxDepth)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(*Config)
		param string
	}{
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"test size zero", func(c *Config) { c.Split.TestSize = 0 }, "split.test_size"},
		{"test size one", func(c *Config) { c.Split.TestSize = 1 }, "split.test_size"},
		{"estimators", func(c *Config) { c.Forest.NEstimators = 0 }, "forest.n_estimators"},
		{"depth", func(c *Config) { c.Forest.MaxDepth = -1 }, "forest.max_depth"},
		{"min split", func(c *Config) { c.Forest.MinSamplesSplit = 1 }, "forest.min_samples_split"},
		{"min leaf", func(c *Config) { c.Forest.MinSamplesLeaf = 0 }, "forest.min_samples_leaf"},
		{"output", func(c *Config) { c.Output.Dir = "" }, "output.dir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mod(cfg)
			err := cfg.Validate()
			require.Error(t, err)

			var vErr *errors.ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.param, vErr.ParamName)
		})
	}

	t.Run("max features", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Forest.MaxFeatures = "1.5"
		assert.Error(t, cfg.Validate())
	})

	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, DefaultConfig().Validate())
	})
}

func TestConfig_PipelineConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dataset.Source = "/data/cal_housing.tgz"
	cfg.Split.TestSize = 0.25
	cfg.Split.Scale = true
	cfg.Forest.NEstimators = 10
	cfg.Forest.MaxFeatures = "sqrt"
	cfg.Forest.MaxDepth = 6
	cfg.Output.Dir = "charts"

	pc, err := cfg.PipelineConfig()
	require.NoError(t, err)

	src, ok := pc.Source.(*dataset.FileSource)
	require.True(t, ok)
	assert.Equal(t, "/data/cal_housing.tgz", src.Path)
	assert.Equal(t, 0.25, pc.TestSize)
	assert.Equal(t, int64(42), pc.RandomState)
	assert.True(t, pc.ScaleFeatures)
	assert.Equal(t, "charts", pc.OutputDir)

	rf := ensemble.NewRandomForestRegressor(pc.ModelOptions...)
	assert.Equal(t, 10, rf.NEstimators)
	assert.Equal(t, 6, rf.MaxDepth)
	assert.Equal(t, tree.Sqrt(), rf.MaxFeatures)
	assert.True(t, rf.Bootstrap)
	assert.Equal(t, -1, rf.NJobs)
}

func TestConfig_PipelineConfigDefaultSource(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dataset.CacheDir = t.TempDir()

	pc, err := cfg.PipelineConfig()
	require.NoError(t, err)

	src, ok := pc.Source.(*dataset.HTTPSource)
	require.True(t, ok)
	assert.Equal(t, dataset.ArchiveURL, src.URL)
	assert.Equal(t, cfg.Dataset.CacheDir, src.CacheDir)
}

func TestConfig_PipelineConfigBadSource(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dataset.Source = "ftp://example.com/cal_housing.tgz"

	_, err := cfg.PipelineConfig()
	var vErr *errors.ValidationError
	assert.True(t, errors.As(err, &vErr))
}
