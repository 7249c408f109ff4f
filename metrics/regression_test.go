package metrics

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/housingrf/pkg/errors"
)

func TestMSE(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   *mat.VecDense
		yPred   *mat.VecDense
		want    float64
		wantErr bool
	}{
		{
			name:  "perfect prediction",
			yTrue: mat.NewVecDense(3, []float64{1.0, 2.0, 3.0}),
			yPred: mat.NewVecDense(3, []float64{1.0, 2.0, 3.0}),
			want:  0.0,
		},
		{
			name:  "simple case",
			yTrue: mat.NewVecDense(3, []float64{3.0, -0.5, 2.0}),
			yPred: mat.NewVecDense(3, []float64{2.5, 0.0, 2.0}),
			want:  0.5 / 3,
		},
		{
			name:    "dimension mismatch",
			yTrue:   mat.NewVecDense(3, []float64{1.0, 2.0, 3.0}),
			yPred:   mat.NewVecDense(2, []float64{1.0, 2.0}),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MSE(tt.yTrue, tt.yPred)
			if tt.wantErr {
				var inputErr *errors.InvalidMetricInputError
				assert.True(t, errors.As(err, &inputErr))
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestMAEAndRMSE(t *testing.T) {
	yTrue := mat.NewVecDense(4, []float64{3.0, -0.5, 2.0, 7.0})
	yPred := mat.NewVecDense(4, []float64{2.5, 0.0, 2.0, 8.0})

	mae, err := MAE(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, mae, 1e-12)

	rmse, err := RMSE(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(0.375), rmse, 1e-12)
}

func TestR2Score(t *testing.T) {
	tests := []struct {
		name  string
		yTrue []float64
		yPred []float64
		want  float64
	}{
		{"perfect prediction", []float64{1, 2, 3, 4, 5}, []float64{1, 2, 3, 4, 5}, 1.0},
		{"mean prediction", []float64{1, 2, 3}, []float64{2, 2, 2}, 0.0},
		{"worse than mean baseline", []float64{1, 2, 3, 4}, []float64{4, 3, 2, 1}, -3.0},
		{"constant and perfect", []float64{3, 3, 3}, []float64{3, 3, 3}, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := R2Score(mat.NewVecDense(len(tt.yTrue), tt.yTrue), mat.NewVecDense(len(tt.yPred), tt.yPred))
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestR2Score_ZeroVarianceWarns(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	t.Cleanup(func() { errors.SetWarningHandler(func(error) {}) })

	got, err := R2Score(
		mat.NewVecDense(5, []float64{3, 3, 3, 3, 3}),
		mat.NewVecDense(5, []float64{2, 3, 4, 3, 3}),
	)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)
	require.Len(t, warnings, 1)

	var w *errors.UndefinedMetricWarning
	require.True(t, errors.As(warnings[0], &w))
	assert.Equal(t, "r2", w.Metric)
}

func TestRegressionMetrics(t *testing.T) {
	yTrue := mat.NewVecDense(3, []float64{1.0, 2.0, 3.0})
	yPred := mat.NewVecDense(3, []float64{1.1, 1.9, 2.8})

	report, err := RegressionMetrics(yTrue, yPred)
	require.NoError(t, err)

	assert.Equal(t, []string{"mse", "mae", "rmse", "r2"}, report.Names())
	m := report.Map()
	assert.Len(t, m, 4)
	for _, name := range report.Names() {
		v, ok := report.Value(name)
		require.True(t, ok)
		assert.Equal(t, m[name], v)
	}
	_, ok := report.Value("mape")
	assert.False(t, ok)

	assert.InDelta(t, 0.02, report.MSE, 1e-12)
	assert.InDelta(t, 0.4/3, report.MAE, 1e-12)
	assert.InDelta(t, math.Sqrt(report.MSE), report.RMSE, 1e-15)
	assert.InDelta(t, 0.97, report.R2, 1e-12)
}

func TestRegressionMetrics_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 50; trial++ {
		n := 1 + rng.Intn(100)
		yTrue := mat.NewVecDense(n, nil)
		yPred := mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			yTrue.SetVec(i, rng.NormFloat64()*10)
			yPred.SetVec(i, rng.NormFloat64()*10)
		}

		report, err := RegressionMetrics(yTrue, yPred)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, report.MSE, 0.0)
		assert.GreaterOrEqual(t, report.MAE, 0.0)
		assert.GreaterOrEqual(t, report.RMSE, 0.0)
		assert.LessOrEqual(t, report.R2, 1.0)
		assert.InDelta(t, math.Sqrt(report.MSE), report.RMSE, 1e-9)

		perfect, err := RegressionMetrics(yTrue, yTrue)
		require.NoError(t, err)
		assert.Equal(t, 1.0, perfect.R2)
		assert.Equal(t, 0.0, perfect.MSE)
	}
}

func TestRegressionMetrics_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		yTrue mat.Vector
		yPred mat.Vector
	}{
		{"empty", &mat.VecDense{}, &mat.VecDense{}},
		{"length mismatch", mat.NewVecDense(2, []float64{1, 2}), mat.NewVecDense(3, []float64{1, 2, 3})},
		{"nan", mat.NewVecDense(2, []float64{1, math.NaN()}), mat.NewVecDense(2, []float64{1, 2})},
		{"inf", mat.NewVecDense(2, []float64{1, 2}), mat.NewVecDense(2, []float64{math.Inf(-1), 2})},
		{"nil", nil, mat.NewVecDense(1, []float64{1})},
		{"typed nil y_true", (*mat.VecDense)(nil), mat.NewVecDense(1, []float64{1})},
		{"typed nil y_pred", mat.NewVecDense(1, []float64{1}), (*mat.VecDense)(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RegressionMetrics(tt.yTrue, tt.yPred)
			var inputErr *errors.InvalidMetricInputError
			assert.True(t, errors.As(err, &inputErr), "got %v", err)
		})
	}
}

func BenchmarkRegressionMetrics(b *testing.B) {
	size := 10000
	yTrue := mat.NewVecDense(size, nil)
	yPred := mat.NewVecDense(size, nil)
	for i := 0; i < size; i++ {
		yTrue.SetVec(i, float64(i))
		yPred.SetVec(i, float64(i)+0.1*float64(i%10))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = RegressionMetrics(yTrue, yPred)
	}
}
