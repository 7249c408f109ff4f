package preprocessing

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/housingrf/dataset"
	"github.com/YuminosukeSato/housingrf/pkg/errors"
)

// table builds an n-row frame whose first column grows with the row label
// and whose target equals twice the label.
func table(t *testing.T, n int) (*dataset.Frame, *dataset.Series) {
	t.Helper()
	data := make([]float64, 0, n*3)
	target := make([]float64, n)
	for i := 0; i < n; i++ {
		data = append(data, float64(i), float64(i%7)*3.5, 100+float64(i*i%13))
		target[i] = 2 * float64(i)
	}
	X, err := dataset.NewFrame([]string{"a", "b", "c"}, nil, mat.NewDense(n, 3, data))
	require.NoError(t, err)
	y, err := dataset.NewSeries("y", nil, mat.NewVecDense(n, target))
	require.NoError(t, err)
	return X, y
}

func TestSplitData_Sizes(t *testing.T) {
	tests := []struct {
		n, wantTrain, wantTest int
		testSize               float64
	}{
		{20640, 16512, 4128, 0.2},
		{500, 400, 100, 0.2},
		{10, 7, 3, 0.25},
		{3, 2, 1, 0.2},
	}
	for _, tt := range tests {
		X, y := table(t, tt.n)
		s, err := SplitData(X, y, WithTestSize(tt.testSize))
		require.NoError(t, err)

		rows, _ := s.XTrain.Dims()
		assert.Equal(t, tt.wantTrain, rows)
		rows, _ = s.XTest.Dims()
		assert.Equal(t, tt.wantTest, rows)
		assert.Equal(t, tt.wantTrain, s.YTrain.Len())
		assert.Equal(t, tt.wantTest, s.YTest.Len())
		assert.Nil(t, s.Scaler)
	}
}

func TestSplitData_Deterministic(t *testing.T) {
	X, y := table(t, 200)

	a, err := SplitData(X, y, WithRandomState(7))
	require.NoError(t, err)
	b, err := SplitData(X, y, WithRandomState(7))
	require.NoError(t, err)

	if diff := cmp.Diff(a.XTrain.Index, b.XTrain.Index); diff != "" {
		t.Errorf("train index mismatch (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(a.XTest.Index, b.XTest.Index); diff != "" {
		t.Errorf("test index mismatch (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(a.XTrain.Data.RawMatrix().Data, b.XTrain.Data.RawMatrix().Data); diff != "" {
		t.Errorf("train data mismatch (-first +second):\n%s", diff)
	}

	c, err := SplitData(X, y, WithRandomState(8))
	require.NoError(t, err)
	assert.NotEqual(t, a.XTest.Index, c.XTest.Index)
}

func TestSplitData_DisjointAndCovering(t *testing.T) {
	X, y := table(t, 101)
	s, err := SplitData(X, y)
	require.NoError(t, err)

	seen := make(map[int]bool)
	for _, idx := range append(append([]int{}, s.XTrain.Index...), s.XTest.Index...) {
		assert.False(t, seen[idx], "row %d appears twice", idx)
		seen[idx] = true
	}
	all := make([]int, 0, len(seen))
	for idx := range seen {
		all = append(all, idx)
	}
	sort.Ints(all)
	assert.Equal(t, X.Index, all)
}

func TestSplitData_RowAlignment(t *testing.T) {
	X, y := table(t, 50)
	s, err := SplitData(X, y)
	require.NoError(t, err)

	assert.Equal(t, s.XTrain.Index, s.YTrain.Index)
	assert.Equal(t, s.XTest.Index, s.YTest.Index)
	for i, label := range s.XTest.Index {
		assert.Equal(t, float64(label), s.XTest.Data.At(i, 0))
		assert.Equal(t, 2*float64(label), s.YTest.Values.AtVec(i))
	}
	assert.Equal(t, X.Columns, s.XTrain.Columns)
}

func TestSplitData_ScaleFitsTrainOnly(t *testing.T) {
	X, y := table(t, 400)
	s, err := SplitData(X, y, WithScale(true))
	require.NoError(t, err)
	require.NotNil(t, s.Scaler)

	_, cols := s.XTrain.Dims()
	testForced := true
	for j := 0; j < cols; j++ {
		mean, std := stat.PopMeanStdDev(mat.Col(nil, j, s.XTrain.Data), nil)
		assert.InDelta(t, 0, mean, 1e-9)
		assert.InDelta(t, 1, std, 1e-9)

		tm, ts := stat.PopMeanStdDev(mat.Col(nil, j, s.XTest.Data), nil)
		if abs(tm) > 1e-6 || abs(ts-1) > 1e-6 {
			testForced = false
		}
	}
	assert.False(t, testForced, "test partition statistics must come from the train fit")
	assert.Equal(t, 320, s.Scaler.NSamples)

	// 元の Frame は変更されない
	assert.Equal(t, 0.0, X.Data.At(0, 0))

	// 標準化しても行の割り当ては同じ
	plain, err := SplitData(X, y)
	require.NoError(t, err)
	if diff := cmp.Diff(plain.XTrain.Index, s.XTrain.Index); diff != "" {
		t.Errorf("train index mismatch (-plain +scaled):\n%s", diff)
	}
	if diff := cmp.Diff(plain.XTest.Index, s.XTest.Index); diff != "" {
		t.Errorf("test index mismatch (-plain +scaled):\n%s", diff)
	}
}

func TestSplitData_InvalidConfig(t *testing.T) {
	X, y := table(t, 10)
	shortY, err := dataset.NewSeries("y", nil, mat.NewVecDense(3, []float64{1, 2, 3}))
	require.NoError(t, err)

	tests := []struct {
		name string
		x    *dataset.Frame
		y    *dataset.Series
		opts []SplitOption
	}{
		{"zero test size", X, y, []SplitOption{WithTestSize(0)}},
		{"test size one", X, y, []SplitOption{WithTestSize(1)}},
		{"negative", X, y, []SplitOption{WithTestSize(-0.3)}},
		{"mismatched rows", X, shortY, nil},
		{"nil input", nil, y, nil},
		{"empty train", X, y, []SplitOption{WithTestSize(0.95)}},
		{"empty frame", X.Take(nil), y.Take(nil), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SplitData(tt.x, tt.y, tt.opts...)
			var cfgErr *errors.InvalidSplitConfigError
			assert.True(t, errors.As(err, &cfgErr), "got %v", err)
		})
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
