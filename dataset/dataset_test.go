package dataset

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/housingrf/pkg/errors"
)

const sampleCSV = `-122.23,37.88,41.0,880.0,129.0,322.0,126.0,8.3252,452600.0
-122.22,37.86,21.0,7099.0,1106.0,2401.0,1138.0,8.3014,358500.0
-122.24,37.85,52.0,1467.0,190.0,496.0,177.0,7.2574,352100.0
`

func archive(t *testing.T, rows int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteSyntheticArchive(&buf, rows, 7))
	return buf.Bytes()
}

func TestDecode_RawCSV(t *testing.T) {
	X, y, err := Decode(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	rows, cols := X.Dims()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 8, cols)
	assert.Equal(t, FeatureNames, X.Columns)
	assert.Equal(t, []int{0, 1, 2}, X.Index)
	assert.Equal(t, TargetName, y.Name)
	assert.Equal(t, 3, y.Len())

	first := X.Data.RawRowView(0)
	assert.InDelta(t, 8.3252, first[0], 1e-12)          // MedInc
	assert.InDelta(t, 41.0, first[1], 1e-12)            // HouseAge
	assert.InDelta(t, 880.0/126.0, first[2], 1e-12)     // AveRooms
	assert.InDelta(t, 129.0/126.0, first[3], 1e-12)     // AveBedrms
	assert.InDelta(t, 322.0, first[4], 1e-12)           // Population
	assert.InDelta(t, 322.0/126.0, first[5], 1e-12)     // AveOccup
	assert.InDelta(t, 37.88, first[6], 1e-12)           // Latitude
	assert.InDelta(t, -122.23, first[7], 1e-12)         // Longitude
	assert.InDelta(t, 4.526, y.Values.AtVec(0), 1e-12)  // MedHouseVal
}

func TestDecode_SkipsHeader(t *testing.T) {
	in := "longitude,latitude,housingMedianAge,totalRooms,totalBedrooms,population,households,medianIncome,medianHouseValue\n" + sampleCSV
	X, _, err := Decode(strings.NewReader(in))
	require.NoError(t, err)
	rows, _ := X.Dims()
	assert.Equal(t, 3, rows)
}

func TestDecode_Archive(t *testing.T) {
	X, y, err := Decode(bytes.NewReader(archive(t, 50)))
	require.NoError(t, err)
	rows, cols := X.Dims()
	assert.Equal(t, 50, rows)
	assert.Equal(t, 8, cols)
	assert.Equal(t, 50, y.Len())
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"wrong field count", "1,2,3\n"},
		{"not a number", sampleCSV + "a,b,c,d,e,f,g,h,i\n"},
		{"zero households", "-122.23,37.88,41.0,880.0,129.0,322.0,0.0,8.3252,452600.0\n"},
		{"truncated gzip", "\x1f\x8b\x08"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestLoadFrom_FileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), ArchiveName)
	require.NoError(t, os.WriteFile(path, archive(t, 40), 0o644))

	X, y, err := LoadFrom(context.Background(), &FileSource{Path: path})
	require.NoError(t, err)
	rows, _ := X.Dims()
	assert.Equal(t, 40, rows)
	assert.Equal(t, rows, y.Len())
}

func TestLoadFrom_MissingFileIsDataUnavailable(t *testing.T) {
	src := &FileSource{Path: filepath.Join(t.TempDir(), "missing.tgz")}
	_, _, err := LoadFrom(context.Background(), src)

	var dataErr *errors.DataUnavailableError
	require.True(t, errors.As(err, &dataErr))
	assert.Equal(t, src.Path, dataErr.Source)
}

func TestHTTPSource_DownloadsOnceThenUsesCache(t *testing.T) {
	body := archive(t, 30)
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	src := &HTTPSource{URL: srv.URL, CacheDir: filepath.Join(t.TempDir(), "cache")}
	for i := 0; i < 2; i++ {
		X, _, err := LoadFrom(context.Background(), src)
		require.NoError(t, err)
		rows, _ := X.Dims()
		assert.Equal(t, 30, rows)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	cached, err := os.ReadFile(src.CachePath())
	require.NoError(t, err)
	assert.Equal(t, body, cached)
}

func TestHTTPSource_FailureLeavesNoCacheEntry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	src := &HTTPSource{URL: srv.URL, CacheDir: t.TempDir()}
	_, _, err := LoadFrom(context.Background(), src)

	var dataErr *errors.DataUnavailableError
	require.True(t, errors.As(err, &dataErr))
	assert.Contains(t, err.Error(), "503")
	_, statErr := os.Stat(src.CachePath())
	assert.True(t, os.IsNotExist(statErr))
}

func TestHTTPSource_NoCacheDirStreams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleCSV))
	}))
	defer srv.Close()

	X, _, err := LoadFrom(context.Background(), &HTTPSource{URL: srv.URL})
	require.NoError(t, err)
	rows, _ := X.Dims()
	assert.Equal(t, 3, rows)
}

func TestParseSource(t *testing.T) {
	creds := ObjectCredentials{Endpoint: "localhost:9000"}
	tests := []struct {
		uri     string
		want    Source
		wantErr bool
	}{
		{"", &HTTPSource{URL: ArchiveURL, CacheDir: "/c"}, false},
		{"https://example.com/cal_housing.tgz", &HTTPSource{URL: "https://example.com/cal_housing.tgz", CacheDir: "/c"}, false},
		{"s3://datasets/housing/cal_housing.tgz", &ObjectSource{Bucket: "datasets", Key: "housing/cal_housing.tgz", Creds: creds}, false},
		{"file:///tmp/cal_housing.data", &FileSource{Path: "/tmp/cal_housing.data"}, false},
		{"./cal_housing.tgz", &FileSource{Path: "./cal_housing.tgz"}, false},
		{"s3://bucket-only", nil, true},
		{"ftp://example.com/x", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := ParseSource(tt.uri, "/c", creds)
			if tt.wantErr {
				var vErr *errors.ValidationError
				assert.True(t, errors.As(err, &vErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestObjectSource_RequiresEndpoint(t *testing.T) {
	_, _, err := LoadFrom(context.Background(), &ObjectSource{Bucket: "b", Key: "k"})
	var dataErr *errors.DataUnavailableError
	require.True(t, errors.As(err, &dataErr))
	assert.Equal(t, "s3://b/k", dataErr.Source)
}

func TestFrameTake(t *testing.T) {
	f, err := NewFrame([]string{"a", "b"}, []int{10, 11, 12}, mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6}))
	require.NoError(t, err)

	sub := f.Take([]int{2, 0})
	assert.Equal(t, []int{12, 10}, sub.Index)
	assert.Equal(t, []float64{5, 6}, sub.Data.RawRowView(0))
	assert.Equal(t, []float64{1, 2}, sub.Data.RawRowView(1))

	sub.Data.Set(0, 0, 99)
	assert.Equal(t, 5.0, f.Data.At(2, 0), "Take must copy")

	col, ok := f.Column("b")
	require.True(t, ok)
	assert.Equal(t, []float64{2, 4, 6}, col)
	_, ok = f.Column("c")
	assert.False(t, ok)
}

func TestNewFrame_ShapeErrors(t *testing.T) {
	_, err := NewFrame([]string{"a"}, nil, mat.NewDense(2, 2, nil))
	var dimErr *errors.DimensionError
	require.True(t, errors.As(err, &dimErr))
	assert.Equal(t, 1, dimErr.Axis)

	_, err = NewFrame([]string{"a", "b"}, []int{0}, mat.NewDense(2, 2, nil))
	require.True(t, errors.As(err, &dimErr))
	assert.Equal(t, 0, dimErr.Axis)
}

func TestSeriesTake(t *testing.T) {
	s, err := NewSeries("y", nil, mat.NewVecDense(4, []float64{1, 2, 3, 4}))
	require.NoError(t, err)

	sub := s.Take([]int{3, 1})
	assert.Equal(t, []int{3, 1}, sub.Index)
	assert.Equal(t, []float64{4, 2}, sub.Values.RawVector().Data)
	assert.Equal(t, 0, s.Take(nil).Len())
}
