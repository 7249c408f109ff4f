package dataset

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"math"
	"math/rand"
	"time"

	"github.com/YuminosukeSato/housingrf/pkg/errors"
)

// WriteSyntheticArchive writes a gzipped tar archive laid out like the public
// one (cal_housing/CaliforniaHousing/cal_housing.data) with rows generated
// from seed. House value depends mostly on income and location so that a
// model fitted on it has something to learn.
func WriteSyntheticArchive(w io.Writer, rows int, seed int64) error {
	if rows <= 0 {
		return errors.NewValueError("WriteSyntheticArchive", "rows must be positive")
	}

	var data bytes.Buffer
	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < rows; i++ {
		longitude := -124.3 + rng.Float64()*10
		latitude := 32.5 + rng.Float64()*9.5
		age := float64(1 + rng.Intn(52))
		households := float64(50 + rng.Intn(1500))
		rooms := households * (3 + rng.Float64()*4)
		bedrooms := households * (0.8 + rng.Float64()*0.5)
		population := households * (1.5 + rng.Float64()*3)
		income := 0.5 + rng.Float64()*14.5

		value := 40000*income + 3000*(42-latitude) + 500*age + rng.NormFloat64()*20000
		value = math.Min(math.Max(value, 14999), 500001)

		fmt.Fprintf(&data, "%.2f,%.2f,%.1f,%.1f,%.1f,%.1f,%.1f,%.4f,%.1f\n",
			longitude, latitude, age, rooms, bedrooms, population, households, income, value)
	}

	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)
	hdr := &tar.Header{
		Name:     "CaliforniaHousing/" + dataMember,
		Mode:     0o644,
		Size:     int64(data.Len()),
		Typeflag: tar.TypeReg,
		ModTime:  time.Unix(0, 0),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return errors.Wrap(err, "write tar header")
	}
	if _, err := tw.Write(data.Bytes()); err != nil {
		return errors.Wrap(err, "write tar body")
	}
	if err := tw.Close(); err != nil {
		return errors.Wrap(err, "close tar")
	}
	return errors.WithStack(gz.Close())
}
