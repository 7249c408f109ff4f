// Package dataset loads the California Housing data set into a labelled
// feature Frame and target Series.
package dataset

import (
	"archive/tar"
	"bufio"
	"compress/gzip"
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/housingrf/pkg/errors"
	"github.com/YuminosukeSato/housingrf/pkg/log"
)

// TargetName is the name of the target column.
const TargetName = "MedHouseVal"

// FeatureNames lists the feature columns in Frame order.
var FeatureNames = []string{
	"MedInc", "HouseAge", "AveRooms", "AveBedrms",
	"Population", "AveOccup", "Latitude", "Longitude",
}

// raw column positions in cal_housing.data
const (
	rawLongitude = iota
	rawLatitude
	rawHousingMedianAge
	rawTotalRooms
	rawTotalBedrooms
	rawPopulation
	rawHouseholds
	rawMedianIncome
	rawMedianHouseValue
	rawColumns
)

const (
	dataMember  = "cal_housing.data"
	targetScale = 100000.0
)

// Load reads the data set from DefaultSource.
func Load(ctx context.Context) (*Frame, *Series, error) {
	return LoadFrom(ctx, DefaultSource())
}

// LoadFrom reads and decodes the data set from src. Every failure is
// reported as a DataUnavailableError naming src. Nothing is retried.
func LoadFrom(ctx context.Context, src Source) (*Frame, *Series, error) {
	logger := log.GetLoggerWithName("dataset")
	start := time.Now()

	rc, err := src.Open(ctx)
	if err != nil {
		return nil, nil, errors.NewDataUnavailableError(src.String(), err)
	}
	defer rc.Close()

	X, y, err := Decode(rc)
	if err != nil {
		return nil, nil, errors.NewDataUnavailableError(src.String(), err)
	}

	rows, cols := X.Dims()
	logger.Info("Dataset loaded",
		log.SourceKey, src.String(),
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return X, y, nil
}

// Decode parses either a gzipped tar archive containing cal_housing.data or
// the bare comma-separated file.
func Decode(r io.Reader) (*Frame, *Series, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, nil, errors.Wrap(err, "read header")
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		member, err := openMember(br)
		if err != nil {
			return nil, nil, err
		}
		return decodeCSV(member)
	}
	return decodeCSV(br)
}

func openMember(r io.Reader) (io.Reader, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "open gzip stream")
	}
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil, errors.Newf("archive has no %s member", dataMember)
		}
		if err != nil {
			return nil, errors.Wrap(err, "read archive")
		}
		if hdr.Typeflag == tar.TypeReg && strings.HasSuffix(hdr.Name, dataMember) {
			return tr, nil
		}
	}
}

func decodeCSV(r io.Reader) (*Frame, *Series, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = rawColumns
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	var features, target []float64
	var raw [rawColumns]float64
	line := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, errors.Wrap(err, "parse csv")
		}
		line++

		header := false
		for j, field := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				if line == 1 {
					header = true
					break
				}
				return nil, nil, errors.Wrapf(err, "line %d column %d", line, j+1)
			}
			raw[j] = v
		}
		if header {
			continue
		}

		households := raw[rawHouseholds]
		if households == 0 {
			return nil, nil, errors.Newf("line %d: households is zero", line)
		}
		features = append(features,
			raw[rawMedianIncome],
			raw[rawHousingMedianAge],
			raw[rawTotalRooms]/households,
			raw[rawTotalBedrooms]/households,
			raw[rawPopulation],
			raw[rawPopulation]/households,
			raw[rawLatitude],
			raw[rawLongitude],
		)
		target = append(target, raw[rawMedianHouseValue]/targetScale)
	}

	n := len(target)
	if n == 0 {
		return nil, nil, errors.ErrEmptyData
	}

	X, err := NewFrame(append([]string(nil), FeatureNames...), nil, mat.NewDense(n, len(FeatureNames), features))
	if err != nil {
		return nil, nil, err
	}
	y, err := NewSeries(TargetName, nil, mat.NewVecDense(n, target))
	if err != nil {
		return nil, nil, err
	}
	return X, y, nil
}
