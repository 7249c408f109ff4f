package tree

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/housingrf/pkg/errors"
)

// Dataset is a column-major copy of a training matrix and its target.
// It is read-only after construction, so the trees of a forest share one.
type Dataset struct {
	cols      [][]float64
	y         []float64
	nSamples  int
	nFeatures int
}

// NewDataset copies X (n_samples × n_features) and y (n_samples × 1).
// Non-finite values are rejected.
func NewDataset(X, y mat.Matrix) (*Dataset, error) {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return nil, errors.NewEmptyInputError("NewDataset")
	}
	yRows, yCols := y.Dims()
	if yCols != 1 {
		return nil, errors.NewDimensionError("NewDataset", 1, yCols, 1)
	}
	if yRows != rows {
		return nil, errors.NewDimensionError("NewDataset", rows, yRows, 0)
	}
	if err := errors.CheckMatrix("NewDataset", X, rows, cols); err != nil {
		return nil, err
	}

	d := &Dataset{
		cols:      make([][]float64, cols),
		y:         mat.Col(nil, 0, y),
		nSamples:  rows,
		nFeatures: cols,
	}
	if err := errors.CheckNumericalStability("NewDataset", d.y); err != nil {
		return nil, err
	}
	for j := range d.cols {
		d.cols[j] = mat.Col(nil, j, X)
	}
	return d, nil
}

// Dims returns the number of samples and features.
func (d *Dataset) Dims() (nSamples, nFeatures int) {
	return d.nSamples, d.nFeatures
}
