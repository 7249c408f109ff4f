package dataset

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/housingrf/pkg/errors"
)

// Frame is a labelled numeric table. Rows are observations, columns are
// named features. Index holds the original row label of every row.
type Frame struct {
	Columns []string
	Index   []int
	Data    *mat.Dense
}

// NewFrame validates the shape of data against columns and index.
// A nil index is replaced by 0..rows-1.
func NewFrame(columns []string, index []int, data *mat.Dense) (*Frame, error) {
	if data == nil {
		return nil, errors.NewValueError("NewFrame", "data is nil")
	}
	rows, cols := data.Dims()
	if len(columns) != cols {
		return nil, errors.NewDimensionError("NewFrame", len(columns), cols, 1)
	}
	if index == nil {
		index = make([]int, rows)
		for i := range index {
			index[i] = i
		}
	}
	if len(index) != rows {
		return nil, errors.NewDimensionError("NewFrame", rows, len(index), 0)
	}
	return &Frame{Columns: columns, Index: index, Data: data}, nil
}

// Dims returns the number of rows and columns.
func (f *Frame) Dims() (rows, cols int) {
	return f.Data.Dims()
}

// Column returns a copy of the named column, or false when it does not exist.
func (f *Frame) Column(name string) ([]float64, bool) {
	for j, c := range f.Columns {
		if c == name {
			return mat.Col(nil, j, f.Data), true
		}
	}
	return nil, false
}

// Take returns the rows at the given positions, in that order, keeping their
// labels. The result does not share memory with f.
func (f *Frame) Take(positions []int) *Frame {
	columns := append([]string(nil), f.Columns...)
	if len(positions) == 0 {
		return &Frame{Columns: columns, Index: []int{}, Data: &mat.Dense{}}
	}

	_, cols := f.Dims()
	out := mat.NewDense(len(positions), cols, nil)
	index := make([]int, len(positions))
	for i, p := range positions {
		out.SetRow(i, f.Data.RawRowView(p))
		index[i] = f.Index[p]
	}
	return &Frame{Columns: columns, Index: index, Data: out}
}

// Series is a named numeric column aligned to a Frame by position and label.
type Series struct {
	Name   string
	Index  []int
	Values *mat.VecDense
}

// NewSeries validates that index and values have the same length.
// A nil index is replaced by 0..n-1.
func NewSeries(name string, index []int, values *mat.VecDense) (*Series, error) {
	if values == nil {
		return nil, errors.NewValueError("NewSeries", "values is nil")
	}
	n := values.Len()
	if index == nil {
		index = make([]int, n)
		for i := range index {
			index[i] = i
		}
	}
	if len(index) != n {
		return nil, errors.NewDimensionError("NewSeries", n, len(index), 0)
	}
	return &Series{Name: name, Index: index, Values: values}, nil
}

// Len returns the number of values.
func (s *Series) Len() int {
	return s.Values.Len()
}

// Take returns the values at the given positions, keeping their labels.
func (s *Series) Take(positions []int) *Series {
	values := make([]float64, len(positions))
	index := make([]int, len(positions))
	for i, p := range positions {
		values[i] = s.Values.AtVec(p)
		index[i] = s.Index[p]
	}
	var vec *mat.VecDense
	if len(values) > 0 {
		vec = mat.NewVecDense(len(values), values)
	} else {
		vec = &mat.VecDense{}
	}
	return &Series{Name: s.Name, Index: index, Values: vec}
}
