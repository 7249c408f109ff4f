// Package visualize renders the diagnostic charts of a fitted model as SVG.
package visualize

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/housingrf/pkg/errors"
	"github.com/YuminosukeSato/housingrf/pkg/log"
)

const (
	// DefaultDir is the output directory used when none is given.
	DefaultDir = "examples"
	// FeatureImportanceFile is the file name of the importance bar chart.
	FeatureImportanceFile = "feature_importance.svg"
	// PredictionsFile is the file name of the predicted-vs-actual scatter.
	PredictionsFile = "predicted_vs_actual.svg"
)

// Visualizer writes charts into one output directory. Files have fixed
// names and are overwritten on every call.
type Visualizer struct {
	dir string

	importanceWidth, importanceHeight   vg.Length
	predictionsWidth, predictionsHeight vg.Length
}

// Option configures a Visualizer.
type Option func(*Visualizer)

// WithImportanceSize sets the canvas size of the importance chart.
func WithImportanceSize(width, height vg.Length) Option {
	return func(v *Visualizer) {
		v.importanceWidth, v.importanceHeight = width, height
	}
}

// WithPredictionsSize sets the canvas size of the scatter chart.
func WithPredictionsSize(width, height vg.Length) Option {
	return func(v *Visualizer) {
		v.predictionsWidth, v.predictionsHeight = width, height
	}
}

// New returns a Visualizer writing into dir ("" means DefaultDir). The
// directory is not touched until Setup or the first plot.
func New(dir string, opts ...Option) *Visualizer {
	if dir == "" {
		dir = DefaultDir
	}
	v := &Visualizer{
		dir:               dir,
		importanceWidth:   10 * vg.Inch,
		importanceHeight:  6 * vg.Inch,
		predictionsWidth:  6 * vg.Inch,
		predictionsHeight: 6 * vg.Inch,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Dir returns the output directory.
func (v *Visualizer) Dir() string {
	return v.dir
}

// Setup creates the output directory if it is absent.
func (v *Visualizer) Setup() error {
	if err := os.MkdirAll(v.dir, 0o755); err != nil {
		return errors.NewRenderError(v.dir, err)
	}
	return nil
}

// PlotFeatureImportance draws a horizontal bar chart with the most important
// feature on top and returns the path of the written file.
func (v *Visualizer) PlotFeatureImportance(names []string, importances []float64) (string, error) {
	if len(names) == 0 {
		return "", errors.NewValueError("PlotFeatureImportance", "no features")
	}
	if len(names) != len(importances) {
		return "", errors.NewValueError("PlotFeatureImportance",
			fmt.Sprintf("%d names but %d importances", len(names), len(importances)))
	}
	if err := errors.CheckNumericalStability("PlotFeatureImportance", importances); err != nil {
		return "", err
	}

	order := make([]int, len(names))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return importances[order[a]] > importances[order[b]]
	})

	p := plot.New()
	p.Title.Text = "Feature Importance (Random Forest)"
	p.X.Label.Text = "Importance"
	p.Y.Label.Text = "Feature"
	p.X.Min = 0

	n := len(order)
	colors := palette.Heat(n+1, 1).Colors()
	labels := make([]string, n)
	barWidth := v.importanceHeight * 0.6 / vg.Length(n)
	for rank, idx := range order {
		pos := n - 1 - rank
		labels[pos] = names[idx]

		bar, err := plotter.NewBarChart(plotter.Values{importances[idx]}, barWidth)
		if err != nil {
			return "", errors.Wrapf(err, "bar for %s", names[idx])
		}
		bar.Horizontal = true
		bar.XMin = float64(pos)
		bar.Color = colors[rank]
		bar.LineStyle.Width = 0
		p.Add(bar)
	}
	p.NominalY(labels...)
	p.Add(plotter.NewGrid())

	return v.save(p, v.importanceWidth, v.importanceHeight, FeatureImportanceFile)
}

// PlotPredictions draws predicted against actual values with a dashed
// identity line and returns the path of the written file.
func (v *Visualizer) PlotPredictions(yTrue, yPred []float64) (string, error) {
	if len(yTrue) == 0 {
		return "", errors.NewValueError("PlotPredictions", "no values")
	}
	if len(yTrue) != len(yPred) {
		return "", errors.NewValueError("PlotPredictions",
			fmt.Sprintf("%d actual values but %d predictions", len(yTrue), len(yPred)))
	}
	if err := errors.CheckNumericalStability("PlotPredictions", yTrue); err != nil {
		return "", err
	}
	if err := errors.CheckNumericalStability("PlotPredictions", yPred); err != nil {
		return "", err
	}

	p := plot.New()
	p.Title.Text = "Predicted vs Actual"
	p.X.Label.Text = "Actual"
	p.Y.Label.Text = "Predicted"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(yTrue))
	for i := range yTrue {
		pts[i].X = yTrue[i]
		pts[i].Y = yPred[i]
	}
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return "", errors.Wrap(err, "scatter")
	}
	s.Color = color.NRGBA{R: 31, G: 119, B: 180, A: 102}
	s.Radius = vg.Points(1.5)
	p.Add(s)

	lo, hi := floats.Min(yTrue), floats.Max(yTrue)
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	l, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return "", errors.Wrap(err, "identity line")
	}
	l.Color = color.RGBA{R: 255, A: 255}
	l.Width = vg.Points(1.5)
	l.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}
	p.Add(l)

	return v.save(p, v.predictionsWidth, v.predictionsHeight, PredictionsFile)
}

func (v *Visualizer) save(p *plot.Plot, width, height vg.Length, name string) (string, error) {
	if err := v.Setup(); err != nil {
		return "", err
	}
	path := filepath.Join(v.dir, name)

	wt, err := p.WriterTo(width, height, "svg")
	if err != nil {
		return "", errors.NewRenderError(path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", errors.NewRenderError(path, err)
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return "", errors.NewRenderError(path, err)
	}
	if err := f.Close(); err != nil {
		return "", errors.NewRenderError(path, err)
	}

	log.GetLoggerWithName("visualize").Info("Chart written", log.PathKey, path)
	return path, nil
}

