package pipeline

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/YuminosukeSato/housingrf/pkg/errors"
)

// WriteReport prints the metrics, the features by descending importance
// and the chart paths of r.
func WriteReport(w io.Writer, r *Result) error {
	if r == nil {
		return errors.NewValueError("WriteReport", "nil result")
	}
	if len(r.FeatureNames) != len(r.Importances) {
		return errors.NewValueError("WriteReport",
			fmt.Sprintf("%d feature names but %d importances", len(r.FeatureNames), len(r.Importances)))
	}

	var b strings.Builder
	b.WriteString("\nRandom Forest Regression Results\n")
	b.WriteString(strings.Repeat("=", 40) + "\n")
	for _, name := range r.Metrics.Names() {
		v, _ := r.Metrics.Value(name)
		fmt.Fprintf(&b, "%-4s: %.4f\n", strings.ToUpper(name), v)
	}

	b.WriteString("\nTop Feature Importances\n")
	order := make([]int, len(r.FeatureNames))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, c int) bool {
		return r.Importances[order[a]] > r.Importances[order[c]]
	})
	for _, i := range order {
		fmt.Fprintf(&b, "%s: %.4f\n", r.FeatureNames[i], r.Importances[i])
	}

	b.WriteString("\nPlots saved to:\n")
	fmt.Fprintf(&b, "- Feature importance: %s\n", r.ImportancePath)
	fmt.Fprintf(&b, "- Predicted vs actual: %s\n", r.PredictionPath)

	_, err := io.WriteString(w, b.String())
	return errors.WithStack(err)
}
