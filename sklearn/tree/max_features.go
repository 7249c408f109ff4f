package tree

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/housingrf/pkg/errors"
)

type maxFeaturesKind int

const (
	kindAll maxFeaturesKind = iota
	kindFraction
	kindCount
	kindSqrt
	kindLog2
)

// MaxFeatures selects how many features are drawn at each split. The zero
// value means all features.
type MaxFeatures struct {
	kind     maxFeaturesKind
	fraction float64
	count    int
}

// AllFeatures considers every feature at every split.
func AllFeatures() MaxFeatures { return MaxFeatures{kind: kindAll} }

// Fraction considers max(1, floor(f * n_features)) features, f in (0, 1].
func Fraction(f float64) MaxFeatures { return MaxFeatures{kind: kindFraction, fraction: f} }

// Count considers exactly n features, 1 <= n <= n_features.
func Count(n int) MaxFeatures { return MaxFeatures{kind: kindCount, count: n} }

// Sqrt considers max(1, floor(sqrt(n_features))) features.
func Sqrt() MaxFeatures { return MaxFeatures{kind: kindSqrt} }

// Log2 considers max(1, floor(log2(n_features))) features.
func Log2() MaxFeatures { return MaxFeatures{kind: kindLog2} }

// ParseMaxFeatures accepts "all", "sqrt", "log2", an integer count or a
// fraction containing a decimal point ("1.0", "0.33").
func ParseMaxFeatures(s string) (MaxFeatures, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "all", "none":
		return AllFeatures(), nil
	case "sqrt":
		return Sqrt(), nil
	case "log2":
		return Log2(), nil
	}

	if strings.Contains(s, ".") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return MaxFeatures{}, errors.NewValidationError("max_features", "not a fraction", s)
		}
		m := Fraction(f)
		return m, m.validate()
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return MaxFeatures{}, errors.NewValidationError("max_features", "expected all, sqrt, log2, a count or a fraction", s)
	}
	m := Count(n)
	return m, m.validate()
}

func (m MaxFeatures) validate() error {
	switch m.kind {
	case kindFraction:
		if math.IsNaN(m.fraction) || m.fraction <= 0 || m.fraction > 1 {
			return errors.NewValidationError("max_features", "fraction must be in (0, 1]", m.fraction)
		}
	case kindCount:
		if m.count < 1 {
			return errors.NewValidationError("max_features", "count must be at least 1", m.count)
		}
	}
	return nil
}

// Resolve returns the concrete number of features for a data set with
// nFeatures columns.
func (m MaxFeatures) Resolve(nFeatures int) (int, error) {
	if nFeatures < 1 {
		return 0, errors.NewValidationError("n_features", "must be at least 1", nFeatures)
	}
	if err := m.validate(); err != nil {
		return 0, err
	}

	var k int
	switch m.kind {
	case kindFraction:
		k = int(m.fraction * float64(nFeatures))
	case kindCount:
		if m.count > nFeatures {
			return 0, errors.NewValidationError("max_features",
				fmt.Sprintf("count exceeds the %d available features", nFeatures), m.count)
		}
		k = m.count
	case kindSqrt:
		k = int(math.Sqrt(float64(nFeatures)))
	case kindLog2:
		k = int(math.Log2(float64(nFeatures)))
	default:
		k = nFeatures
	}
	return max(1, k), nil
}

// String renders m in the form accepted by ParseMaxFeatures.
func (m MaxFeatures) String() string {
	switch m.kind {
	case kindFraction:
		s := strconv.FormatFloat(m.fraction, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	case kindCount:
		return strconv.Itoa(m.count)
	case kindSqrt:
		return "sqrt"
	case kindLog2:
		return "log2"
	default:
		return "all"
	}
}
