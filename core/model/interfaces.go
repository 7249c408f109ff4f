// Package model provides the estimator interfaces shared by the tree,
// ensemble and preprocessing packages.
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Scorer is the interface for models that can compute a score.
type Scorer interface {
	// Score returns the coefficient of determination R^2 of the prediction.
	Score(X mat.Matrix, y mat.Matrix) (float64, error)
}

// FeatureImportancer is implemented by models that expose per-feature
// importance scores aligned to the training column order.
type FeatureImportancer interface {
	FeatureImportances() ([]float64, error)
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	// GetParams returns the model's hyperparameters.
	GetParams() map[string]interface{}
}

// Regressor combines interfaces for regression models.
type Regressor interface {
	Fitter
	Predictor
	Scorer
	ParameterGetter
}

// TreeRegressor is a regressor that also reports feature importances.
type TreeRegressor interface {
	Regressor
	FeatureImportancer
}
