// Package housingrf trains and evaluates a random forest regressor on the
// California Housing data set.
//
// The work is split into small packages that are used in this order:
//
//   - dataset: downloads (or reads) the housing archive and returns the
//     eight derived features and the median house value in $100k.
//   - preprocessing: shuffled train/test split and an optional
//     StandardScaler fitted on the training rows only.
//   - sklearn/ensemble: a bagged forest of sklearn/tree regression trees,
//     fitted concurrently.
//   - metrics: MSE, MAE, RMSE and R².
//   - visualize: SVG charts of feature importances and predicted vs actual.
//   - pipeline: runs the stages above and renders the text report.
//
// # Quick Start
//
//	res, err := pipeline.Run(ctx, false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = pipeline.WriteReport(os.Stdout, res)
//
// The housingrf command in cmd/housingrf wraps the same pipeline with YAML,
// .env and HOUSINGRF_* configuration (see package config).
package housingrf
