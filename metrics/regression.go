// Package metrics computes regression quality metrics.
package metrics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/housingrf/pkg/errors"
)

// Report は回帰評価指標の集合
type Report struct {
	MSE  float64
	MAE  float64
	RMSE float64
	R2   float64
}

// Names は指標名を固定順で返す
func (r Report) Names() []string {
	return []string{"mse", "mae", "rmse", "r2"}
}

// Value は名前に対応する指標値を返す
func (r Report) Value(name string) (float64, bool) {
	switch name {
	case "mse":
		return r.MSE, true
	case "mae":
		return r.MAE, true
	case "rmse":
		return r.RMSE, true
	case "r2":
		return r.R2, true
	}
	return 0, false
}

// Map は4つの指標名をキーとするマップを返す
func (r Report) Map() map[string]float64 {
	return map[string]float64{
		"mse":  r.MSE,
		"mae":  r.MAE,
		"rmse": r.RMSE,
		"r2":   r.R2,
	}
}

// RegressionMetrics は MSE、MAE、RMSE、R² をまとめて計算する
func RegressionMetrics(yTrue, yPred mat.Vector) (Report, error) {
	yt, yp, err := checkInputs("RegressionMetrics", yTrue, yPred)
	if err != nil {
		return Report{}, err
	}

	mse := meanSquaredError(yt, yp)
	return Report{
		MSE:  mse,
		MAE:  floats.Distance(yt, yp, 1) / float64(len(yt)),
		RMSE: math.Sqrt(mse),
		R2:   r2(yt, yp),
	}, nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred mat.Vector) (float64, error) {
	yt, yp, err := checkInputs("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return meanSquaredError(yt, yp), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred mat.Vector) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred mat.Vector) (float64, error) {
	yt, yp, err := checkInputs("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	// MAE = (1/n) * Σ|yTrue - yPred|
	return floats.Distance(yt, yp, 1) / float64(len(yt)), nil
}

// R2Score は決定係数（R²）を計算する。
// yTrue の分散が0の場合、完全一致なら1.0、それ以外は0.0を返し
// UndefinedMetricWarning を出す。
func R2Score(yTrue, yPred mat.Vector) (float64, error) {
	yt, yp, err := checkInputs("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return r2(yt, yp), nil
}

func meanSquaredError(yt, yp []float64) float64 {
	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := range yt {
		diff := yt[i] - yp[i]
		sum += diff * diff
	}
	return sum / float64(len(yt))
}

func r2(yt, yp []float64) float64 {
	yMean := stat.Mean(yt, nil)

	// 全変動（TSS）と残差変動（RSS）
	var tss, rss float64
	for i := range yt {
		tss += (yt[i] - yMean) * (yt[i] - yMean)
		rss += (yt[i] - yp[i]) * (yt[i] - yp[i])
	}

	if tss == 0 {
		if rss == 0 {
			return 1.0
		}
		errors.Warn(errors.NewUndefinedMetricWarning("r2", "zero variance in y_true", 0.0))
		return 0.0
	}
	return 1.0 - rss/tss
}

// checkInputs は空、長さ不一致、非有限値を InvalidMetricInputError として拒否する
func checkInputs(op string, yTrue, yPred mat.Vector) ([]float64, []float64, error) {
	if isNilVector(yTrue) || isNilVector(yPred) {
		return nil, nil, errors.NewInvalidMetricInputError(op, "nil input")
	}
	n := yTrue.Len()
	if n == 0 {
		return nil, nil, errors.NewInvalidMetricInputError(op, "empty input")
	}
	if yPred.Len() != n {
		return nil, nil, errors.NewInvalidMetricInputError(op,
			fmt.Sprintf("length mismatch: y_true has %d values, y_pred has %d", n, yPred.Len()))
	}

	yt := make([]float64, n)
	yp := make([]float64, n)
	for i := 0; i < n; i++ {
		yt[i] = yTrue.AtVec(i)
		yp[i] = yPred.AtVec(i)
		if !isFinite(yt[i]) || !isFinite(yp[i]) {
			return nil, nil, errors.NewInvalidMetricInputError(op,
				fmt.Sprintf("non-finite value at index %d", i))
		}
	}
	return yt, yp, nil
}

// isNilVector は nil インターフェースと型付き nil の *mat.VecDense を検出する
func isNilVector(v mat.Vector) bool {
	if v == nil {
		return true
	}
	vd, ok := v.(*mat.VecDense)
	return ok && vd == nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
