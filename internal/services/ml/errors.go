package ml

import "errors"

var (
	// ErrInvalidTrainingData is returned for empty, mismatched or ragged training sets.
	ErrInvalidTrainingData = errors.New("ml: invalid training data")
	// ErrInvalidModelState is returned when predicting with an unfitted model.
	ErrInvalidModelState = errors.New("ml: model is not fitted")
)

func validateXY(X [][]float64, y []float64) (int, error) {
	if len(X) == 0 || len(X) != len(y) {
		return 0, ErrInvalidTrainingData
	}
	d := len(X[0])
	if d == 0 {
		return 0, ErrInvalidTrainingData
	}
	for _, row := range X {
		if len(row) != d {
			return 0, ErrInvalidTrainingData
		}
	}
	return d, nil
}
