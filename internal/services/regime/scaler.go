package regime

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// Scaler standardizes feature columns with statistics captured at training time.
type Scaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// FitScaler computes the per-column mean and population standard deviation of X.
func FitScaler(X [][]float64) (*Scaler, error) {
	if len(X) == 0 || len(X[0]) == 0 {
		return nil, fmt.Errorf("fit scaler: empty matrix")
	}
	d := len(X[0])
	s := &Scaler{Mean: make([]float64, d), Std: make([]float64, d)}
	col := make([]float64, len(X))
	for j := 0; j < d; j++ {
		for i, row := range X {
			if len(row) != d {
				return nil, fmt.Errorf("fit scaler: row %d has %d columns, want %d", i, len(row), d)
			}
			col[i] = row[j]
		}
		s.Mean[j], s.Std[j] = stat.PopMeanStdDev(col, nil)
	}
	return s, nil
}

// TransformRow standardizes one row. Columns with zero spread map to 0.
func (s *Scaler) TransformRow(row []float64) ([]float64, error) {
	if len(row) != len(s.Mean) {
		return nil, fmt.Errorf("scale row: got %d columns, want %d", len(row), len(s.Mean))
	}
	out := make([]float64, len(row))
	for j, v := range row {
		if s.Std[j] == 0 {
			continue
		}
		out[j] = (v - s.Mean[j]) / s.Std[j]
	}
	return out, nil
}

// Transform standardizes every row into a new matrix.
func (s *Scaler) Transform(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		r, err := s.TransformRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = r
	}
	return out, nil
}
