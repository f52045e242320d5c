package model

import (
	"errors"
	"fmt"
	"math"
)

var ErrNotFitted = errors.New("model has not been fitted")

// StandardScaler standardizes columns to zero mean and unit variance.
// Columns with zero variance pass through unscaled (scale 1), so constant
// features cannot produce NaN.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// Fit computes per-column mean and population standard deviation.
func (s *StandardScaler) Fit(x [][]float64) error {
	if len(x) == 0 || len(x[0]) == 0 {
		return errors.New("scaler: empty input matrix")
	}
	cols := len(x[0])
	s.Mean = make([]float64, cols)
	s.Scale = make([]float64, cols)

	for j := 0; j < cols; j++ {
		var sum float64
		for i := range x {
			sum += x[i][j]
		}
		mean := sum / float64(len(x))

		var variance float64
		for i := range x {
			d := x[i][j] - mean
			variance += d * d
		}
		scale := math.Sqrt(variance / float64(len(x)))
		if scale == 0 {
			scale = 1
		}

		s.Mean[j] = mean
		s.Scale[j] = scale
	}
	return nil
}

// Transform standardizes x using the fitted statistics.
func (s *StandardScaler) Transform(x [][]float64) ([][]float64, error) {
	if s.Mean == nil {
		return nil, fmt.Errorf("scaler: %w", ErrNotFitted)
	}
	out := make([][]float64, len(x))
	for i, row := range x {
		if len(row) != len(s.Mean) {
			return nil, fmt.Errorf("scaler: row %d has %d columns, fitted with %d", i, len(row), len(s.Mean))
		}
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = (v - s.Mean[j]) / s.Scale[j]
		}
		out[i] = scaled
	}
	return out, nil
}

// FitTransform fits the scaler and returns the standardized matrix.
func (s *StandardScaler) FitTransform(x [][]float64) ([][]float64, error) {
	if err := s.Fit(x); err != nil {
		return nil, err
	}
	return s.Transform(x)
}
