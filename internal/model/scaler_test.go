package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScaler_FitTransform(t *testing.T) {
	x := [][]float64{
		{1, 10},
		{2, 20},
		{3, 30},
	}

	s := &StandardScaler{}
	out, err := s.FitTransform(x)
	require.NoError(t, err)
	require.Len(t, out, 3)

	// Each column standardizes to zero mean, unit variance.
	for j := 0; j < 2; j++ {
		var sum, sumSq float64
		for i := range out {
			sum += out[i][j]
			sumSq += out[i][j] * out[i][j]
		}
		assert.InDelta(t, 0, sum/3, 1e-9)
		assert.InDelta(t, 1, sumSq/3, 1e-9)
	}

	assert.InDelta(t, 2, s.Mean[0], 1e-9)
	assert.InDelta(t, 20, s.Mean[1], 1e-9)
}

func TestScaler_ConstantColumn(t *testing.T) {
	x := [][]float64{
		{5, 1},
		{5, 2},
		{5, 3},
	}

	s := &StandardScaler{}
	out, err := s.FitTransform(x)
	require.NoError(t, err)

	// Zero-variance columns get scale 1 instead of dividing by zero.
	assert.Equal(t, 1.0, s.Scale[0])
	for i := range out {
		assert.False(t, math.IsNaN(out[i][0]))
		assert.Zero(t, out[i][0])
	}
}

func TestScaler_TransformBeforeFit(t *testing.T) {
	s := &StandardScaler{}
	_, err := s.Transform([][]float64{{1}})
	require.ErrorIs(t, err, ErrNotFitted)
}

func TestScaler_ColumnMismatch(t *testing.T) {
	s := &StandardScaler{}
	_, err := s.FitTransform([][]float64{{1, 2}, {3, 4}})
	require.NoError(t, err)

	_, err = s.Transform([][]float64{{1, 2, 3}})
	require.Error(t, err)
}

func TestScaler_EmptyInput(t *testing.T) {
	s := &StandardScaler{}
	require.Error(t, s.Fit(nil))
	require.Error(t, s.Fit([][]float64{{}}))
}
