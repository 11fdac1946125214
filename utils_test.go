package sspbo

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestMeasureExecutionTime(t *testing.T) {
	seconds, err := measureExecutionTime(BenchmarkFunc[int](func(params ...int) error {
		time.Sleep(time.Duration(params[0]) * time.Millisecond)

		return nil
	}), []int{20})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, seconds, 0.02)

	boom := errors.New("boom")

	_, err = measureExecutionTime(BenchmarkFunc[float64](func(...float64) error {
		return boom
	}), nil)
	assert.ErrorIs(t, err, boom)
}

func TestValidateBounds(t *testing.T) {
	assert.NoError(t, validateBounds(2, []Bound{{Min: -1, Max: 1}, {Min: 3, Max: 3}}))

	assert.ErrorIs(t, validateBounds(3, []Bound{{Min: -1, Max: 1}}), ErrDimensionMismatch)
	assert.ErrorIs(t, validateBounds(1, []Bound{{Min: 2, Max: 1}}), ErrInvalidBounds)
	assert.ErrorIs(t, validateBounds(1, []Bound{{Min: math.NaN(), Max: 1}}), ErrInvalidBounds)
	assert.ErrorIs(t, validateBounds(1, []Bound{{Min: 0, Max: math.Inf(1)}}), ErrInvalidBounds)
}

func TestMinNormSolve(t *testing.T) {
	// Underdetermined: one equation, two unknowns. The minimum-norm solution
	// of x + y = 2 is (1, 1).
	w, rank, ok := minNormSolve(mat.NewDense(1, 2, []float64{1, 1}), []float64{2})
	require.True(t, ok)

	assert.Equal(t, 1, rank)
	assert.InDeltaSlice(t, []float64{1, 1}, w, 1e-12)

	// Overdetermined and consistent.
	a := mat.NewDense(3, 2, []float64{1, 0, 0, 1, 1, 1})

	w, rank, ok = minNormSolve(a, []float64{2, -1, 1})
	require.True(t, ok)

	assert.Equal(t, 2, rank)
	assert.InDeltaSlice(t, []float64{2, -1}, w, 1e-12)
}

func TestPseudoInverse(t *testing.T) {
	// Rank one.
	a := mat.NewDense(2, 2, []float64{1, 2, 2, 4})

	inv, ok := pseudoInverse(a)
	require.True(t, ok)

	var aia, tmp mat.Dense
	tmp.Mul(a, inv)
	aia.Mul(&tmp, a)

	assert.True(t, mat.EqualApprox(&aia, a, 1e-12))
}

func TestSymmetrize(t *testing.T) {
	s := symmetrize(mat.NewDense(2, 2, []float64{1, 2, 4, 3}))

	assert.Equal(t, 3.0, s.At(0, 1))
	assert.Equal(t, 3.0, s.At(1, 0))
}

func TestClampAndRows(t *testing.T) {
	x := []float64{-3, 0.5, 9}
	clampToBounds(x, []Bound{{Min: -1, Max: 1}, {Min: -1, Max: 1}, {Min: 0, Max: 2}})

	assert.Equal(t, []float64{-1, 0.5, 2}, x)

	rows := [][]float64{{1, 2}, {3}}
	cp := copyRows(rows)

	assert.True(t, sameRows(rows, cp))

	cp[1][0] = 4
	assert.False(t, sameRows(rows, cp))
	assert.False(t, sameRows(rows, rows[:1]))
}
