package sspbo

import (
	"math"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bowl is a concave quadratic with its peak at center.
func bowl(center []float64) acquisitionProblem {
	return acquisitionProblem{
		score: func(x []float64) float64 {
			var s float64
			for i := range x {
				d := x[i] - center[i]
				s -= d * d
			}

			return s
		},
		grad: func(dst, x []float64) {
			for i := range x {
				dst[i] = -2 * (x[i] - center[i])
			}
		},
	}
}

func TestMaximizeAcquisitionInteriorPeak(t *testing.T) {
	bounds := []Bound{{Min: -5, Max: 5}, {Min: 0, Max: 10}}
	center := []float64{1.5, 7}

	for _, withGrad := range []bool{true, false} {
		p := bowl(center)
		if !withGrad {
			p.grad = nil
		}

		x, score, err := maximizeAcquisition(p, bounds, 4, rand.New(rand.NewSource(1)), SearchSettings{}, discardLogger())
		require.NoError(t, err)

		assert.InDeltaSlice(t, center, x, 1e-3, "analytic gradient: %v", withGrad)
		assert.InDelta(t, 0.0, score, 1e-5)
	}
}

func TestMaximizeAcquisitionStaysInBox(t *testing.T) {
	bounds := []Bound{{Min: -1, Max: 1}, {Min: -1, Max: 1}}

	x, _, err := maximizeAcquisition(bowl([]float64{4, -9}), bounds, 3, rand.New(rand.NewSource(2)), SearchSettings{}, discardLogger())
	require.NoError(t, err)

	for i, b := range bounds {
		assert.GreaterOrEqual(t, x[i], b.Min)
		assert.LessOrEqual(t, x[i], b.Max)
	}

	assert.InDelta(t, 1.0, x[0], 1e-2)
	assert.InDelta(t, -1.0, x[1], 1e-2)
}

func TestMaximizeAcquisitionDegenerateBox(t *testing.T) {
	bounds := []Bound{{Min: 2, Max: 2}, {Min: -1, Max: 1}}

	x, _, err := maximizeAcquisition(bowl([]float64{0, 0.5}), bounds, 2, rand.New(rand.NewSource(3)), SearchSettings{}, discardLogger())
	require.NoError(t, err)

	assert.Equal(t, 2.0, x[0])
	assert.InDelta(t, 0.5, x[1], 1e-3)
}

func TestMaximizeAcquisitionRunsEveryRestart(t *testing.T) {
	var calls atomic.Int64

	base := bowl([]float64{0})
	p := acquisitionProblem{
		score: func(x []float64) float64 {
			calls.Add(1)

			return base.score(x)
		},
		grad: base.grad,
	}

	_, _, err := maximizeAcquisition(p, []Bound{{Min: -1, Max: 1}}, 10, rand.New(rand.NewSource(4)), SearchSettings{}, discardLogger())
	require.NoError(t, err)

	// Every restart evaluates at least its start and its final point.
	assert.GreaterOrEqual(t, calls.Load(), int64(20))
}

func TestMaximizeAcquisitionIsReproducible(t *testing.T) {
	// Several local maxima, so the start points matter.
	p := acquisitionProblem{
		score: func(x []float64) float64 { return math.Sin(3*x[0]) + 0.1*x[0] },
	}

	bounds := []Bound{{Min: -4, Max: 4}}

	x1, s1, err := maximizeAcquisition(p, bounds, 5, rand.New(rand.NewSource(9)), SearchSettings{}, discardLogger())
	require.NoError(t, err)

	x2, s2, err := maximizeAcquisition(p, bounds, 5, rand.New(rand.NewSource(9)), SearchSettings{}, discardLogger())
	require.NoError(t, err)

	assert.Equal(t, x1, x2)
	assert.Equal(t, s1, s2)
}

func TestMaximizeAcquisitionAllRestartsFail(t *testing.T) {
	p := acquisitionProblem{
		score: func([]float64) float64 { return math.NaN() },
	}

	_, _, err := maximizeAcquisition(p, []Bound{{Min: 0, Max: 1}}, 3, rand.New(rand.NewSource(5)),
		SearchSettings{MajorIterations: 3, FuncEvaluations: 20}, discardLogger())
	assert.ErrorIs(t, err, ErrNoFeasibleCandidate)
}
