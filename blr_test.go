package sspbo

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func randomRows(rng *rand.Rand, n, k int) [][]float64 {
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, k)
		for j := range rows[i] {
			rows[i][j] = rng.NormFloat64()
		}
	}

	return rows
}

func TestBLRPrior(t *testing.T) {
	blr, err := NewBayesianLinearRegression(3, 2, 0.5)
	require.NoError(t, err)

	phi := []float64{1, 2, 2}

	mu, variance, err := blr.Predict([][]float64{phi})
	require.NoError(t, err)

	// var = 1/β + φᵀφ/α.
	assert.InDelta(t, 0.0, mu[0], 1e-12)
	assert.InDelta(t, 0.5+9.0/2, variance[0], 1e-12)
	assert.Equal(t, 0, blr.Observations())
	assert.InDelta(t, 0.5, blr.NoiseVariance(), 1e-12)
}

func TestBLRUpdateShrinksVariance(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	blr, err := NewBayesianLinearRegression(8, 1, 1)
	require.NoError(t, err)

	probes := randomRows(rng, 20, 8)

	_, before, err := blr.Predict(probes)
	require.NoError(t, err)

	for step := 0; step < 5; step++ {
		phis := randomRows(rng, 3, 8)
		ys := []float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}

		require.NoError(t, blr.Update(phis, ys))

		_, after, err := blr.Predict(probes)
		require.NoError(t, err)

		for i := range after {
			assert.LessOrEqual(t, after[i], before[i]+1e-9, "step %d probe %d", step, i)
			assert.GreaterOrEqual(t, after[i], blr.NoiseVariance()-1e-9)
		}

		before = after
	}

	assert.Equal(t, 15, blr.Observations())
}

func TestBLRSequentialEqualsBatch(t *testing.T) {
	rng := rand.New(rand.NewSource(5))

	phis := randomRows(rng, 12, 5)
	ys := make([]float64, len(phis))

	for i := range ys {
		ys[i] = rng.NormFloat64()
	}

	batch, err := NewBayesianLinearRegression(5, 1, 0.1)
	require.NoError(t, err)
	require.NoError(t, batch.Update(phis, ys))

	seq, err := NewBayesianLinearRegression(5, 1, 0.1)
	require.NoError(t, err)

	for i := range phis {
		require.NoError(t, seq.Update(phis[i:i+1], ys[i:i+1]))
	}

	assert.InDeltaSlice(t, batch.Mean(), seq.Mean(), 1e-8)
	assert.True(t, mat.EqualApprox(batch.Covariance(), seq.Covariance(), 1e-8))
}

func TestBLRRecoversLinearWeights(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	w := []float64{1.5, -2, 0.25, 3}

	phis := randomRows(rng, 200, 4)
	ys := make([]float64, len(phis))

	for i, phi := range phis {
		ys[i] = floats.Dot(w, phi)
	}

	blr, err := NewBayesianLinearRegression(4, 1e-6, 1e-4)
	require.NoError(t, err)
	require.NoError(t, blr.Update(phis, ys))

	assert.InDeltaSlice(t, w, blr.Mean(), 1e-3)

	// The covariance stays symmetric.
	cov := blr.Covariance()
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			assert.Equal(t, cov.At(i, j), cov.At(j, i))
		}
	}
}

func TestBLRSnapshotIsStable(t *testing.T) {
	blr, err := NewBayesianLinearRegression(2, 1, 1)
	require.NoError(t, err)

	snap := blr.snapshot()
	require.NoError(t, blr.Update([][]float64{{1, 0}}, []float64{4}))

	// The snapshot still describes the prior.
	assert.Equal(t, 0.0, snap.m.AtVec(0))
	assert.Equal(t, 1.0, snap.s.At(0, 0))
	assert.NotEqual(t, 0.0, blr.Mean()[0])
}

func TestBLRCovarianceIsACopy(t *testing.T) {
	blr, err := NewBayesianLinearRegression(3, 2, 1)
	require.NoError(t, err)
	require.NoError(t, blr.Update([][]float64{{1, 0, 1}}, []float64{1}))

	cov := blr.Covariance()
	r, c := cov.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 3, c)

	want := cov.At(1, 1)
	assert.InDelta(t, 0.5, want, 1e-12)

	cov.SetSym(1, 1, 42)
	assert.Equal(t, want, blr.Covariance().At(1, 1))
}

func TestBLRConcurrentReads(t *testing.T) {
	rng := rand.New(rand.NewSource(9))

	blr, err := NewBayesianLinearRegression(6, 1, 1)
	require.NoError(t, err)

	probes := randomRows(rng, 4, 6)
	updates := randomRows(rng, 10, 6)

	var wg sync.WaitGroup

	for g := 0; g < 4; g++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := 0; i < 50; i++ {
				_, _, err := blr.Predict(probes)
				assert.NoError(t, err)
			}
		}()
	}

	for i := range updates {
		require.NoError(t, blr.Update(updates[i:i+1], []float64{float64(i)}))
	}

	wg.Wait()
}

func TestBLRValidation(t *testing.T) {
	_, err := NewBayesianLinearRegression(0, 1, 1)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = NewBayesianLinearRegression(2, 0, 1)
	assert.Error(t, err)

	_, err = NewBayesianLinearRegression(2, 1, -1)
	assert.Error(t, err)

	blr, err := NewBayesianLinearRegression(2, 1, 1)
	require.NoError(t, err)

	assert.ErrorIs(t, blr.Update([][]float64{{1, 2, 3}}, []float64{1}), ErrDimensionMismatch)
	assert.ErrorIs(t, blr.Update([][]float64{{1, 2}}, []float64{1, 2}), ErrDimensionMismatch)
	assert.ErrorIs(t, blr.Update(nil, nil), ErrEmptyInput)

	_, _, err = blr.Predict([][]float64{{1}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
