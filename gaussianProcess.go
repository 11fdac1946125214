package sspbo

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

//////
// Const, vars, types.
//////

// maxJitterTries bounds how many times the diagonal is inflated before the
// kernel matrix is declared singular.
const maxJitterTries = 6

// gaussianProcess implements a thread-safe exact Gaussian Process regression
// model with an RBF kernel and Gaussian observation noise. It backs the GP
// strategy, the reference the SSP agent is measured against.
//
// The model keeps every observation and refits from scratch on each change:
// chol factors K + noise·I and alpha holds (K + noise·I)⁻¹(Y - yMean).
// Readers (Predict, GetSigma, Len) take the read lock, writers (Update,
// SetSigma) the write lock. Memory grows as O(n²) in the observation count.
type gaussianProcess struct {
	mu sync.RWMutex

	// X holds the observed points, all of the same dimension.
	X [][]float64

	// Y holds one target per row of X.
	Y []float64

	// sigma is the RBF width. Wider kernels interpolate more smoothly.
	sigma float64

	noise float64
	yMean float64
	chol  *mat.Cholesky
	alpha *mat.VecDense
}

//////
// Methods.
//////

// RBFKernel implements the Radial Basis Function (also known as Gaussian) kernel.
//
// Mathematical formula:
//
//	k(x1, x2) = exp(-sum((x1 - x2)^2) / (2 * sigma^2))
//
// Important notes:
// - Panics if input vectors have different lengths
// - Returns 1.0 for identical points
// - The caller must hold at least the read lock.
func (gp *gaussianProcess) RBFKernel(x1, x2 []float64) float64 {
	if len(x1) != len(x2) {
		panic("input vectors must have the same length")
	}

	d := floats.Distance(x1, x2, 2)

	return math.Exp(-d * d / (2 * gp.sigma * gp.sigma))
}

// Predict returns the posterior predictive mean and variance at x. The
// variance includes the observation noise, matching the SSP posterior.
//
// Mathematical details:
//
//	mean     = yMean + k*ᵀ (K + noise·I)⁻¹ (Y - yMean)
//	variance = k(x, x) - k*ᵀ (K + noise·I)⁻¹ k* + noise
//
// Returns the prior (0, 1 + noise) if no observations exist.
func (gp *gaussianProcess) Predict(x []float64) (mean, variance float64) {
	gp.mu.RLock()
	defer gp.mu.RUnlock()

	if len(gp.X) == 0 || gp.chol == nil {
		return 0, 1 + gp.noise
	}

	k := mat.NewVecDense(len(gp.X), nil)
	for i := range gp.X {
		k.SetVec(i, gp.RBFKernel(x, gp.X[i]))
	}

	mean = gp.yMean + mat.Dot(k, gp.alpha)

	var v mat.VecDense
	if err := gp.chol.SolveVecTo(&v, k); err != nil {
		return mean, 1 + gp.noise
	}

	variance = math.Max(1-mat.Dot(k, &v), 0) + gp.noise

	return mean, variance
}

// Update adds observations and refits the model.
//
// Important notes:
// - Creates deep copies of the input rows to prevent external modifications
// - Refitting is O(n³) in the number of observations
// - On failure the model is left unchanged.
func (gp *gaussianProcess) Update(xs [][]float64, ys []float64) error {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	x := append(append([][]float64(nil), gp.X...), copyRows(xs)...)
	y := append(append([]float64(nil), gp.Y...), ys...)

	if err := gp.refit(x, y); err != nil {
		return err
	}

	gp.X, gp.Y = x, y

	return nil
}

// SetSigma updates the kernel width parameter and refits the model.
//
// Returns an error if sigma is not positive.
func (gp *gaussianProcess) SetSigma(sigma float64) error {
	if !(sigma > 0) {
		return fmt.Errorf("kernel width %v must be positive", sigma)
	}

	gp.mu.Lock()
	defer gp.mu.Unlock()

	old := gp.sigma
	gp.sigma = sigma

	if len(gp.X) == 0 {
		return nil
	}

	if err := gp.refit(gp.X, gp.Y); err != nil {
		gp.sigma = old

		return err
	}

	return nil
}

// GetSigma returns the current kernel width parameter.
func (gp *gaussianProcess) GetSigma() float64 {
	gp.mu.RLock()
	defer gp.mu.RUnlock()

	return gp.sigma
}

// Len returns the number of observations.
func (gp *gaussianProcess) Len() int {
	gp.mu.RLock()
	defer gp.mu.RUnlock()

	return len(gp.X)
}

// refit factorizes K + noise·I for (x, y). When the factorization fails the
// diagonal is inflated tenfold, starting at 1e-10, up to maxJitterTries
// times. The caller must hold the write lock.
func (gp *gaussianProcess) refit(x [][]float64, y []float64) error {
	n := len(x)

	k := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			k.SetSym(i, j, gp.RBFKernel(x[i], x[j]))
		}
	}

	yMean := floats.Sum(y) / float64(n)
	centered := make([]float64, n)
	for i, v := range y {
		centered[i] = v - yMean
	}

	jitter := 0.0

	for try := 0; try <= maxJitterTries; try++ {
		a := mat.NewSymDense(n, nil)
		a.CopySym(k)

		for i := 0; i < n; i++ {
			a.SetSym(i, i, a.At(i, i)+gp.noise+jitter)
		}

		var chol mat.Cholesky
		if chol.Factorize(a) {
			alpha := mat.NewVecDense(n, nil)
			if err := chol.SolveVecTo(alpha, mat.NewVecDense(n, centered)); err == nil {
				gp.chol, gp.alpha, gp.yMean = &chol, alpha, yMean

				return nil
			}
		}

		if jitter == 0 {
			jitter = 1e-10
		} else {
			jitter *= 10
		}
	}

	return fmt.Errorf("gaussian process kernel matrix: %w", ErrSingularPosterior)
}

//////
// Factory.
//////

// newGaussianProcess creates an empty model with kernel width sigma and
// observation noise variance noise.
func newGaussianProcess(sigma, noise float64) *gaussianProcess {
	return &gaussianProcess{
		sigma: sigma,
		noise: noise,
	}
}
