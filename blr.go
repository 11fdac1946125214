package sspbo

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"
)

//////
// Const, vars, types.
//////

// BayesianLinearRegression keeps a Gaussian posterior N(m, S) over the
// weights of a linear model y = wᵀφ + ε, ε ~ N(0, β⁻¹), with prior
// N(0, α⁻¹I).
//
// Fields:
// - mu: RWMutex for thread-safe access to all fields
// - alpha: prior precision α
// - beta: noise precision β
// - m, s, sInv: posterior mean, covariance and precision
//
// Thread safety:
//   - Update swaps in freshly built matrices under the write lock and never
//     mutates a published matrix, so a snapshot taken under the read lock
//     stays valid after later updates.
//
// Memory usage:
// - O(K²) regardless of the number of observations (sufficient statistics).
type BayesianLinearRegression struct {
	// mu protects access to all fields
	mu sync.RWMutex

	dim   int
	alpha float64
	beta  float64

	m    *mat.VecDense
	s    *mat.SymDense
	sInv *mat.SymDense

	observations int
}

// posterior is an immutable view of the posterior used by the acquisition
// search.
type posterior struct {
	m        *mat.VecDense
	s        *mat.SymDense
	noiseVar float64
}

//////
// Factory.
//////

// NewBayesianLinearRegression creates a posterior over dim weights equal to
// the prior: m = 0, S = I/priorPrecision.
//
// Returns an error if dim < 1 or either parameter is not positive.
func NewBayesianLinearRegression(dim int, priorPrecision, noiseVariance float64) (*BayesianLinearRegression, error) {
	if dim < 1 {
		return nil, fmt.Errorf("bayesian linear regression of dimension %d: %w", dim, ErrEmptyInput)
	}

	if !(priorPrecision > 0) || !(noiseVariance > 0) {
		return nil, fmt.Errorf("bayesian linear regression: prior precision %v and noise variance %v must be positive", priorPrecision, noiseVariance)
	}

	s := mat.NewSymDense(dim, nil)
	sInv := mat.NewSymDense(dim, nil)

	for i := 0; i < dim; i++ {
		s.SetSym(i, i, 1/priorPrecision)
		sInv.SetSym(i, i, priorPrecision)
	}

	return &BayesianLinearRegression{
		dim:   dim,
		alpha: priorPrecision,
		beta:  1 / noiseVariance,
		m:     mat.NewVecDense(dim, nil),
		s:     s,
		sInv:  sInv,
	}, nil
}

//////
// Methods.
//////

// Update incorporates N observations (rows of phis with targets ys):
//
//	S⁻¹ ← S⁻¹ + β ΦᵀΦ
//	m   ← S (S⁻¹_old m + β Φᵀ y)
//
// It can be called any number of times; each call refines the previous
// posterior. S is re-derived by a Cholesky inverse (pseudo-inverse fallback)
// and is symmetric by construction.
func (b *BayesianLinearRegression) Update(phis [][]float64, ys []float64) error {
	if err := validateSamples(b.dim, phis, ys); err != nil {
		return fmt.Errorf("posterior update: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	phi := rowsToDense(phis)

	var gram mat.SymDense
	gram.SymOuterK(b.beta, phi.T())

	sInv := mat.NewSymDense(b.dim, nil)
	sInv.AddSym(b.sInv, &gram)

	var rhs, py mat.VecDense
	rhs.MulVec(b.sInv, b.m)
	py.MulVec(phi.T(), mat.NewVecDense(len(ys), ys))
	rhs.AddScaledVec(&rhs, b.beta, &py)

	s, err := invertSym(sInv)
	if err != nil {
		return fmt.Errorf("posterior update: %w", err)
	}

	m := mat.NewVecDense(b.dim, nil)
	m.MulVec(s, &rhs)

	b.m, b.s, b.sInv = m, s, sInv
	b.observations += len(ys)

	return nil
}

// Predict returns the posterior predictive mean φᵀm and variance
// β⁻¹ + φᵀSφ for each row of phis. It does not change the posterior.
func (b *BayesianLinearRegression) Predict(phis [][]float64) ([]float64, []float64, error) {
	if err := validatePoints(b.dim, phis); err != nil {
		return nil, nil, fmt.Errorf("posterior predict: %w", err)
	}

	return b.snapshot().predict(phis)
}

// Mean returns a copy of the posterior mean m.
func (b *BayesianLinearRegression) Mean() []float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return append([]float64(nil), b.m.RawVector().Data...)
}

// Covariance returns a copy of the posterior covariance S.
func (b *BayesianLinearRegression) Covariance() *mat.SymDense {
	b.mu.RLock()
	defer b.mu.RUnlock()

	c := mat.NewSymDense(b.dim, nil)
	c.CopySym(b.s)

	return c
}

// NoiseVariance returns β⁻¹.
func (b *BayesianLinearRegression) NoiseVariance() float64 {
	return 1 / b.beta
}

// Observations returns the number of targets absorbed so far.
func (b *BayesianLinearRegression) Observations() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.observations
}

func (b *BayesianLinearRegression) snapshot() posterior {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return posterior{m: b.m, s: b.s, noiseVar: 1 / b.beta}
}

func (p posterior) predict(phis [][]float64) ([]float64, []float64, error) {
	mu := make([]float64, len(phis))
	variance := make([]float64, len(phis))

	for i, row := range phis {
		phi := mat.NewVecDense(len(row), row)
		mu[i] = mat.Dot(phi, p.m)
		variance[i] = p.noiseVar + mat.Inner(phi, p.s, phi)
	}

	return mu, variance, nil
}

// invertSym inverts a symmetric positive definite matrix, falling back to
// the pseudo-inverse when the Cholesky factorization fails.
func invertSym(a *mat.SymDense) (*mat.SymDense, error) {
	var chol mat.Cholesky
	if chol.Factorize(a) {
		var inv mat.SymDense
		if err := chol.InverseTo(&inv); err == nil {
			return &inv, nil
		}
	}

	inv, ok := pseudoInverse(a)
	if !ok {
		return nil, ErrSingularPosterior
	}

	return symmetrize(inv), nil
}
