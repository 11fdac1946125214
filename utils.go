package sspbo

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

//////
// Helper functions.
//////

// Helper function used by PI and EI to compute the cumulative distribution
// function of the standard normal distribution.
//
// Returns:
// - Probability that a standard normal random variable is less than x.
func normalCDF(x float64) float64 {
	return 0.5 * (1.0 + math.Erf(x/math.Sqrt2))
}

// Helper function used by EI to compute the probability density function
// of the standard normal distribution.
//
// Returns:
// - Value of the standard normal PDF at x.
func normalPDF(x float64) float64 {
	return math.Exp(-x*x/2.0) / math.Sqrt(2.0*math.Pi)
}

// measureExecutionTime runs a benchmark function with the given parameters
// and measures its execution time in seconds.
//
// Important notes:
// - Time measurement includes only the execution of f, not parameter preparation
// - A failing benchmark returns its error, the measured time is discarded
//
// Thread safety:
//   - This function is thread-safe if and only if the provided benchmark
//     function is thread-safe.
func measureExecutionTime[T Number](f BenchmarkFunc[T], params []T) (float64, error) {
	// Record start time with high precision
	start := time.Now()

	// Execute the benchmark function with provided parameters
	err := f(params...)

	// Calculate total duration
	duration := time.Since(start)

	if err != nil {
		return 0, fmt.Errorf("benchmark failed after %s: %w", duration, err)
	}

	return duration.Seconds(), nil
}

// validateSamples checks a batch of dim-dimensional points against its
// targets.
func validateSamples(dim int, xs [][]float64, ys []float64) error {
	if len(xs) == 0 {
		return ErrEmptyInput
	}

	if len(ys) != len(xs) {
		return fmt.Errorf("%d targets for %d points: %w", len(ys), len(xs), ErrDimensionMismatch)
	}

	return validatePoints(dim, xs)
}

func validatePoints(dim int, xs [][]float64) error {
	for i, x := range xs {
		if len(x) != dim {
			return fmt.Errorf("point %d has length %d, want %d: %w", i, len(x), dim, ErrDimensionMismatch)
		}
	}

	return nil
}

// validateBounds checks a box against the input dimensionality.
func validateBounds(dim int, bounds []Bound) error {
	if len(bounds) != dim {
		return fmt.Errorf("%d bounds for %d dimensions: %w", len(bounds), dim, ErrDimensionMismatch)
	}

	for i, b := range bounds {
		if math.IsNaN(b.Min) || math.IsNaN(b.Max) || math.IsInf(b.Min, 0) || math.IsInf(b.Max, 0) || b.Min > b.Max {
			return fmt.Errorf("bound %d [%v, %v]: %w", i, b.Min, b.Max, ErrInvalidBounds)
		}
	}

	return nil
}

// identity returns the n×n identity matrix.
func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}

	return m
}

// rowsToDense copies equally long rows into a dense matrix.
func rowsToDense(rows [][]float64) *mat.Dense {
	m := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, r := range rows {
		m.SetRow(i, r)
	}

	return m
}

// singularCutoff is the relative singular value threshold below which
// directions are treated as numerically null.
func singularCutoff(r, c int, largest float64) float64 {
	return float64(max(r, c)) * 2.220446049250313e-16 * largest
}

// minNormSolve returns the minimum-norm least-squares solution of a·w = b
// (w = pinv(a)·b) and the numerical rank of a.
func minNormSolve(a *mat.Dense, b []float64) ([]float64, int, bool) {
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return nil, 0, false
	}

	r, c := a.Dims()
	values := svd.Values(nil)

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	w := make([]float64, c)
	if len(values) == 0 {
		return w, 0, true
	}

	cutoff := singularCutoff(r, c, values[0])
	bv := mat.NewVecDense(len(b), b)

	rank := 0
	for k, s := range values {
		if s <= cutoff {
			break
		}

		rank++

		coef := mat.Dot(u.ColView(k), bv) / s
		for j := 0; j < c; j++ {
			w[j] += coef * v.At(j, k)
		}
	}

	return w, rank, true
}

// pseudoInverse returns the Moore-Penrose pseudo-inverse of a.
func pseudoInverse(a mat.Matrix) (*mat.Dense, bool) {
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return nil, false
	}

	r, c := a.Dims()
	values := svd.Values(nil)

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	inv := mat.NewDense(c, r, nil)
	if len(values) == 0 {
		return inv, true
	}

	cutoff := singularCutoff(r, c, values[0])

	for k, s := range values {
		if s <= cutoff {
			break
		}

		var term mat.Dense
		term.Outer(1/s, v.ColView(k), u.ColView(k))
		inv.Add(inv, &term)
	}

	return inv, true
}

// symmetrize returns (a + aᵀ)/2 as a symmetric matrix.
func symmetrize(a mat.Matrix) *mat.SymDense {
	n, _ := a.Dims()
	s := mat.NewSymDense(n, nil)

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, 0.5*(a.At(i, j)+a.At(j, i)))
		}
	}

	return s
}

// clampToBounds projects x onto the box in place.
func clampToBounds(x []float64, bounds []Bound) {
	for i, b := range bounds {
		x[i] = math.Min(math.Max(x[i], b.Min), b.Max)
	}
}

// sameRows reports whether two batches hold identical values.
func sameRows(a, b [][]float64) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}

		for j := range a[i] {
			if a[i][j] != b[i][j] {
				return false
			}
		}
	}

	return true
}

// copyRows deep-copies a batch.
func copyRows(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = append([]float64(nil), r...)
	}

	return out
}
