package sspbo

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// boxMargin keeps logistic start points away from the saturated tails.
const boxMargin = 1e-6

// acquisitionProblem is the function maximized by the acquisition search.
type acquisitionProblem struct {
	// score returns the acquisition value at x (higher is better).
	score func(x []float64) float64

	// grad writes ∂score/∂x into dst. Nil selects central finite
	// differences.
	grad func(dst, x []float64)
}

// candidate is the outcome of one restart.
type candidate struct {
	x     []float64
	score float64
	err   error
}

// maximizeAcquisition runs one bounded L-BFGS search per restart, each from
// a uniform random start inside bounds, and returns the best local optimum.
//
// Start points are drawn from rng before any search runs, so results do not
// depend on scheduling. Restarts run concurrently and write only their own
// slot. A failing restart is skipped; if every restart fails the error
// wraps ErrNoFeasibleCandidate.
func maximizeAcquisition(
	p acquisitionProblem,
	bounds []Bound,
	restarts int,
	rng *rand.Rand,
	settings SearchSettings,
	logger *slog.Logger,
) ([]float64, float64, error) {
	restarts = max(restarts, 1)

	starts := make([][]float64, restarts)
	for r := range starts {
		starts[r] = make([]float64, len(bounds))
		for i, b := range bounds {
			starts[r][i] = b.Min + rng.Float64()*(b.Max-b.Min)
		}
	}

	results := make([]candidate, restarts)

	var g errgroup.Group

	for r := range starts {
		r := r
		g.Go(func() error {
			results[r] = localSearch(p, bounds, starts[r], settings)

			return nil
		})
	}

	_ = g.Wait()

	best := -1
	scores := make([]float64, restarts)
	errs := make([]error, 0, restarts)

	for r, c := range results {
		scores[r] = math.Inf(-1)

		if c.err != nil {
			logger.Debug("acquisition restart failed", "restart", r, "error", c.err)
			errs = append(errs, fmt.Errorf("restart %d: %w", r, c.err))

			continue
		}

		scores[r] = c.score
		best = r
	}

	if best < 0 {
		return nil, 0, fmt.Errorf("%w: %w", ErrNoFeasibleCandidate, errors.Join(errs...))
	}

	best = floats.MaxIdx(scores)

	return results[best].x, results[best].score, nil
}

// localSearch maximizes the acquisition from x0 inside bounds. The box is
// handled by the reparameterization x = lo + (hi-lo)·σ(z), with σ the
// logistic function, so L-BFGS runs unconstrained in z.
func localSearch(p acquisitionProblem, bounds []Bound, x0 []float64, settings SearchSettings) candidate {
	toX := func(z []float64) []float64 {
		x := make([]float64, len(z))
		for i, b := range bounds {
			x[i] = b.Min + (b.Max-b.Min)*logistic(z[i])
		}

		return x
	}

	objective := func(z []float64) float64 {
		s := p.score(toX(z))
		if math.IsNaN(s) {
			return math.Inf(1)
		}

		return -s
	}

	problem := optimize.Problem{Func: objective}

	if p.grad != nil {
		gx := make([]float64, len(bounds))

		problem.Grad = func(grad, z []float64) {
			p.grad(gx, toX(z))

			for i, b := range bounds {
				sig := logistic(z[i])
				grad[i] = -gx[i] * (b.Max - b.Min) * sig * (1 - sig)
			}
		}
	} else {
		problem.Grad = func(grad, z []float64) {
			fd.Gradient(grad, objective, z, &fd.Settings{Formula: fd.Central})
		}
	}

	if s := p.score(x0); math.IsNaN(s) || math.IsInf(s, 0) {
		return candidate{err: fmt.Errorf("non-finite acquisition value %v at start %v", s, x0)}
	}

	z0 := make([]float64, len(bounds))
	for i, b := range bounds {
		if b.Max > b.Min {
			u := (x0[i] - b.Min) / (b.Max - b.Min)
			z0[i] = logit(math.Min(math.Max(u, boxMargin), 1-boxMargin))
		}
	}

	grad := problem.Grad
	problem.Grad = func(g, z []float64) {
		grad(g, z)

		// Non-finite components are zeroed.
		for i, v := range g {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				g[i] = 0
			}
		}
	}

	result, err := optimize.Minimize(problem, z0, settings.toOptimize(), &optimize.LBFGS{})
	if result == nil {
		return candidate{err: err}
	}

	x := toX(result.X)
	clampToBounds(x, bounds)

	score := p.score(x)
	if math.IsNaN(score) || math.IsInf(score, 0) {
		if err == nil {
			err = fmt.Errorf("non-finite acquisition value %v", score)
		}

		return candidate{err: err}
	}

	// A line search failure still leaves the best location found, which is
	// a usable, if possibly suboptimal, candidate.
	return candidate{x: x, score: score}
}

func logistic(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func logit(u float64) float64 {
	return math.Log(u / (1 - u))
}
