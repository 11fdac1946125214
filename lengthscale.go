package sspbo

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// minLengthScale floors |ℓ| inside the calibration loss so a trial point
// on an axis does not divide by zero.
const minLengthScale = 1e-6

// Calibration is the outcome of FitLengthScale.
type Calibration struct {
	// LengthScale holds one positive length scale per input dimension.
	LengthScale []float64

	// Residual is the summed squared residual of the least-squares fit of
	// the encoded samples at LengthScale.
	Residual float64

	// Rank is the numerical rank of the encoded sample matrix.
	Rank int
}

// FitLengthScale fits one length scale per input dimension to the initial
// samples. For a trial length scale the samples are encoded, the targets
// are regressed on the encodings with the minimum-norm least-squares
// solution (Moore-Penrose), and the summed squared residual is the loss.
// The loss is minimized with L-BFGS from init in every dimension using a
// central finite-difference gradient, and the absolute value of the result
// is returned.
//
// A rank-deficient encoding matrix (too few or degenerate samples, in
// particular N <= D) is not an error: the fit degrades to the minimum-norm
// solution and a warning is logged.
//
// Returns:
// - ErrEmptyInput if xs is empty
// - ErrDimensionMismatch if ys or any row of xs has the wrong length.
func FitLengthScale(
	ptrs *PointerSet,
	xs [][]float64,
	ys []float64,
	init float64,
	settings SearchSettings,
	logger *slog.Logger,
) (Calibration, error) {
	if err := validateSamples(ptrs.Len(), xs, ys); err != nil {
		return Calibration{}, fmt.Errorf("fit length scale: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	if !(init > 0) {
		init = DefaultAgentConfig().LengthScaleInit
	}

	if len(xs) <= ptrs.Len() {
		logger.Warn("length scale calibration is underdetermined",
			"samples", len(xs),
			"dimensions", ptrs.Len(),
		)
	}

	loss := func(ls []float64) float64 {
		sse, _ := encodedResidual(ptrs, positive(ls, minLengthScale), xs, ys)
		if math.IsNaN(sse) {
			return math.Inf(1)
		}

		return sse
	}

	problem := optimize.Problem{
		Func: loss,
		Grad: func(grad, x []float64) {
			fd.Gradient(grad, loss, x, &fd.Settings{Formula: fd.Central})
		},
	}

	x0 := make([]float64, ptrs.Len())
	for i := range x0 {
		x0[i] = init
	}

	result, err := optimize.Minimize(problem, x0, settings.toOptimize(), &optimize.LBFGS{})
	if result == nil {
		return Calibration{}, fmt.Errorf("fit length scale: %w", err)
	}

	if err != nil {
		logger.Warn("length scale search did not converge", "error", err, "status", result.Status.String())
	}

	ls := positive(result.X, 0)
	for i := range ls {
		if ls[i] == 0 || math.IsNaN(ls[i]) || math.IsInf(ls[i], 0) {
			ls[i] = init
		}
	}

	sse, rank := encodedResidual(ptrs, ls, xs, ys)
	if rank < min(len(xs), ptrs.Dim()) {
		logger.Warn("encoded samples are rank deficient, length scale may be poor",
			"rank", rank,
			"samples", len(xs),
			"encoding_dim", ptrs.Dim(),
		)
	}

	logger.Info("selected length scale", "length_scale", ls, "residual", sse)

	return Calibration{LengthScale: ls, Residual: sse, Rank: rank}, nil
}

// encodedResidual encodes xs at ls and returns the residual of the
// minimum-norm linear fit to ys, with the rank of the encoded matrix.
func encodedResidual(ptrs *PointerSet, ls []float64, xs [][]float64, ys []float64) (float64, int) {
	enc, err := NewEncoder(ptrs, ls)
	if err != nil {
		return math.Inf(1), 0
	}

	phis, err := enc.Encode(xs)
	if err != nil {
		return math.Inf(1), 0
	}

	a := rowsToDense(phis)

	w, rank, ok := minNormSolve(a, ys)
	if !ok {
		return math.Inf(1), 0
	}

	var pred mat.VecDense
	pred.MulVec(a, mat.NewVecDense(len(w), w))

	var sse float64
	for i, y := range ys {
		diff := y - pred.AtVec(i)
		sse += diff * diff
	}

	return sse, rank
}

// positive returns |x| element-wise, floored at floor.
func positive(x []float64, floor float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Max(math.Abs(v), floor)
	}

	return out
}

func (s SearchSettings) toOptimize() *optimize.Settings {
	threshold := s.GradientThreshold
	if threshold <= 0 {
		threshold = 1e-8
	}

	return &optimize.Settings{
		GradientThreshold: threshold,
		MajorIterations:   s.MajorIterations,
		FuncEvaluations:   s.FuncEvaluations,
	}
}
