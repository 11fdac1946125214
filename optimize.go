package sspbo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Phases reported on the progress channel.
const (
	PhaseInitialSampling = "InitialSampling"
	PhaseOptimization    = "Optimization"
)

//////
// Exported functionalities.
//////

// DefaultConfig returns a default configuration.
func DefaultConfig() OptimizationConfig {
	return OptimizationConfig{
		Iterations:     50,
		InitialSamples: 10,
		Strategy:       StrategySSP,
		Agent:          DefaultAgentConfig(),
		RandomState:    rand.New(rand.NewSource(time.Now().UnixNano())),
		ProgressChan:   nil, // Default to no progress updates.
	}
}

// BenchmarkObjective turns a benchmark function into an objective whose
// value is the benchmark's execution time in seconds. Minimizing it finds
// the fastest parameter combination.
func BenchmarkObjective[T Number](f BenchmarkFunc[T]) ObjectiveFunc[T] {
	return func(params ...T) (float64, error) {
		return measureExecutionTime(f, params)
	}
}

// Minimize uses Bayesian optimization to find the parameters minimizing
// objective inside the box spanned by hypers.
//
// Type Parameter:
//   - T: The numeric type for parameters (int64 or float64)
//
// Parameters:
// - ctx: checked before every evaluation, cancelling it stops the run
// - config: OptimizationConfig controlling the optimization process
// - objective: The function to minimize
// - hypers: One or more ParameterRange defining the search space
//
// Returns:
// - *Result[T]: The best parameters found and the full run history
// - error: invalid ranges, strategy failures, objective errors, or ctx.Err()
//
// Usage example:
//
//	ranges := []ParameterRange[float64]{
//	    {Min: -10, Max: 10},
//	    {Min: -10, Max: 10},
//	}
//
//	result, err := Minimize(ctx, DefaultConfig(),
//	    func(p ...float64) (float64, error) {
//	        return p[0]*p[0] + p[1]*p[1], nil
//	    },
//	    ranges...,
//	)
//
// How it works:
// 1. Takes InitialSamples uniform random samples
// 2. Builds the configured strategy on them, with the objective negated
// because the strategies maximize
// 3. For each iteration:
//   - Asks the strategy for the point maximizing its acquisition
//   - Rounds it for integer T
//   - Records the strategy's prediction there, then evaluates it
//   - Updates the strategy with the observation and the predicted variance
//
// Important notes:
// - A partial Result is returned together with any error
// - Integer parameters are searched continuously and rounded.
func Minimize[T Number](
	ctx context.Context,
	config OptimizationConfig,
	objective ObjectiveFunc[T],
	hypers ...ParameterRange[T],
) (*Result[T], error) {
	if objective == nil {
		return nil, errors.New("minimize: nil objective")
	}

	if len(hypers) == 0 {
		return nil, fmt.Errorf("minimize: no parameter ranges: %w", ErrEmptyInput)
	}

	bounds := make([]Bound, len(hypers))
	for i, h := range hypers {
		bounds[i] = Bound{Min: float64(h.Min), Max: float64(h.Max)}
	}

	if err := validateBounds(len(bounds), bounds); err != nil {
		return nil, fmt.Errorf("minimize: %w", err)
	}

	rng := config.RandomState
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	initial := max(config.InitialSamples, 1)

	result := &Result[T]{BestValue: math.Inf(1)}

	// sendProgress never blocks; a full channel drops the update.
	sendProgress := func(phase string, iteration, total int, params []T, value float64) {
		if config.ProgressChan == nil {
			return
		}

		update := ProgressUpdate{
			Phase:             phase,
			CurrentIteration:  iteration,
			TotalIterations:   total,
			CurrentParams:     toFloat64s(params),
			CurrentBestParams: toFloat64s(result.BestParams),
			CurrentBestValue:  result.BestValue,
			LastValue:         value,
		}

		select {
		case config.ProgressChan <- update:
		default:
			// Skip update if channel is full.
		}
	}

	evaluate := func(params []T) (float64, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		value, err := objective(params...)
		if err != nil {
			return 0, fmt.Errorf("objective at %v: %w", params, err)
		}

		result.Samples = append(result.Samples, append([]T(nil), params...))
		result.Values = append(result.Values, value)

		if value < result.BestValue || result.BestParams == nil {
			result.BestValue = value
			result.BestParams = append([]T(nil), params...)
		}

		result.BestSoFar = append(result.BestSoFar, result.BestValue)

		return value, nil
	}

	// Phase 1: Initial random sampling.
	xs := make([][]float64, 0, initial)
	ys := make([]float64, 0, initial)

	for i := 0; i < initial; i++ {
		params := randomParams(hypers, rng)

		value, err := evaluate(params)
		if err != nil {
			return result, fmt.Errorf("minimize: initial sample %d: %w", i, err)
		}

		xs = append(xs, toFloat64s(params))
		ys = append(ys, -value)

		sendProgress(PhaseInitialSampling, i+1, initial, params, value)
	}

	strategy, err := NewStrategy(config.Strategy, xs, ys, config.Agent, rng, config.Options...)
	if err != nil {
		return result, fmt.Errorf("minimize: %w", err)
	}

	// Phase 2: Bayesian optimization loop.
	for i := 0; i < config.Iterations; i++ {
		start := time.Now()

		x, score, _, err := strategy.SelectOptimal(bounds)
		if err != nil {
			return result, fmt.Errorf("minimize: iteration %d: %w", i, err)
		}

		params := fromFloat64s[T](x)
		clampParams(params, hypers)
		x = toFloat64s(params)

		mu, variance, _, err := strategy.Eval([][]float64{x})
		if err != nil {
			return result, fmt.Errorf("minimize: iteration %d: %w", i, err)
		}

		value, err := evaluate(params)
		if err != nil {
			return result, fmt.Errorf("minimize: iteration %d: %w", i, err)
		}

		if err := strategy.UpdateOne(x, -value, variance[0]); err != nil {
			return result, fmt.Errorf("minimize: iteration %d: %w", i, err)
		}

		result.Means = append(result.Means, -mu[0])
		result.Variances = append(result.Variances, variance[0])
		result.Acquisition = append(result.Acquisition, score)
		result.Durations = append(result.Durations, time.Since(start))

		sendProgress(PhaseOptimization, i+1, config.Iterations, params, value)
	}

	return result, nil
}

//////
// Helpers.
//////

// isIntegral reports whether T truncates fractions.
func isIntegral[T Number]() bool {
	half := 0.5

	return T(half) == 0
}

// randomParams draws a uniform point; integer ranges include both ends.
func randomParams[T Number](hypers []ParameterRange[T], rng *rand.Rand) []T {
	params := make([]T, len(hypers))

	for i, h := range hypers {
		lo, hi := float64(h.Min), float64(h.Max)

		if isIntegral[T]() {
			params[i] = T(int64(lo) + rng.Int63n(int64(hi)-int64(lo)+1))

			continue
		}

		params[i] = T(lo + rng.Float64()*(hi-lo))
	}

	return params
}

func toFloat64s[T Number](params []T) []float64 {
	if params == nil {
		return nil
	}

	out := make([]float64, len(params))
	for i, v := range params {
		out[i] = float64(v)
	}

	return out
}

func fromFloat64s[T Number](x []float64) []T {
	out := make([]T, len(x))

	for i, v := range x {
		if isIntegral[T]() {
			v = math.Round(v)
		}

		out[i] = T(v)
	}

	return out
}

func clampParams[T Number](params []T, hypers []ParameterRange[T]) {
	for i, h := range hypers {
		params[i] = min(max(params[i], h.Min), h.Max)
	}
}
