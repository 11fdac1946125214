package sspbo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// GPAgent is the exact Gaussian process strategy. It answers the same
// protocol as SSPAgent so both can be driven by Minimize and compared on
// the same targets; its cost grows cubically with the number of
// observations.
type GPAgent struct {
	mu sync.RWMutex

	gp        *gaussianProcess
	dim       int
	gamma     float64
	bestSoFar float64

	acquisition AcquisitionFunc
	params      AcquisitionParams
	sqrtAlpha   float64
	restarts    int
	search      SearchSettings

	rngMu sync.Mutex
	rng   *rand.Rand

	logger *slog.Logger
	tracer trace.Tracer
}

// NewGPAgent builds a GP strategy from the initial samples. The kernel
// width is cfg.KernelWidth, the noise variance cfg.NoiseVariance and the
// acquisition function cfg.Acquisition (MutualInformation when nil).
func NewGPAgent(xs [][]float64, ys []float64, cfg AgentConfig, rng *rand.Rand, opts ...AgentOption) (*GPAgent, error) {
	if len(xs) == 0 {
		return nil, fmt.Errorf("gp agent: %w", ErrEmptyInput)
	}

	if err := validateSamples(len(xs[0]), xs, ys); err != nil {
		return nil, fmt.Errorf("gp agent: %w", err)
	}

	if rng == nil {
		return nil, errors.New("gp agent: a random source is required")
	}

	o := newAgentOptions(opts)
	cfg = cfg.withDefaults()

	_, span := o.tracer.Start(context.Background(), "sspbo.NewGPAgent", trace.WithAttributes(
		attribute.Int("sspbo.samples", len(xs)),
		attribute.Int("sspbo.input_dim", len(xs[0])),
	))
	defer span.End()

	gp := newGaussianProcess(cfg.KernelWidth, cfg.NoiseVariance)
	if err := gp.Update(xs, ys); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gaussian process fit failed")

		return nil, fmt.Errorf("gp agent: %w", err)
	}

	acq := cfg.Acquisition
	if acq == nil {
		acq = MutualInformation
	}

	best := math.Inf(-1)
	for _, y := range ys {
		best = math.Max(best, y)
	}

	o.logger.Debug("gp agent ready", "samples", len(xs), "kernel_width", cfg.KernelWidth)

	return &GPAgent{
		gp:          gp,
		dim:         len(xs[0]),
		bestSoFar:   best,
		acquisition: acq,
		params:      cfg.AcqParams,
		sqrtAlpha:   ExplorationWidth(cfg.Delta),
		restarts:    cfg.Restarts,
		search:      cfg.Search,
		rng:         rng,
		logger:      o.logger,
		tracer:      o.tracer,
	}, nil
}

// Gamma returns the exploration accumulator γ_t.
func (a *GPAgent) Gamma() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.gamma
}

// Observations returns the number of points the model was fitted on.
func (a *GPAgent) Observations() int { return a.gp.Len() }

// Eval returns the predictive mean, variance and mutual-information bonus
// of every point in xs.
func (a *GPAgent) Eval(xs [][]float64) ([]float64, []float64, []float64, error) {
	if err := validatePoints(a.dim, xs); err != nil {
		return nil, nil, nil, fmt.Errorf("eval: %w", err)
	}

	a.mu.RLock()
	gamma := a.gamma
	a.mu.RUnlock()

	mu := make([]float64, len(xs))
	variance := make([]float64, len(xs))
	bonus := make([]float64, len(xs))

	for i, x := range xs {
		mu[i], variance[i] = a.gp.Predict(x)
		bonus[i] = a.sqrtAlpha * explorationBonus(variance[i], gamma)
	}

	return mu, variance, bonus, nil
}

// SelectOptimal maximizes the acquisition function over bounds with
// finite-difference L-BFGS restarts.
func (a *GPAgent) SelectOptimal(bounds []Bound) ([]float64, float64, any, error) {
	if err := validateBounds(a.dim, bounds); err != nil {
		return nil, 0, nil, fmt.Errorf("select optimal: %w", err)
	}

	_, span := a.tracer.Start(context.Background(), "sspbo.GPAgent.SelectOptimal", trace.WithAttributes(
		attribute.Int("sspbo.restarts", a.restarts),
	))
	defer span.End()

	a.mu.RLock()
	defer a.mu.RUnlock()

	params := a.params
	params.Gamma = a.gamma
	params.BestSoFar = a.bestSoFar
	params.SqrtAlpha = a.sqrtAlpha

	problem := acquisitionProblem{
		score: func(x []float64) float64 {
			mean, variance := a.gp.Predict(x)

			return a.acquisition(mean, variance, params)
		},
	}

	a.rngMu.Lock()
	rng := rand.New(rand.NewSource(a.rng.Int63()))
	a.rngMu.Unlock()

	x, score, err := maximizeAcquisition(problem, bounds, a.restarts, rng, a.search, a.logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "acquisition search failed")

		return nil, 0, nil, fmt.Errorf("select optimal: %w", err)
	}

	return x, score, nil, nil
}

// Update refits the model with the new observations and adds sigma to γ_t.
func (a *GPAgent) Update(xs [][]float64, ys []float64, sigma float64) error {
	if err := validateSamples(a.dim, xs, ys); err != nil {
		return fmt.Errorf("update: %w", err)
	}

	if !(sigma >= 0) {
		return fmt.Errorf("update: sigma %v must be non-negative", sigma)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.gp.Update(xs, ys); err != nil {
		return fmt.Errorf("update: %w", err)
	}

	a.gamma += sigma

	for _, y := range ys {
		a.bestSoFar = math.Max(a.bestSoFar, y)
	}

	return nil
}

// UpdateOne is Update for a single observation.
func (a *GPAgent) UpdateOne(x []float64, y, sigma float64) error {
	return a.Update([][]float64{x}, []float64{y}, sigma)
}
