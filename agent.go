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
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

//////
// Const, vars, types.
//////

// minTargetScale is the smallest target spread used for standardization.
const minTargetScale = 1e-12

// SSPAgent is the encoding-based strategy. Points are encoded as spatial
// semantic pointers, a Bayesian linear regression over the encoding models
// the target, and the next query maximizes the predicted mean plus a
// mutual-information bonus.
//
// Lifecycle:
//   - NewSSPAgent fixes the basis, calibrates the length scale and seeds
//     the posterior with the initial samples
//   - afterwards SelectOptimal, external evaluation and Update alternate for
//     as long as the caller wants
//
// Thread safety:
//   - Update takes the write lock, Eval and SelectOptimal the read lock, so
//     updates are serialized and selection always sees one consistent
//     posterior
//   - the encoding cache and the random source have their own locks.
//
// Targets are standardized with the mean and standard deviation of the
// initial samples before they reach the posterior, so the zero prior mean
// sits at the average observed target. Eval, SelectOptimal, Update and
// Gamma all work in the caller's units.
type SSPAgent struct {
	// mu guards gamma and serializes posterior updates.
	mu    sync.RWMutex
	gamma float64

	ptrs    *PointerSet
	basis   BasisInfo
	encoder *Encoder
	blr     *BayesianLinearRegression

	calibration Calibration
	scaling     targetScaling
	sqrtAlpha   float64
	restarts    int
	analytic    bool
	search      SearchSettings

	rngMu sync.Mutex
	rng   *rand.Rand

	cache encodingCache

	logger *slog.Logger
	tracer trace.Tracer
}

// targetScaling maps targets to the standardized units of the posterior:
// y' = (y - offset) / scale.
type targetScaling struct {
	offset float64
	scale  float64
}

// encodingCache remembers the encoding of the last batch passed to Eval.
// A hit requires the same values, not merely the same slice.
type encodingCache struct {
	mu   sync.Mutex
	xs   [][]float64
	phis [][]float64
}

//////
// Exported functionalities.
//////

// DefaultAgentConfig returns the configuration used when a field is left
// at its zero value.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		Basis:           DefaultBasisConfig(),
		Restarts:        10,
		Delta:           1e-6,
		LengthScaleInit: 4.0,
		PriorPrecision:  1.0,
		NoiseVariance:   1.0,
		Search: SearchSettings{
			GradientThreshold: 1e-6,
			MajorIterations:   200,
		},
		KernelWidth: 1.0,
		AcqParams: AcquisitionParams{
			Beta: 2.0,
			Xi:   0.01,
		},
	}
}

//////
// Factory.
//////

// NewSSPAgent builds an SSP agent from N initial samples xs (N×D) and their
// targets ys. The agent maximizes the target; negate an objective to
// minimize it.
//
// Steps:
//  1. Generate the pointer set for D dimensions (cfg.Basis)
//  2. Calibrate one length scale per dimension on (xs, ys), unless
//     cfg.LengthScale is given
//  3. Standardize ys, encode xs and seed the posterior with them
//
// Returns:
// - ErrEmptyInput if xs is empty
// - ErrDimensionMismatch for ragged xs, len(ys) != N or a bad cfg.LengthScale
// - an error if rng is nil.
func NewSSPAgent(xs [][]float64, ys []float64, cfg AgentConfig, rng *rand.Rand, opts ...AgentOption) (*SSPAgent, error) {
	if len(xs) == 0 {
		return nil, fmt.Errorf("ssp agent: %w", ErrEmptyInput)
	}

	if err := validateSamples(len(xs[0]), xs, ys); err != nil {
		return nil, fmt.Errorf("ssp agent: %w", err)
	}

	if rng == nil {
		return nil, errors.New("ssp agent: a random source is required")
	}

	o := newAgentOptions(opts)
	cfg = cfg.withDefaults()
	dim := len(xs[0])

	_, span := o.tracer.Start(context.Background(), "sspbo.NewSSPAgent", trace.WithAttributes(
		attribute.Int("sspbo.samples", len(xs)),
		attribute.Int("sspbo.input_dim", dim),
		attribute.String("sspbo.basis", string(cfg.Basis.Variant)),
	))
	defer span.End()

	ptrs, info, err := GenerateBasis(dim, cfg.Basis, rng)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "basis generation failed")

		return nil, fmt.Errorf("ssp agent: %w", err)
	}

	calibration, err := calibrate(ptrs, xs, ys, cfg, o.logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "length scale calibration failed")

		return nil, fmt.Errorf("ssp agent: %w", err)
	}

	encoder, err := NewEncoder(ptrs, calibration.LengthScale)
	if err != nil {
		return nil, fmt.Errorf("ssp agent: %w", err)
	}

	blr, err := NewBayesianLinearRegression(ptrs.Dim(), cfg.PriorPrecision, cfg.NoiseVariance)
	if err != nil {
		return nil, fmt.Errorf("ssp agent: %w", err)
	}

	phis, err := encoder.Encode(xs)
	if err != nil {
		return nil, fmt.Errorf("ssp agent: %w", err)
	}

	scaling := newTargetScaling(ys)

	if err := blr.Update(phis, scaling.standardize(ys)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "posterior seeding failed")

		return nil, fmt.Errorf("ssp agent: %w", err)
	}

	span.SetAttributes(attribute.Int("sspbo.encoding_dim", ptrs.Dim()))

	return &SSPAgent{
		ptrs:        ptrs,
		basis:       info,
		encoder:     encoder,
		blr:         blr,
		calibration: calibration,
		scaling:     scaling,
		sqrtAlpha:   ExplorationWidth(cfg.Delta),
		restarts:    cfg.Restarts,
		analytic:    cfg.AnalyticGradient,
		search:      cfg.Search,
		rng:         rng,
		logger:      o.logger,
		tracer:      o.tracer,
	}, nil
}

//////
// Methods.
//////

// InputDim returns D.
func (a *SSPAgent) InputDim() int { return a.ptrs.Len() }

// EncodingDim returns K.
func (a *SSPAgent) EncodingDim() int { return a.ptrs.Dim() }

// LengthScale returns a copy of the calibrated length scale.
func (a *SSPAgent) LengthScale() []float64 { return a.encoder.LengthScale() }

// Calibration returns the outcome of the length scale fit.
func (a *SSPAgent) Calibration() Calibration { return a.calibration }

// Basis returns the auxiliary information of the generated basis.
func (a *SSPAgent) Basis() BasisInfo { return a.basis }

// Posterior returns the underlying regression model for inspection. It
// works in standardized target units, see TargetScaling.
func (a *SSPAgent) Posterior() *BayesianLinearRegression { return a.blr }

// TargetScaling returns the offset and scale mapping a target y to the
// posterior's units, (y - offset) / scale.
func (a *SSPAgent) TargetScaling() (offset, scale float64) {
	return a.scaling.offset, a.scaling.scale
}


// Gamma returns the exploration accumulator γ_t.
func (a *SSPAgent) Gamma() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.gamma
}

// Encode encodes a batch of points with the agent's pointers and length
// scale.
func (a *SSPAgent) Encode(xs [][]float64) ([][]float64, error) {
	return a.encoder.Encode(xs)
}

// Eval returns, for every point of xs, the posterior predictive mean and
// variance and the exploration bonus
//
//	sqrt(log(2/δ)) · (sqrt(var + γ) − sqrt(γ)).
//
// The encoding of the last batch is cached; calling Eval again with the
// same values skips the encoding.
func (a *SSPAgent) Eval(xs [][]float64) ([]float64, []float64, []float64, error) {
	if err := validatePoints(a.InputDim(), xs); err != nil {
		return nil, nil, nil, fmt.Errorf("eval: %w", err)
	}

	phis, err := a.cachedEncode(xs)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("eval: %w", err)
	}

	a.mu.RLock()
	gamma := a.gamma
	post := a.blr.snapshot()
	a.mu.RUnlock()

	mu, variance, err := post.predict(phis)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("eval: %w", err)
	}

	bonus := make([]float64, len(variance))
	for i := range variance {
		mu[i] = a.scaling.mean(mu[i])
		variance[i] = a.scaling.variance(variance[i])
		bonus[i] = a.sqrtAlpha * explorationBonus(variance[i], gamma)
	}

	return mu, variance, bonus, nil
}

// SelectOptimal searches bounds for the point maximizing
//
//	φ(x)·m + sqrt(γ + β⁻¹ + φ(x)ᵀSφ(x)) − sqrt(γ)
//
// with independent L-BFGS runs from uniform random starts, and returns the
// best point, its score and a reserved nil payload. The returned point lies
// inside bounds.
//
// Returns:
// - ErrDimensionMismatch or ErrInvalidBounds for a malformed box
// - ErrNoFeasibleCandidate if every restart failed.
func (a *SSPAgent) SelectOptimal(bounds []Bound) ([]float64, float64, any, error) {
	if err := validateBounds(a.InputDim(), bounds); err != nil {
		return nil, 0, nil, fmt.Errorf("select optimal: %w", err)
	}

	_, span := a.tracer.Start(context.Background(), "sspbo.SSPAgent.SelectOptimal", trace.WithAttributes(
		attribute.Int("sspbo.restarts", a.restarts),
		attribute.Bool("sspbo.analytic_gradient", a.analytic),
	))
	defer span.End()

	a.mu.RLock()
	defer a.mu.RUnlock()

	problem := a.acquisition(a.blr.snapshot(), a.gamma)

	x, score, err := maximizeAcquisition(problem, bounds, a.restarts, a.restartSource(), a.search, a.logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "acquisition search failed")

		return nil, 0, nil, fmt.Errorf("select optimal: %w", err)
	}

	span.SetAttributes(attribute.Float64("sspbo.score", score))

	return x, score, nil, nil
}

// Update encodes the observations, forwards them to the posterior and adds
// sigma to the exploration accumulator γ_t.
//
// Returns ErrDimensionMismatch for malformed input and an error for a
// negative or NaN sigma; γ_t never decreases.
func (a *SSPAgent) Update(xs [][]float64, ys []float64, sigma float64) error {
	if err := validateSamples(a.InputDim(), xs, ys); err != nil {
		return fmt.Errorf("update: %w", err)
	}

	if !(sigma >= 0) {
		return fmt.Errorf("update: sigma %v must be non-negative", sigma)
	}

	_, span := a.tracer.Start(context.Background(), "sspbo.SSPAgent.Update", trace.WithAttributes(
		attribute.Int("sspbo.samples", len(xs)),
		attribute.Float64("sspbo.sigma", sigma),
	))
	defer span.End()

	phis, err := a.encoder.Encode(xs)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.blr.Update(phis, a.scaling.standardize(ys)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "posterior update failed")

		return fmt.Errorf("update: %w", err)
	}

	a.gamma += sigma

	return nil
}

// UpdateOne is Update for a single observation.
func (a *SSPAgent) UpdateOne(x []float64, y, sigma float64) error {
	return a.Update([][]float64{x}, []float64{y}, sigma)
}

//////
// Helpers.
//////

// acquisition builds the search problem over a fixed posterior snapshot.
// gamma is in the caller's units; the score is evaluated in standardized
// units and mapped back, which leaves its maximizer unchanged.
func (a *SSPAgent) acquisition(post posterior, gamma float64) acquisitionProblem {
	sc := a.scaling
	gamma /= sc.scale * sc.scale
	base := gamma + post.noiseVar
	sqrtGamma := math.Sqrt(gamma)
	m := post.m.RawVector().Data

	p := acquisitionProblem{
		score: func(x []float64) float64 {
			phi, err := a.encoder.EncodeOne(x)
			if err != nil {
				return math.NaN()
			}

			v := mat.NewVecDense(len(phi), phi)

			return sc.mean(floats.Dot(phi, m) + math.Sqrt(base+mat.Inner(v, post.s, v)) - sqrtGamma)
		},
	}

	if a.analytic {
		p.grad = func(dst, x []float64) {
			phi, jac, err := a.encoder.EncodeWithJacobian(x)
			if err != nil {
				for i := range dst {
					dst[i] = math.NaN()
				}

				return
			}

			v := mat.NewVecDense(len(phi), phi)

			var sphi mat.VecDense
			sphi.MulVec(post.s, v)

			scale := math.Sqrt(base + mat.Dot(v, &sphi))

			w := make([]float64, len(phi))
			floats.AddScaledTo(w, m, 1/scale, sphi.RawVector().Data)
			floats.Scale(sc.scale, w)

			for d := range dst {
				dst[d] = floats.Dot(w, jac[d])
			}
		}
	}

	return p
}

// restartSource derives a private random source for one selection, so
// concurrent selections never share the agent's generator.
func (a *SSPAgent) restartSource() *rand.Rand {
	a.rngMu.Lock()
	defer a.rngMu.Unlock()

	return rand.New(rand.NewSource(a.rng.Int63()))
}

func (a *SSPAgent) cachedEncode(xs [][]float64) ([][]float64, error) {
	a.cache.mu.Lock()
	defer a.cache.mu.Unlock()

	if a.cache.phis != nil && sameRows(a.cache.xs, xs) {
		return a.cache.phis, nil
	}

	phis, err := a.encoder.Encode(xs)
	if err != nil {
		return nil, err
	}

	a.cache.xs = copyRows(xs)
	a.cache.phis = phis

	return phis, nil
}

// newTargetScaling standardizes with the sample mean and standard deviation
// of ys. A single sample or constant targets keep unit scale.
func newTargetScaling(ys []float64) targetScaling {
	offset, std := stat.MeanStdDev(ys, nil)
	if len(ys) < 2 || !(std > minTargetScale) || math.IsInf(std, 0) {
		std = 1
	}

	return targetScaling{offset: offset, scale: std}
}

func (t targetScaling) standardize(ys []float64) []float64 {
	out := make([]float64, len(ys))
	for i, y := range ys {
		out[i] = (y - t.offset) / t.scale
	}

	return out
}

// mean maps a standardized value back to target units.
func (t targetScaling) mean(v float64) float64 { return t.offset + t.scale*v }

func (t targetScaling) variance(v float64) float64 { return t.scale * t.scale * v }

// calibrate returns the length scale, either fitted or taken from cfg.
func calibrate(ptrs *PointerSet, xs [][]float64, ys []float64, cfg AgentConfig, logger *slog.Logger) (Calibration, error) {
	if cfg.LengthScale == nil {
		return FitLengthScale(ptrs, xs, ys, cfg.LengthScaleInit, cfg.Search, logger)
	}

	if len(cfg.LengthScale) != ptrs.Len() {
		return Calibration{}, fmt.Errorf("%d length scales for %d dimensions: %w", len(cfg.LengthScale), ptrs.Len(), ErrDimensionMismatch)
	}

	ls := positive(cfg.LengthScale, 0)
	for i := range ls {
		if ls[i] == 0 {
			ls[i] = cfg.LengthScaleInit
		}
	}

	sse, rank := encodedResidual(ptrs, ls, xs, ys)

	return Calibration{LengthScale: ls, Residual: sse, Rank: rank}, nil
}

// withDefaults fills zero fields from DefaultAgentConfig.
func (c AgentConfig) withDefaults() AgentConfig {
	def := DefaultAgentConfig()

	if c.Basis.Variant == "" {
		c.Basis.Variant = def.Basis.Variant
	}

	if c.Basis.EncodingDim == 0 && c.Basis.Rotates == 0 && c.Basis.Scales == 0 {
		c.Basis.EncodingDim = def.Basis.EncodingDim
		c.Basis.Rotates = def.Basis.Rotates
		c.Basis.Scales = def.Basis.Scales
	}

	if c.Basis.ScaleMin == 0 && c.Basis.ScaleMax == 0 {
		c.Basis.ScaleMin = def.Basis.ScaleMin
		c.Basis.ScaleMax = def.Basis.ScaleMax
	}

	if c.Restarts <= 0 {
		c.Restarts = def.Restarts
	}

	if !(c.Delta > 0 && c.Delta < 2) {
		c.Delta = def.Delta
	}

	if !(c.LengthScaleInit > 0) {
		c.LengthScaleInit = def.LengthScaleInit
	}

	if !(c.PriorPrecision > 0) {
		c.PriorPrecision = def.PriorPrecision
	}

	if !(c.NoiseVariance > 0) {
		c.NoiseVariance = def.NoiseVariance
	}

	if c.Search == (SearchSettings{}) {
		c.Search = def.Search
	}

	if !(c.KernelWidth > 0) {
		c.KernelWidth = def.KernelWidth
	}

	if c.AcqParams.Beta == 0 {
		c.AcqParams.Beta = def.AcqParams.Beta
	}

	if c.AcqParams.Xi == 0 {
		c.AcqParams.Xi = def.AcqParams.Xi
	}

	return c
}
