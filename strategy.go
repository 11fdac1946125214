package sspbo

import (
	"fmt"
	"log/slog"
	"math/rand"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// StrategyKind names a surrogate model.
type StrategyKind string

const (
	// StrategySSP is the spatial-semantic-pointer agent with a Bayesian
	// linear regression posterior.
	StrategySSP StrategyKind = "ssp"

	// StrategyGP is the exact Gaussian process agent.
	StrategyGP StrategyKind = "gp"
)

// Strategy is the contract the outer optimization loop drives: propose a
// point with SelectOptimal, evaluate it, feed the observation back with
// Update. Eval exposes the model's belief at arbitrary points.
type Strategy interface {
	// Eval returns the predictive mean, variance and exploration bonus of
	// every point in xs.
	Eval(xs [][]float64) (mu, variance, bonus []float64, err error)

	// Update absorbs the observations (xs[i], ys[i]) with noise variance
	// sigma.
	Update(xs [][]float64, ys []float64, sigma float64) error

	// UpdateOne is Update for a single observation.
	UpdateOne(x []float64, y, sigma float64) error

	// SelectOptimal returns the point inside bounds with the best
	// acquisition score, the score itself and a reserved payload.
	SelectOptimal(bounds []Bound) (x []float64, score float64, reserved any, err error)
}

// AgentOption configures the ambient collaborators of a strategy.
type AgentOption func(*agentOptions)

type agentOptions struct {
	logger *slog.Logger
	tracer trace.Tracer
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) AgentOption {
	return func(o *agentOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracer sets the tracer used for calibration, selection and update
// spans. Default: a no-op tracer.
func WithTracer(tracer trace.Tracer) AgentOption {
	return func(o *agentOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

func newAgentOptions(opts []AgentOption) agentOptions {
	o := agentOptions{
		logger: slog.Default(),
		tracer: noop.NewTracerProvider().Tracer("sspbo"),
	}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// NewStrategy builds the strategy named by kind from the initial samples.
// An empty kind selects StrategySSP.
func NewStrategy(
	kind StrategyKind,
	xs [][]float64,
	ys []float64,
	cfg AgentConfig,
	rng *rand.Rand,
	opts ...AgentOption,
) (Strategy, error) {
	switch kind {
	case "", StrategySSP:
		return NewSSPAgent(xs, ys, cfg, rng, opts...)
	case StrategyGP:
		return NewGPAgent(xs, ys, cfg, rng, opts...)
	default:
		return nil, fmt.Errorf("%q: %w", kind, ErrUnknownStrategy)
	}
}
