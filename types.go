package sspbo

import (
	"math/rand"
	"time"

	"golang.org/x/exp/constraints"
)

// Number is the set of parameter types the optimizer can search over.
// Integer parameters are searched continuously and rounded before the
// objective is called.
type Number interface {
	constraints.Integer | constraints.Float
}

// ProgressUpdate represents the current state of the optimization process.
type ProgressUpdate struct {
	// Phase indicates whether we're in initial sampling or optimization phase
	Phase string

	// CurrentIteration is the current iteration number
	CurrentIteration int

	// TotalIterations is the total number of iterations to run
	TotalIterations int

	// CurrentParams holds the parameter values being tested
	CurrentParams []float64

	// CurrentBestParams holds the best parameters found so far
	CurrentBestParams []float64

	// CurrentBestValue holds the lowest objective value found so far
	CurrentBestValue float64

	// LastValue holds the objective value of the last evaluation
	LastValue float64
}

// ParameterRange defines the valid range for one input dimension of the
// search space. Each dimension must have a minimum and maximum value.
//
// Type Parameter:
//   - T: The numeric type for this parameter range (int64 or float64)
//
// Fields:
// - Min: The minimum (inclusive) value for this dimension
// - Max: The maximum (inclusive) value for this dimension
//
// Usage:
//
//	// Example 1: Buffer size range from 1KB to 1MB
//	bufferSizeRange := ParameterRange[int64]{
//	    Min: 1024,      // 1KB
//	    Max: 1048576,   // 1MB
//	}
//
//	// Example 2: One coordinate of a waypoint in a 20x20 box
//	coordinate := ParameterRange[float64]{
//	    Min: -10,
//	    Max: 10,
//	}
//
// Validation:
// - Min must be less than or equal to Max
// - The range is inclusive of both Min and Max values
//
// Warning:
//   - Using a very large range may result in slower convergence
//     as the search space becomes too large to explore effectively
type ParameterRange[T Number] struct {
	// Min defines the minimum allowed value (inclusive) for this dimension.
	Min T

	// Max defines the maximum allowed value (inclusive) for this dimension.
	Max T
}

// Bound is the continuous box constraint the agents work with.
type Bound = ParameterRange[float64]

// ObjectiveFunc is the expensive black-box function being minimized.
//
// Parameters:
//   - params: one value per ParameterRange given to Minimize, in order.
//
// Returns:
// - float64: the objective value (lower is better)
// - error: a non-nil error aborts the optimization run.
type ObjectiveFunc[T Number] func(params ...T) (float64, error)

// BenchmarkFunc defines the signature for functions whose execution time is
// minimized. Wrap one with BenchmarkObjective to obtain an ObjectiveFunc.
//
// Usage example:
//
//	intBenchmark := BenchmarkFunc[int64](func(params ...int64) error {
//	    bufferSize := params[0]
//	    workerCount := params[1]
//
//	    return runYourWorkload(bufferSize, workerCount)
//	})
type BenchmarkFunc[T Number] func(params ...T) error

// AcquisitionFunc scores a candidate point from its posterior predictive
// mean and variance. The agents maximize the target (the negated
// objective), so higher values indicate more promising points.
//
// Built-in acquisition functions:
// - UCB: Upper Confidence Bound
// - ProbabilityOfImprovement: Probability of finding better value
// - ExpectedImprovement: Expected magnitude of improvement
// - MutualInformation: GP-MI bonus debiased by the accumulated variance
//
// Implementation notes for custom acquisition functions:
// - Should handle edge cases (zero variance, extreme means)
// - Must be safe for concurrent use, restarts evaluate it in parallel
// - Should be deterministic so the local search can converge.
type AcquisitionFunc func(mean, variance float64, params AcquisitionParams) float64

// AcquisitionParams holds parameters used by the acquisition functions.
type AcquisitionParams struct {
	// Beta controls the exploration-exploitation trade-off of UCB.
	// Typical values range from 0.1 to 5.0, with 2.0 being a good default.
	Beta float64

	// Xi is the minimum improvement required by PI and EI.
	// Typical values range from 0.01 to 0.1.
	Xi float64

	// BestSoFar is the best (highest) target observed so far, used by PI and
	// EI. The agents keep it current.
	BestSoFar float64

	// Gamma is the exploration accumulator γ_t used by MutualInformation.
	// The agents keep it current.
	Gamma float64

	// SqrtAlpha scales the MutualInformation bonus, sqrt(log(2/δ)).
	SqrtAlpha float64
}

// BasisConfig selects and sizes the basis the SSP encoder is built on.
//
// Fields explanation:
//   - Variant: BasisHexagonal (default) or BasisRandom
//   - EncodingDim: total encoding dimension K. For the random variant it is
//     used as is. For the hexagonal variant it is back-solved into
//     Rotates = Scales = floor(sqrt((EncodingDim-1)/6)) when both Rotates and
//     Scales are zero
//   - Rotates, Scales: number of rotations and scales of the hexagonal
//     (simplex) frequency pattern
//   - ScaleMin, ScaleMax: range of the frequency scales
type BasisConfig struct {
	Variant     BasisVariant `yaml:"variant"`
	EncodingDim int          `yaml:"encoding_dim"`
	Rotates     int          `yaml:"rotates"`
	Scales      int          `yaml:"scales"`
	ScaleMin    float64      `yaml:"scale_min"`
	ScaleMax    float64      `yaml:"scale_max"`
}

// SearchSettings bounds each local search run by the calibrator and by the
// acquisition optimizer. Zero values fall back to the optimizer defaults.
type SearchSettings struct {
	// GradientThreshold stops a run once the gradient infinity-norm is
	// below it.
	GradientThreshold float64 `yaml:"gradient_threshold"`

	// MajorIterations caps the number of quasi-Newton iterations per run.
	MajorIterations int `yaml:"major_iterations"`

	// FuncEvaluations caps the number of objective evaluations per run.
	FuncEvaluations int `yaml:"func_evaluations"`
}

// AgentConfig holds the configuration shared by the strategies.
//
// Default values recommendations (see DefaultAgentConfig):
// - Restarts: 10
// - Delta: 1e-6
// - LengthScaleInit: 4.0
// - PriorPrecision: 1.0
// - NoiseVariance: 1.0
type AgentConfig struct {
	// Basis configures the pointer set of the SSP agent.
	Basis BasisConfig `yaml:"basis"`

	// Restarts is the number of random restarts of the acquisition search.
	Restarts int `yaml:"restarts"`

	// Delta is the confidence parameter of the exploration width
	// sqrt(log(2/Delta)).
	Delta float64 `yaml:"delta"`

	// LengthScaleInit is the per-dimension starting guess of the length
	// scale calibration.
	LengthScaleInit float64 `yaml:"length_scale_init"`

	// LengthScale, when set, skips calibration and is used as is (after
	// taking absolute values). Its length must match the input dimension.
	LengthScale []float64 `yaml:"length_scale"`

	// PriorPrecision is α, the precision of the Gaussian weight prior.
	PriorPrecision float64 `yaml:"prior_precision"`

	// NoiseVariance is β⁻¹, the observation noise variance.
	NoiseVariance float64 `yaml:"noise_variance"`

	// AnalyticGradient switches the acquisition search from finite
	// differences to the closed-form gradient through the encoding.
	AnalyticGradient bool `yaml:"analytic_gradient"`

	// Search bounds every local search run.
	Search SearchSettings `yaml:"search"`

	// KernelWidth is the RBF width of the GP strategy.
	KernelWidth float64 `yaml:"kernel_width"`

	// Acquisition is the acquisition function of the GP strategy. Nil
	// selects MutualInformation.
	Acquisition AcquisitionFunc `yaml:"-"`

	// AcqParams holds Beta and Xi for Acquisition. Gamma, BestSoFar and
	// SqrtAlpha are maintained by the agent.
	AcqParams AcquisitionParams `yaml:"-"`
}

// OptimizationConfig holds all configuration parameters for Minimize.
//
// Usage example:
//
//	config := OptimizationConfig{
//	    Iterations:     200,
//	    InitialSamples: 10,
//	    Strategy:       StrategySSP,
//	    Agent:          DefaultAgentConfig(),
//	    RandomState:    rand.New(rand.NewSource(42)),
//	}
//
// Performance impact notes:
// - Total evaluations = InitialSamples + Iterations
// - Each iteration runs Agent.Restarts local searches
//
// Note:
// - Create separate configs for parallel optimizations, RandomState is not
// safe for concurrent use.
type OptimizationConfig struct {
	// Iterations determines how many optimization steps to perform after
	// the initial sampling phase. Each iteration evaluates exactly one point.
	Iterations int

	// InitialSamples determines how many uniform random points are
	// evaluated before the strategy is built. They also feed the length
	// scale calibration.
	InitialSamples int

	// Strategy selects the surrogate model.
	Strategy StrategyKind

	// Agent configures the strategy.
	Agent AgentConfig

	// RandomState drives initial sampling and the restart start points.
	// Seed it explicitly for reproducible runs.
	RandomState *rand.Rand

	// ProgressChan is used to send progress updates during optimization.
	// If nil, no updates will be sent. Full channels drop updates.
	ProgressChan chan<- ProgressUpdate

	// Options are forwarded to the strategy (logger, tracer).
	Options []AgentOption
}

// Result is the outcome of Minimize. Every history is a plain slice so a
// harness can persist it without knowing any agent type. Values, BestSoFar
// and Samples have one entry per evaluation, initial samples first; Means,
// Variances, Acquisition and Durations have one entry per optimization
// iteration only.
type Result[T Number] struct {
	// BestParams is the parameter combination with the lowest value.
	BestParams []T

	// BestValue is the lowest objective value observed.
	BestValue float64

	// Values holds every objective value in evaluation order.
	Values []float64

	// BestSoFar holds the running minimum of Values.
	BestSoFar []float64

	// Samples holds every evaluated point in evaluation order.
	Samples [][]T

	// Means, Variances and Acquisition hold the strategy's prediction at
	// each selected point, one entry per optimization iteration. Means are
	// in objective units (lower is better).
	Means       []float64
	Variances   []float64
	Acquisition []float64

	// Durations holds the wall time of each optimization iteration,
	// selection and update included.
	Durations []time.Duration
}
