// Package trial runs seeded optimization trials against benchmark targets
// and turns their history into storable records.
package trial

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/thalesfsp/sspbo"
	"github.com/thalesfsp/sspbo/internal/store"
)

// Config describes a batch of trials.
type Config struct {
	// Target names the benchmark, see TargetNames.
	Target string `yaml:"target"`

	// Strategy selects the surrogate model.
	Strategy sspbo.StrategyKind `yaml:"strategy"`

	// NumInitSamples is the number of uniform samples before the strategy is
	// built.
	NumInitSamples int `yaml:"num_init_samples"`

	// Budget is the number of optimization iterations after the initial
	// samples.
	Budget int `yaml:"budget"`

	// NumTrials is the number of independently seeded runs.
	NumTrials int `yaml:"num_trials"`

	// Seed is the master seed the per-trial seeds derive from.
	Seed int64 `yaml:"seed"`

	// Parallel caps how many trials run at once. Zero or one runs them
	// sequentially.
	Parallel int `yaml:"parallel"`

	// Agent configures the strategy (basis, restarts, priors).
	Agent sspbo.AgentConfig `yaml:"agent"`
}

// DefaultConfig returns one trajectory trial with the SSP agent, 10 initial
// samples, a budget of 200 iterations and an encoding dimension of 151.
func DefaultConfig() Config {
	agent := sspbo.DefaultAgentConfig()
	agent.Basis.EncodingDim = 151

	return Config{
		Target:         "trajectory",
		Strategy:       sspbo.StrategySSP,
		NumInitSamples: 10,
		Budget:         200,
		NumTrials:      1,
		Seed:           1,
		Parallel:       1,
		Agent:          agent,
	}
}

// Seeds derives n trial seeds from master.
func Seeds(master int64, n int) []int64 {
	rng := rand.New(rand.NewSource(master))

	out := make([]int64, n)
	for i := range out {
		out[i] = rng.Int63()
	}

	return out
}

// Run executes one trial with the given seed and converts its history into
// a record. Regret is measured against the target's known optimum.
func Run(ctx context.Context, cfg Config, seed int64, logger *slog.Logger) (store.TrialRecord, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Strategy == "" {
		cfg.Strategy = sspbo.StrategySSP
	}

	target, err := LookupTarget(cfg.Target)
	if err != nil {
		return store.TrialRecord{}, err
	}

	ctx, span := otel.Tracer("sspbo/trial").Start(ctx, "trial.Run")
	defer span.End()

	span.SetAttributes(
		attribute.String("trial.target", target.Name),
		attribute.String("trial.strategy", string(cfg.Strategy)),
		attribute.Int64("trial.seed", seed),
	)

	logger = logger.With("target", target.Name, "strategy", cfg.Strategy, "seed", seed)

	progress := make(chan sspbo.ProgressUpdate, 16)
	done := make(chan struct{})

	go func() {
		defer close(done)

		for update := range progress {
			logger.Debug("evaluation",
				"phase", update.Phase,
				"iteration", update.CurrentIteration,
				"total", update.TotalIterations,
				"value", update.LastValue,
				"best", update.CurrentBestValue,
			)
		}
	}()

	config := sspbo.OptimizationConfig{
		Iterations:     cfg.Budget,
		InitialSamples: cfg.NumInitSamples,
		Strategy:       cfg.Strategy,
		Agent:          cfg.Agent,
		RandomState:    rand.New(rand.NewSource(seed)),
		ProgressChan:   progress,
		Options: []sspbo.AgentOption{
			sspbo.WithLogger(logger),
			sspbo.WithTracer(otel.Tracer("sspbo")),
		},
	}

	start := time.Now()
	result, err := sspbo.Minimize(ctx, config, target.Func, target.Ranges()...)
	elapsed := time.Since(start)

	close(progress)
	<-done

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "trial failed")

		return store.TrialRecord{}, fmt.Errorf("trial %s seed %d: %w", target.Name, seed, err)
	}

	record := newRecord(cfg, target, seed, result, elapsed)

	span.SetAttributes(attribute.Float64("trial.final_regret", record.FinalRegret()))
	logger.Info("trial finished",
		"final_regret", record.FinalRegret(),
		"elapsed", elapsed,
	)

	return record, nil
}

// RunAll runs cfg.NumTrials trials, saving each record to st as soon as it
// completes, and returns the records in seed order.
func RunAll(ctx context.Context, cfg Config, st store.Store, logger *slog.Logger) ([]store.TrialRecord, error) {
	if logger == nil {
		logger = slog.Default()
	}

	seeds := Seeds(cfg.Seed, max(cfg.NumTrials, 1))
	records := make([]store.TrialRecord, len(seeds))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Parallel, 1))

	for i, seed := range seeds {
		i, seed := i, seed
		g.Go(func() error {
			record, err := Run(ctx, cfg, seed, logger)
			if err != nil {
				return err
			}

			if st != nil {
				if err := st.SaveTrial(ctx, record); err != nil {
					return fmt.Errorf("save trial %s: %w", record.ID, err)
				}
			}

			records[i] = record

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return records, nil
}

// Summary aggregates the final regret of a batch of trials.
type Summary struct {
	Trials     int
	MeanRegret float64
	StdRegret  float64
	BestRegret float64
}

// Summarize computes the mean, standard deviation and minimum of the final
// regrets.
func Summarize(records []store.TrialRecord) Summary {
	s := Summary{Trials: len(records), BestRegret: math.Inf(1)}
	if len(records) == 0 {
		s.BestRegret = 0

		return s
	}

	for _, r := range records {
		s.MeanRegret += r.FinalRegret()
		s.BestRegret = math.Min(s.BestRegret, r.FinalRegret())
	}

	s.MeanRegret /= float64(len(records))

	for _, r := range records {
		d := r.FinalRegret() - s.MeanRegret
		s.StdRegret += d * d
	}

	s.StdRegret = math.Sqrt(s.StdRegret / float64(len(records)))

	return s
}

func newRecord(cfg Config, target Target, seed int64, result *sspbo.Result[float64], elapsed time.Duration) store.TrialRecord {
	regret := make([]float64, len(result.Values))
	best := make([]float64, len(result.BestSoFar))

	for i, v := range result.Values {
		regret[i] = v - target.Optimum
	}

	for i, v := range result.BestSoFar {
		best[i] = v - target.Optimum
	}

	seconds := make([]float64, len(result.Durations))
	for i, d := range result.Durations {
		seconds[i] = d.Seconds()
	}

	return store.TrialRecord{
		VersionedRecord: store.VersionedRecord{
			SchemaVersion: store.CurrentSchemaVersion,
			CodecVersion:  store.CurrentCodecVersion,
		},
		ID:               uuid.NewString(),
		Target:           target.Name,
		Strategy:         string(cfg.Strategy),
		Seed:             seed,
		CreatedAt:        time.Now().UTC(),
		InitSamples:      cfg.NumInitSamples,
		Budget:           cfg.Budget,
		Regret:           regret,
		BestRegret:       best,
		BestValue:        result.BestValue,
		BestParams:       result.BestParams,
		Samples:          result.Samples,
		Means:            result.Means,
		Variances:        result.Variances,
		Acquisition:      result.Acquisition,
		IterationSeconds: seconds,
		ElapsedSeconds:   elapsed.Seconds(),
	}
}
