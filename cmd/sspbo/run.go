package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/thalesfsp/sspbo/internal/store"
	"github.com/thalesfsp/sspbo/internal/trial"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	runConfigPath string
	runTarget     string
	runStrategy   string
	runSSPDim     int
	runNumInit    int
	runBudget     int
	runNumTrials  int
	runSeed       int64
	runParallel   int
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run seeded optimization trials and store them",
	Long: `Run NumTrials independently seeded trials of the chosen strategy on a
benchmark target. Per-trial seeds derive from --seed, so a batch is
reproducible. Every trial is saved to the store as soon as it finishes.

Flags override values read from --config.`,
	RunE: runTrials,
}

func init() {
	def := trial.DefaultConfig()

	runCmd.Flags().StringVar(&runConfigPath, "config", "", "YAML trial configuration file")
	runCmd.Flags().StringVar(&runTarget, "target", def.Target, "benchmark target: branin, sphere or trajectory")
	runCmd.Flags().StringVar(&runStrategy, "strategy", string(def.Strategy), "surrogate strategy: ssp or gp")
	runCmd.Flags().IntVar(&runSSPDim, "ssp-dim", def.Agent.Basis.EncodingDim, "SSP encoding dimension")
	runCmd.Flags().IntVar(&runNumInit, "num-init", def.NumInitSamples, "initial random samples per trial")
	runCmd.Flags().IntVar(&runBudget, "budget", def.Budget, "optimization iterations per trial")
	runCmd.Flags().IntVar(&runNumTrials, "num-trials", def.NumTrials, "number of trials")
	runCmd.Flags().Int64Var(&runSeed, "seed", def.Seed, "master seed")
	runCmd.Flags().IntVar(&runParallel, "parallel", def.Parallel, "trials run concurrently")
}

func runTrials(cmd *cobra.Command, _ []string) error {
	logger, err := newLogger(logLevel)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(runConfigPath, cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	ctx, span := otel.Tracer("sspbo/cli").Start(ctx, "sspbo.run")
	defer span.End()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.CloseIfSupported(st); cerr != nil {
			logger.Warn("closing store", "error", cerr)
		}
	}()

	logger.Info("running trials",
		"target", cfg.Target,
		"strategy", cfg.Strategy,
		"trials", cfg.NumTrials,
		"budget", cfg.Budget,
		"store", storeKind,
	)

	records, err := trial.RunAll(ctx, cfg, st, logger)
	if err != nil {
		return err
	}

	summary := trial.Summarize(records)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-36s  %-20s  %12s\n", "TRIAL", "SEED", "FINAL REGRET")

	for _, r := range records {
		fmt.Fprintf(out, "%-36s  %-20d  %12.6g\n", r.ID, r.Seed, r.FinalRegret())
	}

	fmt.Fprintf(out, "\n%d trials: mean regret %.6g ± %.6g, best %.6g\n",
		summary.Trials, summary.MeanRegret, summary.StdRegret, summary.BestRegret)

	return nil
}

// openStore builds and initializes the store selected by the persistent
// flags.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := store.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	if err := st.Init(ctx); err != nil {
		return nil, fmt.Errorf("init %s store: %w", storeKind, err)
	}

	return st, nil
}
