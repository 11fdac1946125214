package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/thalesfsp/sspbo"
	"github.com/thalesfsp/sspbo/internal/trial"
)

// Persistent flags.
var (
	logLevel  string
	storeKind string
	dbPath    string
)

// loadConfig starts from trial.DefaultConfig, overlays the YAML file at path
// (if any) and then every flag the user set explicitly on cmd.
func loadConfig(path string, cmd *cobra.Command) (trial.Config, error) {
	cfg := trial.DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return trial.Config{}, fmt.Errorf("read config %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return trial.Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if cmd == nil {
		return cfg, validateConfig(cfg)
	}

	flags := cmd.Flags()

	if flags.Changed("target") {
		cfg.Target = runTarget
	}

	if flags.Changed("strategy") {
		cfg.Strategy = sspbo.StrategyKind(runStrategy)
	}

	if flags.Changed("ssp-dim") {
		// An explicit encoding dimension is back-solved into the pattern
		// counts.
		cfg.Agent.Basis.EncodingDim = runSSPDim
		cfg.Agent.Basis.Rotates = 0
		cfg.Agent.Basis.Scales = 0
	}

	if flags.Changed("num-init") {
		cfg.NumInitSamples = runNumInit
	}

	if flags.Changed("budget") {
		cfg.Budget = runBudget
	}

	if flags.Changed("num-trials") {
		cfg.NumTrials = runNumTrials
	}

	if flags.Changed("seed") {
		cfg.Seed = runSeed
	}

	if flags.Changed("parallel") {
		cfg.Parallel = runParallel
	}

	return cfg, validateConfig(cfg)
}

func validateConfig(cfg trial.Config) error {
	if _, err := trial.LookupTarget(cfg.Target); err != nil {
		return err
	}

	switch cfg.Strategy {
	case "", sspbo.StrategySSP, sspbo.StrategyGP:
	default:
		return fmt.Errorf("strategy %q: %w", cfg.Strategy, sspbo.ErrUnknownStrategy)
	}

	if cfg.NumInitSamples < 1 {
		return fmt.Errorf("num-init must be at least 1, got %d", cfg.NumInitSamples)
	}

	if cfg.Budget < 0 || cfg.NumTrials < 1 {
		return fmt.Errorf("budget must be non-negative and num-trials positive, got %d and %d", cfg.Budget, cfg.NumTrials)
	}

	return nil
}

// newLogger builds the text logger on stderr.
func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}
