package main

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thalesfsp/sspbo"
)

// testRunCommand registers the run flags on a fresh command so tests can
// mark them as changed.
func testRunCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "run"}

	cmd.Flags().StringVar(&runTarget, "target", "", "")
	cmd.Flags().StringVar(&runStrategy, "strategy", "", "")
	cmd.Flags().IntVar(&runSSPDim, "ssp-dim", 0, "")
	cmd.Flags().IntVar(&runNumInit, "num-init", 0, "")
	cmd.Flags().IntVar(&runBudget, "budget", 0, "")
	cmd.Flags().IntVar(&runNumTrials, "num-trials", 0, "")
	cmd.Flags().Int64Var(&runSeed, "seed", 0, "")
	cmd.Flags().IntVar(&runParallel, "parallel", 0, "")

	return cmd
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "trial.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "trajectory", cfg.Target)
	assert.Equal(t, sspbo.StrategySSP, cfg.Strategy)
	assert.Equal(t, 10, cfg.Agent.Restarts)
	assert.Equal(t, 151, cfg.Agent.Basis.EncodingDim)
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeConfig(t, `
target: branin
strategy: gp
num_init_samples: 4
budget: 30
num_trials: 3
seed: 9
agent:
  restarts: 5
`)

	cfg, err := loadConfig(path, testRunCommand())
	require.NoError(t, err)

	assert.Equal(t, "branin", cfg.Target)
	assert.Equal(t, sspbo.StrategyGP, cfg.Strategy)
	assert.Equal(t, 4, cfg.NumInitSamples)
	assert.Equal(t, 30, cfg.Budget)
	assert.Equal(t, 3, cfg.NumTrials)
	assert.Equal(t, int64(9), cfg.Seed)
	assert.Equal(t, 5, cfg.Agent.Restarts)

	// Keys absent from the file keep their defaults.
	assert.Equal(t, 1, cfg.Parallel)
}

func TestLoadConfigFlagsOverrideYAML(t *testing.T) {
	path := writeConfig(t, "target: branin\nbudget: 30\n")

	cmd := testRunCommand()
	require.NoError(t, cmd.Flags().Set("target", "sphere"))
	require.NoError(t, cmd.Flags().Set("ssp-dim", "97"))
	require.NoError(t, cmd.Flags().Set("parallel", "4"))

	cfg, err := loadConfig(path, cmd)
	require.NoError(t, err)

	assert.Equal(t, "sphere", cfg.Target)
	assert.Equal(t, 30, cfg.Budget)
	assert.Equal(t, 4, cfg.Parallel)
	assert.Equal(t, 97, cfg.Agent.Basis.EncodingDim)
	assert.Zero(t, cfg.Agent.Basis.Rotates)
	assert.Zero(t, cfg.Agent.Basis.Scales)
}

func TestLoadConfigEncodingDimBackSolve(t *testing.T) {
	path := writeConfig(t, `
target: sphere
agent:
  basis:
    encoding_dim: 97
`)

	cfg, err := loadConfig(path, testRunCommand())
	require.NoError(t, err)

	assert.Equal(t, 97, cfg.Agent.Basis.EncodingDim)

	// sphere is 2-D: 97 resolves to 4 rotations and 4 scales, K = 97.
	ptrs, info, err := sspbo.GenerateBasis(2, cfg.Agent.Basis, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	assert.Equal(t, 4, info.Rotates)
	assert.Equal(t, 4, info.Scales)
	assert.Equal(t, 97, ptrs.Dim())
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	_, err := loadConfig(writeConfig(t, "target: rosenbrock\n"), nil)
	assert.Error(t, err)

	_, err = loadConfig(writeConfig(t, "strategy: forest\n"), nil)
	assert.ErrorIs(t, err, sspbo.ErrUnknownStrategy)

	_, err = loadConfig(writeConfig(t, "num_init_samples: 0\n"), nil)
	assert.Error(t, err)

	_, err = loadConfig(writeConfig(t, "budget: [1\n"), nil)
	assert.Error(t, err)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "WARN", "error"} {
		logger, err := newLogger(level)
		require.NoError(t, err, level)
		assert.NotNil(t, logger)
	}

	_, err := newLogger("verbose")
	assert.Error(t, err)
}
