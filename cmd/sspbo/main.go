// Command sspbo runs seeded Bayesian optimization trials on benchmark
// targets and inspects their stored results.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sspbo",
	Short: "Bayesian optimization with spatial semantic pointers",
	Long: `Run Bayesian optimization trials with the SSP agent (or the GP
reference) on benchmark targets, store every trial and inspect the results.

Examples:
  sspbo run --target trajectory --num-trials 20 --store sqlite --db trials.db
  sspbo run --config trial.yaml --strategy gp
  sspbo show --store sqlite --db trials.db --target trajectory
  sspbo show --store sqlite --db trials.db <trial-id>`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&storeKind, "store", "memory", "trial store backend: memory or sqlite")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "sspbo.db", "sqlite database path")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(showCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
