package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thalesfsp/sspbo/internal/store"
)

var showTarget string

var showCmd = &cobra.Command{
	Use:   "show [trial-id]",
	Short: "List stored trials or print one as JSON",
	Long: `Without arguments, list the stored trials (optionally of one target)
with their final regret. With a trial id, print the full record as JSON.`,
	Args: cobra.MaximumNArgs(1),
	RunE: showTrials,
}

func init() {
	showCmd.Flags().StringVar(&showTarget, "target", "", "only list trials of this target")
}

func showTrials(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.CloseIfSupported(st) }()

	out := cmd.OutOrStdout()

	if len(args) == 1 {
		record, ok, err := st.GetTrial(ctx, args[0])
		if err != nil {
			return err
		}

		if !ok {
			return fmt.Errorf("trial %s not found", args[0])
		}

		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")

		return enc.Encode(record)
	}

	records, err := st.ListTrials(ctx, showTarget)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%-36s  %-10s  %-8s  %-25s  %12s\n", "TRIAL", "TARGET", "STRATEGY", "CREATED", "FINAL REGRET")

	for _, r := range records {
		fmt.Fprintf(out, "%-36s  %-10s  %-8s  %-25s  %12.6g\n",
			r.ID, r.Target, r.Strategy, r.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), r.FinalRegret())
	}

	return nil
}
