package cli

import (
	"github.com/spf13/cobra"

	"interview-gate/internal/analytics"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show dashboard statistics",
		Run:   runStats,
	}

	cmd.Flags().IntP("limit", "l", analytics.DefaultLimit, "Max visitor and conversation records read")

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	s, err := openStore(cmd.Context())
	if err != nil {
		exitErr("open store", err)
	}
	agg, err := analytics.NewAggregator(s, s, analytics.DefaultLimit)
	if err != nil {
		exitErr("aggregator", err)
	}

	stats, err := agg.ComputeStats(cmd.Context(), limit)
	if err != nil {
		exitErr("stats", err)
	}
	if err := writeJSON(cmd.OutOrStdout(), stats); err != nil {
		exitErr("write", err)
	}
}
