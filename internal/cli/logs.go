package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"interview-gate/internal/analytics"
	"interview-gate/internal/usecase"
)

func init() {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "List recent conversation records, newest first",
		Run:   runLogs,
	}

	cmd.Flags().IntP("limit", "l", usecase.DefaultLogsLimit, fmt.Sprintf("Max records (1-%d)", usecase.MaxLogsLimit))

	RootCmd.AddCommand(cmd)
}

func runLogs(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	s, err := openStore(cmd.Context())
	if err != nil {
		exitErr("open store", err)
	}
	agg, err := analytics.NewAggregator(s, s, analytics.DefaultLimit)
	if err != nil {
		exitErr("aggregator", err)
	}
	svc, err := usecase.NewDashboardService(agg, s)
	if err != nil {
		exitErr("dashboard", err)
	}

	records, err := svc.Logs(cmd.Context(), limit)
	if err != nil {
		exitErr("logs", err)
	}
	if err := writeJSON(cmd.OutOrStdout(), records); err != nil {
		exitErr("write", err)
	}
}
