package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/tenders/internal/app"
	"github.com/MrSnakeDoc/tenders/internal/logger"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run one search cycle over every active saved query and exit",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app.App, log logger.Logger) error {
		report, err := a.Ingest(cmd.Context())
		if err != nil {
			log.Error("search cycle failed", logger.Error(err))
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}),
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete tenders whose deadline passed more than the grace period ago",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app.App, log logger.Logger) error {
		report, err := a.Sweep(cmd.Context())
		if err != nil {
			log.Error("retention sweep failed", logger.Error(err))
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}),
}

func init() {
	rootCmd.AddCommand(ingestCmd, sweepCmd)
}
