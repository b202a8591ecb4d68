package main

import (
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/tenders/internal/app"
	"github.com/MrSnakeDoc/tenders/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with the search and retention loops",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app.App, log logger.Logger) error {
		if err := a.Serve(cmd.Context()); err != nil {
			log.Error("tenders failed", logger.Error(err))
			return err
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
