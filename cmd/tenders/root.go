package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/tenders/internal/app"
	"github.com/MrSnakeDoc/tenders/internal/config"
	"github.com/MrSnakeDoc/tenders/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "tenders",
	Short: "Procurement tender ingestion and retention service",
	Long: "tenders polls the public procurement API for every active saved query,\n" +
		"stores new tenders, purges expired ones and serves them over HTTP.\n" +
		"Configuration is read from TENDERS_* environment variables.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func loadRuntime() (*config.Config, logger.Logger) {
	cfg := config.Load()
	return cfg, logger.New(cfg.LogLevel, cfg.PrettyLog)
}

// withApp builds the App for the duration of one command and closes it
// afterwards.
func withApp(run func(cmd *cobra.Command, args []string, a *app.App, log logger.Logger) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, log := loadRuntime()
		defer func() { _ = log.Sync() }()

		startCtx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		a, err := app.New(startCtx, cfg, log)
		cancel()
		if err != nil {
			log.Error("bootstrap failed", logger.Error(err))
			return fmt.Errorf("bootstrap: %w", err)
		}
		defer func() {
			if err := a.Close(); err != nil {
				log.Warn("failed to close app", logger.Error(err))
			}
		}()

		return run(cmd, args, a, log)
	}
}
