package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"velestra/internal/app"
	"velestra/internal/config"
	"velestra/internal/logging"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "velestra",
	Short: "Signal intelligence engine with tiered alert delivery",
	Long: `Velestra ingests articles from configured feeds, scores them into
candidate signals, routes each through an approval gate, and dispatches
approved signals to free and premium audiences under a delay and
rate-limit policy.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("velestra", version)
	},
}

func run() error {
	// Missing .env is fine; real deployments use environment variables.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	if cfg.Telegram.BotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	application, err := app.New(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		return err
	}
	return nil
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
