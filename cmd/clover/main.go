package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectologger"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/pkg/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "clover",
		Short: "Reconciles extracted medical claims against the reference order ledger",
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newImportReferenceCmd())
	rootCmd.AddCommand(newRunBatchCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads .env when present, binds the environment to the config
// struct, and builds the process logger.
func loadConfig() (*config.Config, ectologger.Logger, error) {
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnvToStruct(&cfg); err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(cfg.PrettyLogs, cfg.LogLevel)
	return &cfg, logger, nil
}
