package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"buchhaltung/internal/backend"
	"buchhaltung/internal/cli"
	"buchhaltung/internal/config"
	"buchhaltung/internal/log"
	"buchhaltung/internal/records"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "belegctl",
	Short: "Buchhaltungs-Manager on the command line",
	Long: `belegctl reads receipts, cost groups and tax advisor handovers from the
configured backend and prints summaries or exports handovers.

The backend is selected like the web server does it (DATA_BACKEND,
LIVINGAPPS_*, SQLITE_DB_PATH). A .env file in the working directory is
loaded when present.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cli.LoadEnvFile()
	},
}

var backendFlag string

func init() {
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "override DATA_BACKEND (livingapps, sqlite, memory)")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openBackend builds the configured backend. Logs go to stderr so command
// output stays parseable.
func openBackend(ctx context.Context) (records.Backend, func(), error) {
	cfg := config.Load()
	if backendFlag != "" {
		cfg.DataBackend = backendFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logCfg := log.DefaultConfig()
	logCfg.Output = os.Stderr
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		logCfg.Level = lvl
	}
	logger := log.New(logCfg).WithComponent(log.ComponentCLI)

	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	result, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, bc)
	if err != nil {
		return nil, nil, fmt.Errorf("create backend: %w", err)
	}
	cleanup := func() {
		if result.Cleanup == nil {
			return
		}
		if err := result.Cleanup(); err != nil {
			logger.Warn("Backend cleanup failed", log.FieldError, err)
		}
	}
	return result.Backend, cleanup, nil
}
