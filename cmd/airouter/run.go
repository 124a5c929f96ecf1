package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/cli"
	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/config"
	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/telemetry/logging"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the routing service",
	Long: `Start the HTTP routing service with the specified configuration.

Examples:
  # Start with default config
  airouter run

  # Start with custom config
  airouter run --config /etc/airouter/config.yaml

  # Override listen address
  airouter run --listen 0.0.0.0:8080

  # Build every service without serving
  airouter run --dry-run`,
	Args: cobra.NoArgs,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "build services from the config without starting the server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	logger, err := logging.New(cfg.Telemetry.Logging, os.Stdout)
	if err != nil {
		return cli.NewConfigError(cfgFile, err)
	}
	slog.SetDefault(logger)

	a, err := newApp(cfg, logger)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer func() {
		if err := a.close(); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	if runFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid, services built")
		return nil
	}

	logStartup(logger, cfg)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	if err := a.serve(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	logger.Info("airouter stopped")
	return nil
}

func logStartup(logger *slog.Logger, cfg *config.Config) {
	logger.Info("starting airouter",
		"version", Version,
		"config", cfgFile,
		"listen_address", cfg.Server.ListenAddress,
		"providers", len(cfg.Providers),
		"ledger", cfg.Ledger.Backend,
		"prefer_edge", config.BoolValue(cfg.Routing.PreferEdge, config.DefaultPreferEdge),
		"fallback", config.BoolValue(cfg.Routing.FallbackEnabled, config.DefaultFallbackEnabled),
	)
}
