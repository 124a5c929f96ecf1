package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/cli"
	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/limits/ratelimit"
	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/routing"
	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/telemetry/logging"
)

var providersFlags struct {
	check   bool
	format  string
	timeout time.Duration
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List configured providers",
	Long: `List the providers of the configuration with their models and rate
limits. With --check every enabled provider is health checked once.

Examples:
  airouter providers
  airouter providers --check
  airouter providers --format json`,
	Args: cobra.NoArgs,
	RunE: listProviders,
}

func init() {
	rootCmd.AddCommand(providersCmd)

	providersCmd.Flags().BoolVar(&providersFlags.check, "check", false, "run one health check per provider")
	providersCmd.Flags().StringVarP(&providersFlags.format, "format", "f", "text", "output format: text, json, csv")
	providersCmd.Flags().DurationVar(&providersFlags.timeout, "timeout", 30*time.Second, "overall timeout for --check")
}

func listProviders(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(providersFlags.format)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cfg, logging.Discard())
	if err != nil {
		return cli.NewCommandError("providers", err)
	}
	defer a.close()

	if providersFlags.check {
		ctx, cancel := context.WithTimeout(cmd.Context(), providersFlags.timeout)
		defer cancel()
		a.monitor.CheckAll(ctx)
	}

	status := a.engine.ProviderStatus()
	return cli.Write(cmd.OutOrStdout(), format, providerTable(status, a.limiter.Limits), status)
}

// providerTable renders status rows. The RPM column shows requests used
// in the current minute window against the configured cap.
func providerTable(status []routing.ProviderStatus, limits func(id string) (ratelimit.Limits, bool)) cli.Table {
	t := cli.Table{Headers: []string{"ID", "KIND", "ENABLED", "HEALTH", "LATENCY", "RPM", "MODELS"}}
	for _, s := range status {
		health := string(s.Health.Status)
		if health == "" {
			health = "unknown"
		}
		latency := "-"
		if s.Health.Latency > 0 {
			latency = s.Health.Latency.Round(time.Millisecond).String()
		}
		rpm := "-"
		if l, ok := limits(s.ID); ok && l.RequestsPerMinute > 0 {
			rpm = strconv.FormatInt(s.Usage.Requests, 10) + "/" + strconv.Itoa(l.RequestsPerMinute)
		}
		t.Rows = append(t.Rows, []string{
			s.ID,
			string(s.Kind),
			fmt.Sprint(s.Enabled),
			health,
			latency,
			rpm,
			strings.Join(s.Models, ","),
		})
	}
	return t
}
