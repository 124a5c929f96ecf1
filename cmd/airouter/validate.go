package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/cli"
	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load the configuration with defaults and AIROUTER_* overrides applied and
report every problem found. The tenant limits file is checked as well.

Examples:
  airouter validate
  airouter validate --config /etc/airouter/config.yaml`,
	Args: cobra.NoArgs,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	tenants := len(cfg.Budgets.Tenants)
	if cfg.Budgets.TenantsFile != "" {
		fromFile, err := config.LoadTenantLimits(cfg.Budgets.TenantsFile, cfg.Budgets.Defaults)
		if err != nil {
			return cli.NewConfigError(cfg.Budgets.TenantsFile, err)
		}
		tenants += len(fromFile)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ %s is valid\n", cfgFile)

	ids := make([]string, 0, len(cfg.Providers))
	missing := 0
	for id, p := range cfg.Providers {
		ids = append(ids, id)
		if p.Kind == "cloud" && p.Connection.APIKey == "" {
			missing++
		}
	}
	sort.Strings(ids)
	fmt.Fprintf(out, "  providers: %d %v\n", len(ids), ids)
	if missing > 0 {
		fmt.Fprintf(out, "  warning: %d cloud provider(s) have no credential\n", missing)
	}
	fmt.Fprintf(out, "  tenants with explicit limits: %d\n", tenants)
	fmt.Fprintf(out, "  ledger: %s\n", cfg.Ledger.Backend)
	return nil
}
