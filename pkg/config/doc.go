// Package config provides configuration management for the AI router.
//
// Configuration is read from YAML, completed with named defaults and
// validated as a whole, with every field error reported at once.
//
// # Configuration Loading
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
//  3. In code:
//     cfg := config.NewBuilder().WithProvider("edge", p).Build()
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention AIROUTER_SECTION_FIELD:
//
//   - AIROUTER_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - AIROUTER_PROVIDERS_OPENAI_GPT4_API_KEY overrides providers.openai-gpt4.connection.api_key
//   - AIROUTER_LEDGER_BACKEND overrides ledger.backend
//
// Provider credentials are normally supplied through connection.api_key_env,
// which names the variable to read (for example OPENAI_API_KEY).
//
// # Configuration Precedence
//
//  1. Default values (defaults.go)
//  2. Values from the YAML file
//  3. Environment variable overrides
//  4. Validation
//
// # Hot Reload
//
// Tenant budgets may live in a separate file (budgets.tenants_file). A
// Watcher reloads it on change; LoadTenantLimits parses and validates it.
package config
