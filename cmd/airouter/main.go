// Airouter routes AI generation requests across edge and cloud providers
// under per-provider rate limits and per-tenant cost budgets.
//
// Usage:
//
//	# Start the HTTP service
//	airouter run --config config.yaml
//
//	# Check a configuration file
//	airouter validate --config config.yaml
//
//	# List providers, probing each one
//	airouter providers --check --format json
//
//	# Show version information
//	airouter version
package main

import "os"

func main() {
	os.Exit(Execute())
}
