// Package cli holds helpers shared by the airouter subcommands: typed
// errors with exit codes, text/JSON/CSV result output and signal-aware
// contexts.
package cli
