// Package config loads, normalizes, and validates the TOML configuration
// that drives the daemon, the pipeline, and the CLI.
package config
