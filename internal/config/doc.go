// Package config loads, normalizes, and validates the TOML application
// configuration. Validation failures are startup-fatal; a running pipeline
// never observes a configuration error.
package config
