// Package config loads, normalizes, and validates the daemon's TOML
// configuration. Missing required API keys are a startup error, never a
// per-request one.
package config
