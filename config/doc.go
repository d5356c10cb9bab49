// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the application configuration structure
// including server settings, upstream targets, per-target circuit breaker
// thresholds, and probe intervals.
package config
