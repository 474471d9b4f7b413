// Package config handles loading and parsing of configuration from YAML
// files and environment variables. It defines the gateway configuration
// structure including the backend pool, health-check timing, dispatch
// limits and job cost, ledger defaults, and logging.
package config
