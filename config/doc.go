// Package config loads the benchmark configuration from a YAML file and ENTITYSTORE_* environment
// variables, and opens the configured storage backend.
package config
