// Package config wires the service from its environment.
//
// It reads the settings (optionally from a .env file), opens the database connection for the
// configured adapter type, builds the process logger and bootstraps OpenTelemetry tracing and
// metrics.
package config
