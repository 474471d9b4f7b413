// Package logger constructs the process-wide slog logger with
// environment-appropriate output format and level.
package logger
