// Package logging builds the daemon's slog loggers. It offers a compact
// console format for interactive use and a JSON format for ingestion, with
// attribute helpers shared across components.
package logging
