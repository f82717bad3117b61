// Package logging wraps log/slog with jumpcut's console and JSON handlers,
// rotated file output, and helpers for component-scoped loggers.
package logging
