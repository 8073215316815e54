// Package logging wires slog with the console and JSON handlers used
// across the daemon and CLI, plus the shared attribute and context
// helpers for run-scoped fields.
package logging
