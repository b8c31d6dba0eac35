// Package logging centralizes slog construction and structured attribute
// conventions. Handlers support console and JSON output; context helpers
// thread run and stage identifiers into every record emitted during a
// pipeline run.
package logging
