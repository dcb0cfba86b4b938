// Package logging assembles structured slog loggers used across docket.
//
// It owns the console/JSON handler selection, centralizes level and output
// plumbing, and exposes shared attribute helpers and field name constants so
// pipeline components emit data with the same shape. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
package logging
