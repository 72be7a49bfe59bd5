// Package logging centralizes slog construction for the daemon and CLI.
//
// It provides console and JSON handlers, standardized field keys shared by
// every component, attr helpers, a no-op logger for tests, and helpers that
// derive logging fields from request context values.
package logging
