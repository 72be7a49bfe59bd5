// Package api defines the transport-facing read types for the workflow
// tracker and the conversions from store models. Mutations go through the
// workflow manager; this package only shapes data for clients.
package api
