// Package daemon hosts the long-running tracker process: it holds the
// single-instance file lock and serves the HTTP API over the store and the
// workflow manager.
package daemon
