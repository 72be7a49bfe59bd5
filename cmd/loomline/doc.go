// Package main hosts the Loomline CLI entrypoint and command graph.
//
// The Cobra-based command tree covers the stage registry, product intake,
// the parallel stage workflow, worker assignments, material requests, and
// warehouse paperwork. Commands open the tracking database directly; the
// daemon's HTTP API serves the same operations to other clients.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
