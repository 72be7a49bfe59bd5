// Package config loads, normalizes, and validates Loomline configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and centralizes the role-to-stage assignment
// policy so the workflow core and the dashboards consult a single table. The
// Config type holds every knob the daemon and CLI need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
