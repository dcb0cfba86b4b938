// Package config loads, normalizes, and validates docket configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// DOCKET_SOURCE_TOKEN. The Config type centralizes every knob the CLI and
// ingestion pipeline need, so directories, source credentials, and size
// thresholds are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
