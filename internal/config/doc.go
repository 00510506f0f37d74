// Package config loads, normalizes, and validates tailspot configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TAILSPOT_NTFY_TOPIC. The Config type centralizes every knob the daemon and
// CLI need, so source rate windows, scrape concurrency, and scoring thresholds
// are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, clamped numeric ranges, and clear validation errors.
package config
