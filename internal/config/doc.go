// Package config loads, normalizes, and validates Imagine IV configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENROUTER_API_KEY (optionally sourced from a .env file). The Config type
// centralizes every knob the daemon and CLI need: artifact directories,
// worker pool sizing, driver commands, and prompt service credentials.
//
// A loaded Config is treated as an immutable snapshot for the duration of one
// run; always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
