// Package config loads, normalizes, and validates Loom configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment credentials such as
// LOOM_API_KEY. The Config type centralizes every knob the daemon and CLI
// need, so data directories, runner limits, and agent invocation settings are
// discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
