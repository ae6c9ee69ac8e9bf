// Package config loads, normalizes, and validates vlmprep configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and layers VLMPREP_* environment overrides on
// top, falling back to HF_TOKEN for inference credentials. The Config type
// centralizes the knobs of all three pipeline stages so CLI flags only need
// to override what the user passes explicitly.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical extension lists, and clear validation errors.
package config
