// Package config loads, normalizes, and validates modelfarm settings.
//
// Settings are distinct from the manifest: the manifest declares what to
// acquire and link, while settings tune how the tool behaves (where the
// manifest and state live, how patiently the cache index is polled, which hub
// endpoint serves downloads, and how logs are rendered). The package supplies
// defaults, expands user paths (including tilde shortcuts), reads TOML files,
// and honours environment fallbacks such as HF_ENDPOINT.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, bounded retry knobs, and clear validation errors.
package config
