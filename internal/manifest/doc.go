// Package manifest decodes and validates the artifact manifest.
//
// A manifest lists the config files, raw artifacts, and hub-hosted models a
// run acquires, together with the shared cache directory, the link directory,
// and an indirect credential reference. Load enforces the document's shape
// against an embedded JSON Schema and reports shape problems as configuration
// errors. Validate enforces the cross-referential rules (unique names and
// urls, unique model repo/filename pairs, resolvable config references) and
// reports every finding in one pass instead of stopping at the first.
package manifest
