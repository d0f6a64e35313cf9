// Package main hosts the modelfarm CLI entrypoint and command graph.
//
// The Cobra command tree loads settings and the manifest once, builds a
// workflow manager, and maps every failure to an exit code by error class.
// Keep this package lean: behavior belongs in the internal packages, and
// commands only parse flags and render results.
package main
