// Package failure defines the error classes shared by every modelfarm
// component.
//
// Components tag their errors with one of the exported sentinel markers via
// Wrap so the CLI can map any failure to a stable exit code and so callers can
// branch with errors.Is without parsing messages. Detailed error types (for
// example the manifest validation report) implement Is to match their marker.
package failure
