// Package preflight provides readiness checks for the directories, tools and
// hub access modelfarm depends on.
//
// These checks run in two contexts:
//   - The workflow manager calls RunAll before a download so a run never
//     starts against a missing cache root or link directory parent.
//   - The CLI "modelfarm doctor" command uses the individual check functions
//     to display a readiness table.
package preflight
