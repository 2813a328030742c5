// Package preflight provides readiness checks for the paths, binaries, and
// endpoints loom depends on.
//
// The checks run in two contexts:
//   - The daemon runs RunAll at startup and logs failures. Startup is not
//     refused: a broken api credential only affects api-mode tasks, and
//     those fail with a configuration error on their own.
//   - The CLI status commands use the individual check functions to display
//     component health.
//
// Checks gated by a config toggle are skipped while the feature is off.
package preflight
