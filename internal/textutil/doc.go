// Package textutil provides small text helpers shared across the queue and
// command surfaces.
//
// The primary use cases are:
//   - Bounding stored task error messages to a fixed byte budget
//   - Collapsing multi-line agent output for single-row table cells
//   - Sanitizing tokens for safe use in workspace directory names
package textutil
