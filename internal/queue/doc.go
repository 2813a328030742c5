// Package queue persists agent tasks in SQLite and exposes the transitions
// that drive their lifecycle.
//
// The Store owns schema initialization, dependency-aware claiming, retry
// accounting, and maintenance helpers. Every status change is expressed as a
// guarded SQL statement so concurrent runners and CLI processes can share one
// database file: a task is dispatched by ClaimNext exactly once, and invalid
// transitions (cancelling a running task, retrying past the budget) fail in
// the statement itself rather than in caller-side checks.
package queue
