// Package services defines shared utilities consumed by the runner, the
// executors, and the daemon surfaces.
//
// Key responsibilities:
//   - Context helpers that stamp task IDs, attempt numbers, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     into retryable, non-retryable, and fatal outcomes.
//
// Use these helpers when wiring new execution logic so operational behaviour
// (error handling, observability, retries) stays uniform across the queue.
package services
