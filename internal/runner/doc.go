// Package runner drains the task queue with a bounded worker pool. Each
// worker claims one eligible task at a time, executes it through the agent
// dispatcher, and settles the outcome: success marks the task done, a
// retryable failure requeues it while budget remains, and an exhausted or
// non-retryable failure marks it failed. Run processes tasks until the
// queue drains; Start and Stop bracket the same pool for daemon use.
package runner
