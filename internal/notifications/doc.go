// Package notifications delivers push notifications for queue events through
// ntfy. Task failures, queue drains, and daemon errors each have a config
// toggle; with no topic configured every notification is a no-op.
package notifications
