// Command loom is the command line interface for the loom task queue.
//
// Queue commands (add, list, status, cancel, retry, clear, health) talk to
// the daemon over its unix socket when one is running and fall back to
// opening the queue database directly otherwise, so the queue stays
// manageable while the daemon is down. Daemon lifecycle commands (daemon
// start, stop, restart, status, logs) manage the background process; the
// hidden `daemon run` subcommand is the foreground entry point the
// launcher execs.
//
// Keep this package lean: flag parsing and presentation only. Behavior
// belongs in the internal packages.
package main
