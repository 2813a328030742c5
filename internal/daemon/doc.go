// Package daemon coordinates the long-running Loom process.
//
// It wires configuration, queue storage, and the runner worker pool into a
// single lifecycle with flock-based locking to prevent multiple instances.
// The daemon requeues tasks stranded by a crashed predecessor on startup and
// exposes the queue maintenance surface consumed by the IPC server.
//
// Keep orchestration logic here: task dispatch belongs to the runner and
// process supervision to daemonctl, while the daemon focuses on startup,
// shutdown, and high level coordination.
package daemon
