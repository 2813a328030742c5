// Package agent executes queued tasks. Tasks in cli mode run the configured
// agent binary as a subprocess, optionally inside an isolated workspace;
// tasks in api mode call a hosted chat-completions endpoint. A Dispatcher
// routes each task to the executor matching its mode.
package agent
