package agent

import (
	"context"
	"time"

	"loom/internal/queue"
)

// Usage captures the resource footprint of one execution attempt. Token
// counts are zero for cli-mode tasks.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Duration         time.Duration
}

// Result is the outcome of a successful execution attempt.
type Result struct {
	Output string
	Usage  Usage
}

// Executor runs a single task attempt. A nil error means the attempt
// succeeded; the runner decides requeue-or-fail from the error's
// classification.
type Executor interface {
	Execute(ctx context.Context, task *queue.Task) (*Result, error)
}

// Dispatcher routes tasks to the executor matching their execution mode.
type Dispatcher struct {
	cli Executor
	api Executor
}

// NewDispatcher composes the per-mode executors.
func NewDispatcher(cli, api Executor) *Dispatcher {
	return &Dispatcher{cli: cli, api: api}
}

// Execute forwards the task to its mode's executor. Tasks with an empty mode
// run through the cli executor.
func (d *Dispatcher) Execute(ctx context.Context, task *queue.Task) (*Result, error) {
	if task.Mode == queue.ModeAPI {
		return d.api.Execute(ctx, task)
	}
	return d.cli.Execute(ctx, task)
}
