package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"loom/internal/queue"
	"loom/internal/queueaccess"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var agent string
	var after int64
	var priority int
	var worktree bool
	var mode string
	var model string
	var maxRetries int

	cmd := &cobra.Command{
		Use:   "add <prompt>",
		Short: "Queue a new task",
		Long: "Queue a new task. The prompt is passed verbatim to the agent; it is\n" +
			"never interpreted by loom itself.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.TrimSpace(strings.Join(args, " "))
			if prompt == "" {
				return fmt.Errorf("task prompt must not be empty")
			}
			if after < 0 {
				return fmt.Errorf("invalid dependency id %d", after)
			}

			req := queue.AddRequest{
				Prompt:   prompt,
				Agent:    strings.TrimSpace(agent),
				Priority: priority,
				Worktree: worktree,
				Mode:     queue.ExecutionMode(strings.TrimSpace(strings.ToLower(mode))),
				Model:    strings.TrimSpace(model),
			}
			if after > 0 {
				req.AfterID = &after
			}
			if cmd.Flags().Changed("max-retries") {
				if maxRetries < 0 {
					return fmt.Errorf("max retries must not be negative")
				}
				req.MaxRetries = &maxRetries
			}

			return ctx.withQueue(func(access queueaccess.Access) error {
				task, err := access.Add(cmd.Context(), req)
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, task)
				}
				out := cmd.OutOrStdout()
				if task.AfterID != nil {
					fmt.Fprintf(out, "Task %d queued (runs after task %d)\n", task.ID, *task.AfterID)
				} else {
					fmt.Fprintf(out, "Task %d queued\n", task.ID)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&agent, "agent", "", "Agent name recorded on the task")
	cmd.Flags().Int64Var(&after, "after", 0, "Run only after the given task id completes")
	cmd.Flags().IntVar(&priority, "priority", 0, "Scheduling priority (lower runs first)")
	cmd.Flags().BoolVar(&worktree, "worktree", false, "Execute in an isolated workspace")
	cmd.Flags().StringVar(&mode, "mode", "", "Execution mode: cli or api (default cli)")
	cmd.Flags().StringVar(&model, "model", "", "Model tier for api mode tasks")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 0, "Retry budget for this task (default from config)")

	return cmd
}
