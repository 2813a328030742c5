package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"loom/internal/queue"
	"loom/internal/queueaccess"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status [taskID]",
		Short: "Show queue counts or one task's detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runQueueSummary(cmd, ctx)
			}
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			return runTaskDetail(cmd, ctx, id)
		},
	}
}

func runQueueSummary(cmd *cobra.Command, ctx *commandContext) error {
	return ctx.withQueue(func(access queueaccess.Access) error {
		stats, err := access.Stats(cmd.Context())
		if err != nil {
			return err
		}
		if ctx.jsonMode() {
			if stats == nil {
				stats = map[string]int{}
			}
			return writeJSON(cmd, stats)
		}
		rows := buildQueueStatusRows(stats)
		if len(rows) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
			return nil
		}
		table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
		fmt.Fprintln(cmd.OutOrStdout(), table)
		return nil
	})
}

func runTaskDetail(cmd *cobra.Command, ctx *commandContext, id int64) error {
	return ctx.withQueue(func(access queueaccess.Access) error {
		detail, err := access.Describe(cmd.Context(), id)
		if err != nil {
			return err
		}
		if detail == nil {
			return fmt.Errorf("task %d not found", id)
		}
		if ctx.jsonMode() {
			return writeJSON(cmd, detail)
		}
		printTaskDetail(cmd.OutOrStdout(), detail)
		return nil
	})
}

func printTaskDetail(out io.Writer, detail *queueaccess.TaskDetail) {
	task := detail.Task
	fmt.Fprintf(out, "Task %d: %s\n", task.ID, formatStatusLabel(string(task.Status)))
	fmt.Fprintf(out, "Prompt: %s\n", task.Prompt)
	if task.Agent != "" {
		fmt.Fprintf(out, "Agent: %s\n", task.Agent)
	}
	fmt.Fprintf(out, "Mode: %s\n", task.Mode)
	if task.Model != "" {
		fmt.Fprintf(out, "Model: %s\n", task.Model)
	}
	fmt.Fprintf(out, "Priority: %d\n", task.Priority)
	fmt.Fprintf(out, "Worktree: %s\n", yesNo(task.Worktree))
	if task.AfterID != nil {
		line := fmt.Sprintf("Runs after: task %d", *task.AfterID)
		if detail.BlockedOn != nil {
			line += fmt.Sprintf(" (%s)", formatStatusLabel(string(detail.BlockedOn.Status)))
		} else {
			line += " (missing)"
		}
		fmt.Fprintln(out, line)
	}
	if len(detail.Dependents) > 0 {
		ids := make([]string, 0, len(detail.Dependents))
		for _, dep := range detail.Dependents {
			ids = append(ids, fmt.Sprintf("%d", dep.ID))
		}
		fmt.Fprintf(out, "Blocks: %s\n", strings.Join(ids, ", "))
	}
	fmt.Fprintf(out, "Attempts: %d of %d\n", task.Retries, task.MaxRetries)
	if task.ErrorMessage != "" {
		fmt.Fprintf(out, "Error: %s\n", task.ErrorMessage)
	}
	fmt.Fprintf(out, "Created: %s\n", formatDisplayTime(task.CreatedAt))
	if task.StartedAt != nil {
		fmt.Fprintf(out, "Started: %s\n", formatOptionalTime(task.StartedAt))
	}
	if task.CompletedAt != nil {
		fmt.Fprintf(out, "Completed: %s\n", formatOptionalTime(task.CompletedAt))
	}
	if task.WorkspacePath != "" {
		fmt.Fprintf(out, "Workspace: %s\n", task.WorkspacePath)
	}
	if task.OutputSummary != "" {
		fmt.Fprintf(out, "Output: %s\n", truncateText(task.OutputSummary, 200))
	}
	if task.TokensInput > 0 || task.TokensOutput > 0 {
		fmt.Fprintf(out, "Tokens: %d in / %d out\n", task.TokensInput, task.TokensOutput)
	}
	if task.Status == queue.StatusFailed {
		fmt.Fprintf(out, "Hint: run `loom retry %d` to requeue this task\n", task.ID)
	}
}
