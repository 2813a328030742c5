package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"loom/internal/queue"
	"loom/internal/queueaccess"
)

type retryOutcome string

const (
	retryOutcomeUpdated   retryOutcome = "retried"
	retryOutcomeNotFound  retryOutcome = "not_found"
	retryOutcomeNotFailed retryOutcome = "not_failed"
)

type retryItemResult struct {
	ID      int64        `json:"id"`
	Outcome retryOutcome `json:"outcome"`
	Status  string       `json:"status,omitempty"`
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [taskID...]",
		Short: "Requeue failed tasks",
		Long: "Requeue failed tasks with a fresh retry budget. Without arguments every\n" +
			"failed task is requeued.",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withQueue(func(access queueaccess.Access) error {
				if len(ids) == 0 {
					updated, err := access.RetryAll(cmd.Context())
					if err != nil {
						return err
					}
					if ctx.jsonMode() {
						return writeJSON(cmd, map[string]any{"updated": updated})
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Retried %d failed tasks\n", updated)
					return nil
				}

				results, err := retryIDs(cmd.Context(), access, ids)
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, map[string]any{"items": results})
				}
				out := cmd.OutOrStdout()
				for _, item := range results {
					switch item.Outcome {
					case retryOutcomeNotFound:
						fmt.Fprintf(out, "Task %d not found\n", item.ID)
					case retryOutcomeNotFailed:
						fmt.Fprintf(out, "Task %d is not in a failed state (status: %s)\n", item.ID, item.Status)
					case retryOutcomeUpdated:
						fmt.Fprintf(out, "Task %d reset for retry\n", item.ID)
					}
				}
				return nil
			})
		},
	}
}

// retryIDs validates each ID and requeues eligible tasks. Works identically
// for IPC and direct-store paths.
func retryIDs(ctx context.Context, access queueaccess.Access, ids []int64) ([]retryItemResult, error) {
	results := make([]retryItemResult, 0, len(ids))
	for _, id := range ids {
		detail, err := access.Describe(ctx, id)
		if err != nil {
			return nil, err
		}
		if detail == nil {
			results = append(results, retryItemResult{ID: id, Outcome: retryOutcomeNotFound})
			continue
		}
		if detail.Task.Status != queue.StatusFailed {
			results = append(results, retryItemResult{ID: id, Outcome: retryOutcomeNotFailed, Status: string(detail.Task.Status)})
			continue
		}
		updated, err := access.Retry(ctx, []int64{id})
		if err != nil {
			return nil, err
		}
		if updated > 0 {
			results = append(results, retryItemResult{ID: id, Outcome: retryOutcomeUpdated})
			continue
		}
		// Lost a race with the runner or another operator between the
		// describe and the update.
		results = append(results, retryItemResult{ID: id, Outcome: retryOutcomeNotFailed, Status: string(detail.Task.Status)})
	}
	return results, nil
}

func parsePositiveIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid task id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
