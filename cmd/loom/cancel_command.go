package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"loom/internal/queueaccess"
)

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <taskID>",
		Short: "Cancel a pending task",
		Long: "Cancel a pending task. Running tasks cannot be cancelled; finished\n" +
			"tasks keep their terminal state.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			return ctx.withQueue(func(access queueaccess.Access) error {
				task, err := access.Cancel(cmd.Context(), id)
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, task)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Task %d cancelled\n", task.ID)
				return nil
			})
		},
	}
}
