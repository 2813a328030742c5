package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"loom/internal/queueaccess"
)

func newClearCommand(ctx *commandContext) *cobra.Command {
	var clearCompleted bool
	var clearFailed bool
	var clearAll bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove finished tasks from the queue",
		Long: "Remove finished tasks (done, failed, and cancelled) from the queue.\n" +
			"Use --completed or --failed to narrow the sweep, or --all to remove\n" +
			"every task regardless of state.",
		RunE: func(cmd *cobra.Command, args []string) error {
			selected := 0
			for _, flag := range []bool{clearCompleted, clearFailed, clearAll} {
				if flag {
					selected++
				}
			}
			if selected > 1 {
				return errors.New("specify only one of --completed, --failed, or --all")
			}

			return ctx.withQueue(func(access queueaccess.Access) error {
				var removed int64
				var err error
				var label string
				switch {
				case clearCompleted:
					removed, err = access.ClearCompleted(cmd.Context())
					label = "completed tasks"
				case clearFailed:
					removed, err = access.ClearFailed(cmd.Context())
					label = "failed tasks"
				case clearAll:
					removed, err = access.ClearAll(cmd.Context())
					label = "tasks"
				default:
					removed, err = access.ClearFinished(cmd.Context())
					label = "finished tasks"
				}
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, map[string]any{"removed": removed})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d %s\n", removed, label)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearCompleted, "completed", false, "Remove only done tasks")
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Remove only failed tasks")
	cmd.Flags().BoolVar(&clearAll, "all", false, "Remove every task including pending and running")
	return cmd
}
