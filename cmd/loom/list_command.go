package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"loom/internal/queue"
	"loom/internal/queueaccess"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			filters := make([]string, 0, len(listStatuses))
			for _, status := range listStatuses {
				status = strings.TrimSpace(strings.ToLower(status))
				if status == "" {
					continue
				}
				if status == "all" {
					filters = nil
					break
				}
				filters = append(filters, status)
			}

			return ctx.withQueue(func(access queueaccess.Access) error {
				tasks, err := access.List(cmd.Context(), filters)
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					if tasks == nil {
						tasks = []queue.Task{}
					}
					return writeJSON(cmd, tasks)
				}
				if len(tasks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Prompt", "Agent", "Status", "Pri", "After", "Retries", "Created"},
					buildTaskListRows(tasks),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by task status (repeatable; use 'all' for every status)")
	return cmd
}
