package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"loom/internal/queueaccess"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check queue database health",
		Long: "Check queue database health. Works through the daemon when it is\n" +
			"running and inspects the database directly otherwise.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(access queueaccess.Access) error {
				health, err := access.DatabaseHealth(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, health)
				}

				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "Database path: %s\n", health.DBPath)
				fmt.Fprintf(stdout, "Database exists: %s\n", yesNo(health.DatabaseExists))
				fmt.Fprintf(stdout, "Database readable: %s\n", yesNo(health.DatabaseReadable))
				if health.SchemaVersion != "" {
					fmt.Fprintf(stdout, "Schema version: %s\n", health.SchemaVersion)
				}
				fmt.Fprintf(stdout, "Tasks table: %s\n", yesNo(health.TableExists))
				if len(health.ColumnsPresent) > 0 {
					columns := append([]string(nil), health.ColumnsPresent...)
					sort.Strings(columns)
					fmt.Fprintf(stdout, "Columns present: %s\n", strings.Join(columns, ", "))
				}
				if len(health.MissingColumns) > 0 {
					missing := append([]string(nil), health.MissingColumns...)
					sort.Strings(missing)
					fmt.Fprintf(stdout, "Missing columns: %s\n", strings.Join(missing, ", "))
				}
				fmt.Fprintf(stdout, "Integrity check: %s\n", yesNo(health.IntegrityCheck))
				fmt.Fprintf(stdout, "Total tasks: %d\n", health.TotalTasks)
				if health.Error != "" {
					fmt.Fprintf(stdout, "Error: %s\n", health.Error)
				}
				return nil
			})
		},
	}
}
