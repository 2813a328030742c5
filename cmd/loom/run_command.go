package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"loom/internal/agent"
	"loom/internal/logging"
	"loom/internal/queue"
	"loom/internal/runner"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var once bool
	var maxParallel int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process the queue in the foreground",
		Long: "Process the queue in the foreground until it drains: no task running\n" +
			"and none eligible. Tasks blocked on unmet dependencies do not hold the\n" +
			"pool open.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if maxParallel > 0 {
				cfg.Runner.MaxParallel = maxParallel
			}

			logger, err := logging.New(logging.Options{
				Level:            cfg.Logging.Level,
				Format:           cfg.Logging.Format,
				OutputPaths:      []string{"stderr"},
				ErrorOutputPaths: []string{"stderr"},
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			store, err := queue.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			executor := agent.NewDispatcher(
				agent.NewCLIExecutor(cfg, logger, agent.WithWorkspaceRecorder(store)),
				agent.NewAPIExecutor(cfg, logger),
			)
			pool := runner.New(cfg, store, executor, logger, nil)

			out := cmd.OutOrStdout()
			if once {
				task, err := pool.RunOnce(runCtx)
				if err != nil {
					return err
				}
				if task == nil {
					fmt.Fprintln(out, "No eligible tasks")
					return nil
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, task)
				}
				fmt.Fprintf(out, "Task %d finished as %s\n", task.ID, task.Status)
				return nil
			}

			fmt.Fprintf(out, "Processing queue with %d workers (Ctrl+C to stop)\n", cfg.Runner.MaxParallel)
			if err := pool.Run(runCtx); err != nil {
				if errors.Is(err, context.Canceled) {
					fmt.Fprintln(out, "Interrupted; unfinished tasks return to pending")
					return nil
				}
				return err
			}
			fmt.Fprintln(out, "Queue drained")
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Execute at most one eligible task and exit")
	cmd.Flags().IntVar(&maxParallel, "max", 0, "Worker pool size (default from config)")
	return cmd
}
