package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"loom/internal/agent"
	"loom/internal/config"
	"loom/internal/daemon"
	"loom/internal/deps"
	"loom/internal/ipc"
	"loom/internal/logging"
	"loom/internal/notifications"
	"loom/internal/preflight"
	"loom/internal/queue"
	"loom/internal/runner"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel   string
	SocketPath string
}

// Run starts the loom daemon runtime loop and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("loom-%s.log", runID))

	level := strings.TrimSpace(opts.LogLevel)
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logStartupSnapshot(logger, cfg)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update loom.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "loom-*.log", Exclude: []string{logPath}},
	)

	pidPath := cfg.PIDFilePath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}
	defer store.Close()

	for _, result := range preflight.Failed(preflight.RunAll(signalCtx, cfg)) {
		logger.Warn("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String(logging.FieldImpact, "tasks relying on this dependency will fail"),
			logging.String(logging.FieldErrorHint, "fix the reported dependency and restart the daemon"))
	}

	notifier := notifications.NewService(cfg)
	executor := agent.NewDispatcher(
		agent.NewCLIExecutor(cfg, logger, agent.WithWorkspaceRecorder(store)),
		agent.NewAPIExecutor(cfg, logger),
	)
	run := runner.New(cfg, store, executor, logger, notifier)

	d, err := daemon.New(cfg, store, logger, run)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	// Starting before the IPC socket exists keeps a second daemon process
	// from replacing the live instance's socket: a held lock exits here.
	if startErr := d.Start(signalCtx); startErr != nil {
		if strings.Contains(startErr.Error(), "another loom daemon instance") {
			logger.Error("queue lock is held by a live daemon",
				logging.Error(startErr),
				logging.String(logging.FieldEventType, "daemon_start_refused"))
			return startErr
		}
		logger.Warn("daemon start failed",
			logging.Error(startErr),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "retry with 'loom daemon start' once the cause is fixed"),
			logging.String(logging.FieldImpact, "daemon is idle until started"))
	}

	socketPath := strings.TrimSpace(opts.SocketPath)
	if socketPath == "" {
		socketPath = cfg.SocketPath()
	}
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	<-signalCtx.Done()
	logger.Info("loom daemon shutting down")
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "loom.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logStartupSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	agentStatus := deps.Check(deps.Requirement{Name: "Agent CLI", Command: cfg.Agent.Binary})
	gitStatus := deps.Check(deps.Requirement{Name: "git", Command: "git", Optional: true})
	logger.Info("startup snapshot",
		logging.String(logging.FieldEventType, "startup_snapshot"),
		logging.String("agent_binary", cfg.Agent.Binary),
		logging.Bool("agent_available", agentStatus.Available),
		logging.Bool("git_available", gitStatus.Available),
		logging.Bool("api_enabled", cfg.API.Enabled),
		logging.Bool("api_key_present", strings.TrimSpace(cfg.API.APIKey) != ""),
		logging.Int("max_parallel", cfg.Runner.MaxParallel),
		logging.Bool("notifications_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
	)
}
