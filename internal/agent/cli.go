package agent

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"loom/internal/config"
	"loom/internal/logging"
	"loom/internal/queue"
	"loom/internal/services"
)

const (
	// How long a terminated agent gets to exit before its whole process
	// group is killed.
	termGrace = 5 * time.Second

	maxCapturedOutput = 1 << 20
	maxScanTokenSize  = 1 << 20
	stderrTailLines   = 40
)

// CommandRunner abstracts subprocess execution for testability.
type CommandRunner interface {
	Run(ctx context.Context, dir, binary string, args []string, onStdout, onStderr func(string)) error
}

// CLIExecutor runs tasks through the configured agent binary. The prompt is
// passed with -p and agent profiles with --agent; stdout becomes the task
// output and the stderr tail becomes the failure diagnostic.
type CLIExecutor struct {
	cfg        *config.Config
	logger     *slog.Logger
	runner     CommandRunner
	workspaces *Workspaces
}

// CLIOption configures the executor.
type CLIOption func(*CLIExecutor)

// WithCommandRunner injects a custom command runner (primarily for tests).
func WithCommandRunner(runner CommandRunner) CLIOption {
	return func(e *CLIExecutor) {
		if runner != nil {
			e.runner = runner
		}
	}
}

// WithWorkspaceRecorder persists workspace paths on task records as they are
// provisioned and released.
func WithWorkspaceRecorder(recorder WorkspaceRecorder) CLIOption {
	return func(e *CLIExecutor) {
		e.workspaces.recorder = recorder
	}
}

// NewCLIExecutor constructs the subprocess executor.
func NewCLIExecutor(cfg *config.Config, logger *slog.Logger, opts ...CLIOption) *CLIExecutor {
	if logger == nil {
		logger = logging.NewNop()
	}
	executor := &CLIExecutor{
		cfg:    cfg,
		logger: logger,
		runner: execRunner{},
	}
	executor.workspaces = NewWorkspaces(cfg, logger, executor.runner, nil)
	for _, opt := range opts {
		opt(executor)
	}
	// Options may swap the runner; workspace git calls go through the same one.
	executor.workspaces.runner = executor.runner
	return executor
}

// Execute runs one attempt of a cli-mode task.
func (e *CLIExecutor) Execute(ctx context.Context, task *queue.Task) (*Result, error) {
	binary := strings.TrimSpace(e.cfg.Agent.Binary)
	if binary == "" {
		return nil, services.Wrap(services.ErrConfiguration, "agent", "cli", "agent binary not configured; set [agent] binary", nil)
	}

	workdir := e.cfg.Agent.RepoDir
	var ws *Workspace
	if task.Worktree {
		provisioned, err := e.workspaces.Provision(ctx, task)
		if err != nil {
			return nil, err
		}
		ws = provisioned
		workdir = ws.Path
	}

	args := make([]string, 0, len(e.cfg.Agent.ExtraArgs)+4)
	args = append(args, e.cfg.Agent.ExtraArgs...)
	if agentName := strings.TrimSpace(task.Agent); agentName != "" {
		args = append(args, "--agent", agentName)
	}
	args = append(args, "-p", task.Prompt)

	var (
		output    strings.Builder
		truncated bool
	)
	stderrTail := newTailBuffer(stderrTailLines)
	onStdout := func(line string) {
		if output.Len() >= maxCapturedOutput {
			truncated = true
			return
		}
		if output.Len() > 0 {
			output.WriteByte('\n')
		}
		output.WriteString(line)
	}
	onStderr := func(line string) {
		stderrTail.Append(line)
		e.logger.Debug("agent stderr",
			logging.Int64(logging.FieldTaskID, task.ID),
			logging.String("line", line))
	}

	e.logger.Info("launching agent",
		logging.Int64(logging.FieldTaskID, task.ID),
		logging.String("binary", binary),
		logging.String("workdir", workdir))

	started := time.Now()
	runErr := e.runner.Run(ctx, workdir, binary, args, onStdout, onStderr)
	elapsed := time.Since(started)

	if runErr != nil {
		e.releaseWorkspace(ws, true)
		if errors.Is(runErr, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrExecution, "agent", "cli",
				fmt.Sprintf("agent timed out after %s and was terminated", elapsed.Round(time.Second)), runErr)
		}
		if tail := stderrTail.String(); tail != "" {
			return nil, services.Wrap(services.ErrExecution, "agent", "cli", tail, runErr)
		}
		return nil, services.Wrap(services.ErrExecution, "agent", "cli", "agent process failed", runErr)
	}

	e.releaseWorkspace(ws, false)

	out := output.String()
	if truncated {
		out += "\n... (output truncated)"
	}
	return &Result{Output: out, Usage: Usage{Duration: elapsed}}, nil
}

// releaseWorkspace runs on a fresh context: cleanup must still work after
// the task context has expired.
func (e *CLIExecutor) releaseWorkspace(ws *Workspace, failed bool) {
	if ws == nil {
		return
	}
	if err := e.workspaces.Release(context.Background(), ws, failed); err != nil {
		e.logger.Warn("workspace release failed",
			logging.Int64(logging.FieldTaskID, ws.TaskID),
			logging.String("workspace", ws.Path),
			logging.Error(err))
	}
}

// tailBuffer keeps the most recent lines appended to it.
type tailBuffer struct {
	ring  []string
	total int
}

func newTailBuffer(capacity int) *tailBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &tailBuffer{ring: make([]string, capacity)}
}

func (b *tailBuffer) Append(line string) {
	b.ring[b.total%len(b.ring)] = line
	b.total++
}

func (b *tailBuffer) String() string {
	count := b.total
	if count > len(b.ring) {
		count = len(b.ring)
	}
	lines := make([]string, 0, count)
	for i := b.total - count; i < b.total; i++ {
		lines = append(lines, b.ring[i%len(b.ring)])
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

type execRunner struct{}

// Run starts the binary in its own process group, drains both pipes, and on
// context cancellation sends SIGTERM to the group, escalating to SIGKILL
// after the grace period.
func (execRunner) Run(ctx context.Context, dir, binary string, args []string, onStdout, onStderr func(string)) error {
	cmd := exec.Command(binary, args...) //nolint:gosec
	cmd.Dir = dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start agent: %w", err)
	}

	// With Setpgid the child's process group id equals its pid.
	pgid := cmd.Process.Pid
	exited := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = unix.Kill(-pgid, unix.SIGTERM)
			timer := time.NewTimer(termGrace)
			defer timer.Stop()
			select {
			case <-exited:
			case <-timer.C:
				_ = unix.Kill(-pgid, unix.SIGKILL)
			}
		case <-exited:
		}
	}()

	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once

	scan := func(r io.Reader, forward func(string)) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxScanTokenSize)
		for scanner.Scan() {
			if forward != nil {
				forward(scanner.Text())
			}
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	wg.Add(2)
	go scan(stdout, onStdout)
	go scan(stderr, onStderr)
	wg.Wait()

	waitErr := cmd.Wait()
	close(exited)

	if err := ctx.Err(); err != nil {
		return err
	}
	if scanErr != nil {
		return fmt.Errorf("scan agent output: %w", scanErr)
	}
	if waitErr != nil {
		return fmt.Errorf("agent process: %w", waitErr)
	}
	return nil
}
