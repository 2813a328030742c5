package agent_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"loom/internal/agent"
	"loom/internal/queue"
	"loom/internal/services"
	"loom/internal/testsupport"
)

type stubRunner struct {
	stdout []string
	stderr []string
	err    error
	calls  int
	dirs   []string
	args   [][]string
}

func (s *stubRunner) Run(ctx context.Context, dir, binary string, args []string, onStdout, onStderr func(string)) error {
	s.calls++
	s.dirs = append(s.dirs, dir)
	s.args = append(s.args, append([]string(nil), args...))
	for _, line := range s.stdout {
		if onStdout != nil {
			onStdout(line)
		}
	}
	for _, line := range s.stderr {
		if onStderr != nil {
			onStderr(line)
		}
	}
	return s.err
}

func equalStrings(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestCLIExecutorBuildsAgentArguments(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Agent.Binary = "agent"
	cfg.Agent.ExtraArgs = []string{"--verbose"}
	runner := &stubRunner{stdout: []string{"ok"}}
	executor := agent.NewCLIExecutor(cfg, nil, agent.WithCommandRunner(runner))

	task := &queue.Task{ID: 7, Prompt: "summarize the diff", Agent: "reviewer"}
	result, err := executor.Execute(context.Background(), task)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if result.Output != "ok" {
		t.Fatalf("unexpected output %q", result.Output)
	}
	if runner.calls != 1 {
		t.Fatalf("expected one invocation, got %d", runner.calls)
	}
	want := []string{"--verbose", "--agent", "reviewer", "-p", "summarize the diff"}
	if !equalStrings(runner.args[0], want) {
		t.Fatalf("unexpected args: got %v want %v", runner.args[0], want)
	}
}

func TestCLIExecutorJoinsStdoutLines(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	runner := &stubRunner{stdout: []string{"line one", "line two"}}
	executor := agent.NewCLIExecutor(cfg, nil, agent.WithCommandRunner(runner))

	result, err := executor.Execute(context.Background(), &queue.Task{ID: 1, Prompt: "p"})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if result.Output != "line one\nline two" {
		t.Fatalf("unexpected output %q", result.Output)
	}
}

func TestCLIExecutorReturnsStderrTailOnFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	runner := &stubRunner{
		stderr: []string{"warning: something odd", "fatal: credentials expired"},
		err:    errors.New("exit status 1"),
	}
	executor := agent.NewCLIExecutor(cfg, nil, agent.WithCommandRunner(runner))

	_, err := executor.Execute(context.Background(), &queue.Task{ID: 2, Prompt: "p"})
	if err == nil {
		t.Fatal("expected execution error")
	}
	if !errors.Is(err, services.ErrExecution) {
		t.Fatalf("expected execution classification, got %v", err)
	}
	if !services.IsRetryable(err) {
		t.Fatal("process failures must stay retryable")
	}
	if !strings.Contains(err.Error(), "credentials expired") {
		t.Fatalf("expected stderr tail in error, got %v", err)
	}
}

func TestCLIExecutorRequiresConfiguredBinary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Agent.Binary = "  "
	executor := agent.NewCLIExecutor(cfg, nil, agent.WithCommandRunner(&stubRunner{}))

	_, err := executor.Execute(context.Background(), &queue.Task{ID: 3, Prompt: "p"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if services.IsRetryable(err) {
		t.Fatal("missing binary cannot be fixed by retrying")
	}
}

func TestCLIExecutorRunsRealProcess(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAgentScript(`echo "hello from agent"`))
	executor := agent.NewCLIExecutor(cfg, nil)

	result, err := executor.Execute(context.Background(), &queue.Task{ID: 4, Prompt: "p"})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if result.Output != "hello from agent" {
		t.Fatalf("unexpected output %q", result.Output)
	}
	if result.Usage.Duration <= 0 {
		t.Fatal("expected a measured duration")
	}
}

func TestCLIExecutorCapturesRealProcessFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAgentScript(`echo "disk on fire" >&2
exit 3`))
	executor := agent.NewCLIExecutor(cfg, nil)

	_, err := executor.Execute(context.Background(), &queue.Task{ID: 5, Prompt: "p"})
	if err == nil {
		t.Fatal("expected failure from exiting script")
	}
	if !errors.Is(err, services.ErrExecution) {
		t.Fatalf("expected execution classification, got %v", err)
	}
	if !strings.Contains(err.Error(), "disk on fire") {
		t.Fatalf("expected stderr diagnostic in error, got %v", err)
	}
}

func TestCLIExecutorTimeoutTerminatesProcess(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping process timeout test in short mode")
	}
	cfg := testsupport.NewConfig(t, testsupport.WithAgentScript(`sleep 30`))
	executor := agent.NewCLIExecutor(cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	started := time.Now()
	_, err := executor.Execute(ctx, &queue.Task{ID: 6, Prompt: "p"})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, services.ErrExecution) {
		t.Fatalf("expected execution classification, got %v", err)
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("expected timeout message, got %v", err)
	}
	if elapsed := time.Since(started); elapsed > 10*time.Second {
		t.Fatalf("termination took too long: %s", elapsed)
	}
}

func TestCLIExecutorWorktreeRunsInWorkspace(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAgentScript(`pwd`))
	executor := agent.NewCLIExecutor(cfg, nil)

	result, err := executor.Execute(context.Background(), &queue.Task{ID: 8, Prompt: "p", Worktree: true})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if !strings.HasPrefix(result.Output, cfg.Paths.WorkspaceRoot) {
		t.Fatalf("expected execution inside %s, got %q", cfg.Paths.WorkspaceRoot, result.Output)
	}
	// Success removes the workspace.
	if _, statErr := os.Stat(strings.TrimSpace(result.Output)); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("expected workspace removed after success, stat err=%v", statErr)
	}
}

func TestCLIExecutorKeepsFailedWorkspace(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAgentScript(`pwd >&2
exit 1`))
	cfg.Agent.KeepFailedWorkspaces = true
	executor := agent.NewCLIExecutor(cfg, nil)

	_, err := executor.Execute(context.Background(), &queue.Task{ID: 9, Prompt: "p", Worktree: true})
	if err == nil {
		t.Fatal("expected failure")
	}
	entries, readErr := os.ReadDir(cfg.Paths.WorkspaceRoot)
	if readErr != nil {
		t.Fatalf("read workspace root: %v", readErr)
	}
	if len(entries) != 1 {
		t.Fatalf("expected failed workspace kept, found %d entries", len(entries))
	}
	if !strings.HasPrefix(entries[0].Name(), "task-9-") {
		t.Fatalf("unexpected workspace name %q", entries[0].Name())
	}
}
