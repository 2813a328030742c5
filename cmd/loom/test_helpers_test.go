package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"loom/internal/agent"
	"loom/internal/config"
	"loom/internal/daemon"
	"loom/internal/ipc"
	"loom/internal/logging"
	"loom/internal/queue"
	"loom/internal/runner"
	"loom/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	socketPath string
	store      *queue.Store
	daemon     *daemon.Daemon
}

// setupCLITestEnv builds a config file, queue store, and a live IPC server
// backed by an idle daemon, so commands exercise the same transport they use
// in production. The daemon is constructed but not started; lifecycle
// commands drive it through the socket.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	binary := testsupport.StubBinary(t, filepath.Join(base, "bin"), "agent", "exit 0")
	configPath := writeTestConfig(t, base, binary)

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("load test config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()

	executor := agent.NewDispatcher(
		agent.NewCLIExecutor(cfg, logger, agent.WithWorkspaceRecorder(store)),
		agent.NewAPIExecutor(cfg, logger),
	)
	pool := runner.New(cfg, store, executor, logger, nil)

	d, err := daemon.New(cfg, store, logger, pool)
	if err != nil {
		t.Fatalf("create daemon: %v", err)
	}

	serverCtx, cancel := context.WithCancel(context.Background())
	socketPath := filepath.Join(cfg.Paths.LogDir, "cli.sock")
	srv, err := ipc.NewServer(serverCtx, socketPath, d, logger)
	if err != nil {
		cancel()
		t.Fatalf("create IPC server: %v", err)
	}
	srv.Serve()

	t.Cleanup(func() {
		srv.Close()
		if err := d.Close(); err != nil {
			t.Logf("daemon close: %v", err)
		}
		cancel()
	})

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		socketPath: socketPath,
		store:      store,
		daemon:     d,
	}
}

func writeTestConfig(t *testing.T, base, agentBinary string) string {
	t.Helper()

	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q
workspace_root = %q

[agent]
binary = %q

[runner]
max_parallel = 1
poll_interval_seconds = 1
task_timeout_minutes = 1
default_max_retries = 2
lock_timeout_seconds = 2

[logging]
format = "console"
level = "error"
`,
		filepath.Join(base, "data"),
		filepath.Join(base, "logs"),
		filepath.Join(base, "workspaces"),
		agentBinary,
	)

	path := filepath.Join(base, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write test config: %v", err)
	}
	return path
}

// runCLI executes the root command with the environment's socket and config
// flags prepended, capturing combined output.
func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, error) {
	t.Helper()
	return runCLIWithSocket(t, env.socketPath, env.configPath, args...)
}

// runCLIWithSocket is runCLI with an explicit socket, so tests can point
// commands at a dead socket and exercise the direct-store fallback.
func runCLIWithSocket(t *testing.T, socketPath, configPath string, args ...string) (string, error) {
	t.Helper()

	rootCmd := newRootCommand()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--socket", socketPath, "--config", configPath}, args...))

	err := rootCmd.Execute()
	return out.String(), err
}

func mustRunCLI(t *testing.T, env *cliTestEnv, args ...string) string {
	t.Helper()

	output, err := runCLI(t, env, args...)
	if err != nil {
		t.Fatalf("command %v failed: %v\noutput:\n%s", args, err, output)
	}
	return output
}

func requireContains(t *testing.T, output, want string) {
	t.Helper()

	if !strings.Contains(output, want) {
		t.Fatalf("output missing %q:\n%s", want, output)
	}
}

func deadSocket(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "missing.sock")
}

func waitFor(t *testing.T, timeout time.Duration, check func() bool, message string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", message)
}
