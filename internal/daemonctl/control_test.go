package daemonctl_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"loom/internal/daemonctl"
	"loom/internal/queue"
	"loom/internal/testsupport"
)

func TestCleanStaleRuntimeFilesRemovesDeadDaemonRecords(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	socket := cfg.SocketPath()
	stale := []string{cfg.PIDFilePath(), socket, cfg.DaemonLockPath()}
	// A pid beyond the kernel pid range can never name a live process.
	if err := os.WriteFile(cfg.PIDFilePath(), []byte("99999999"), 0o644); err != nil {
		t.Fatalf("write pid file: %v", err)
	}
	for _, path := range stale[1:] {
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}

	removed := daemonctl.CleanStaleRuntimeFiles(socket, cfg)
	if len(removed) != len(stale) {
		t.Fatalf("expected %d files removed, got %v", len(stale), removed)
	}
	for _, path := range stale {
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("expected %s to be removed, stat err=%v", path, err)
		}
	}
}

func TestCleanStaleRuntimeFilesKeepsLiveProcessRecords(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	if err := os.WriteFile(cfg.PIDFilePath(), []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		t.Fatalf("write pid file: %v", err)
	}
	if err := os.WriteFile(cfg.DaemonLockPath(), nil, 0o644); err != nil {
		t.Fatalf("write lock file: %v", err)
	}

	if removed := daemonctl.CleanStaleRuntimeFiles(cfg.SocketPath(), cfg); len(removed) != 0 {
		t.Fatalf("expected no files removed for a live pid, got %v", removed)
	}
	if _, err := os.Stat(cfg.PIDFilePath()); err != nil {
		t.Fatalf("expected pid file to survive: %v", err)
	}
}

func TestForceKillProcessRefusesSelf(t *testing.T) {
	dir := t.TempDir()
	pidPath := filepath.Join(dir, "loom.pid")
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		t.Fatalf("write pid file: %v", err)
	}

	if _, err := daemonctl.ForceKillProcess(pidPath, "", 0); err == nil || !strings.Contains(err.Error(), "refusing") {
		t.Fatalf("expected refusal for current process, got %v", err)
	}
}

func TestDeriveLogDir(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	if got := daemonctl.DeriveLogDir("/var/log/loom/loomd.lock", nil); got != "/var/log/loom" {
		t.Fatalf("DeriveLogDir from lock path = %q", got)
	}
	if got := daemonctl.DeriveLogDir("", cfg); got != cfg.Paths.LogDir {
		t.Fatalf("DeriveLogDir from config = %q, want %q", got, cfg.Paths.LogDir)
	}
	if got := daemonctl.DeriveLogDir("", nil); got != "" {
		t.Fatalf("DeriveLogDir without hints = %q", got)
	}
}

func TestBuildStatusSnapshotOfflineFallback(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.AddTask(t, store, queue.AddRequest{Prompt: "offline", Agent: "agent"})

	snapshot, err := daemonctl.BuildStatusSnapshot(context.Background(), cfg.SocketPath(), cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if snapshot.DaemonReachable {
		t.Fatal("expected offline snapshot")
	}
	if snapshot.Status.QueueStats[string(queue.StatusPending)] != 1 {
		t.Fatalf("expected pending count from store fallback, got %#v", snapshot.Status.QueueStats)
	}
	if snapshot.Status.QueueDBPath != cfg.QueueDBPath() {
		t.Fatalf("unexpected queue db path %q", snapshot.Status.QueueDBPath)
	}
	if len(snapshot.Dependencies) == 0 {
		t.Fatal("expected dependency statuses in snapshot")
	}
}
