package agent_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"loom/internal/agent"
	"loom/internal/queue"
	"loom/internal/testsupport"
)

type recordedWorkspace struct {
	id   int64
	path string
}

type stubRecorder struct {
	records []recordedWorkspace
}

func (s *stubRecorder) SetWorkspace(ctx context.Context, id int64, path string) error {
	s.records = append(s.records, recordedWorkspace{id: id, path: path})
	return nil
}

func TestWorkspacesScratchLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	recorder := &stubRecorder{}
	workspaces := agent.NewWorkspaces(cfg, nil, &stubRunner{}, recorder)

	task := &queue.Task{ID: 7, Prompt: "p", Worktree: true}
	ws, err := workspaces.Provision(context.Background(), task)
	if err != nil {
		t.Fatalf("Provision returned error: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(ws.Path), "task-7-") {
		t.Fatalf("unexpected workspace name %q", ws.Path)
	}
	if info, statErr := os.Stat(ws.Path); statErr != nil || !info.IsDir() {
		t.Fatalf("expected workspace directory, err=%v", statErr)
	}
	if len(recorder.records) != 1 || recorder.records[0].path != ws.Path {
		t.Fatalf("expected provisioned path recorded, got %#v", recorder.records)
	}

	if err := workspaces.Release(context.Background(), ws, false); err != nil {
		t.Fatalf("Release returned error: %v", err)
	}
	if _, statErr := os.Stat(ws.Path); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("expected workspace removed, err=%v", statErr)
	}
	last := recorder.records[len(recorder.records)-1]
	if last.id != 7 || last.path != "" {
		t.Fatalf("expected cleared record, got %#v", last)
	}
}

func TestWorkspacesKeepFailedLeavesDirectory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Agent.KeepFailedWorkspaces = true
	recorder := &stubRecorder{}
	workspaces := agent.NewWorkspaces(cfg, nil, &stubRunner{}, recorder)

	ws, err := workspaces.Provision(context.Background(), &queue.Task{ID: 8, Prompt: "p", Worktree: true})
	if err != nil {
		t.Fatalf("Provision returned error: %v", err)
	}
	if err := workspaces.Release(context.Background(), ws, true); err != nil {
		t.Fatalf("Release returned error: %v", err)
	}
	if _, statErr := os.Stat(ws.Path); statErr != nil {
		t.Fatalf("expected kept workspace, err=%v", statErr)
	}
	// The recorded path stays so status output can point at the directory.
	last := recorder.records[len(recorder.records)-1]
	if last.path != ws.Path {
		t.Fatalf("expected path still recorded, got %#v", last)
	}
}

func TestWorkspacesRemoveFailedWhenNotKeeping(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Agent.KeepFailedWorkspaces = false
	workspaces := agent.NewWorkspaces(cfg, nil, &stubRunner{}, nil)

	ws, err := workspaces.Provision(context.Background(), &queue.Task{ID: 9, Prompt: "p", Worktree: true})
	if err != nil {
		t.Fatalf("Provision returned error: %v", err)
	}
	if err := workspaces.Release(context.Background(), ws, true); err != nil {
		t.Fatalf("Release returned error: %v", err)
	}
	if _, statErr := os.Stat(ws.Path); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("expected workspace removed, err=%v", statErr)
	}
}

func TestWorkspacesUseGitWorktreeForRepoCheckouts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	repo := t.TempDir()
	if err := os.Mkdir(filepath.Join(repo, ".git"), 0o755); err != nil {
		t.Fatalf("mkdir .git: %v", err)
	}
	cfg.Agent.RepoDir = repo

	runner := &stubRunner{}
	workspaces := agent.NewWorkspaces(cfg, nil, runner, nil)

	ws, err := workspaces.Provision(context.Background(), &queue.Task{ID: 10, Prompt: "p", Worktree: true})
	if err != nil {
		t.Fatalf("Provision returned error: %v", err)
	}
	if runner.calls != 1 || runner.dirs[0] != repo {
		t.Fatalf("expected git invocation in repo dir, got %#v", runner)
	}
	want := []string{"worktree", "add", "--detach", ws.Path}
	if !equalStrings(runner.args[0], want) {
		t.Fatalf("unexpected git args: got %v want %v", runner.args[0], want)
	}

	if err := workspaces.Release(context.Background(), ws, false); err != nil {
		t.Fatalf("Release returned error: %v", err)
	}
	wantRemove := []string{"worktree", "remove", "--force", ws.Path}
	if runner.calls != 2 || !equalStrings(runner.args[1], wantRemove) {
		t.Fatalf("unexpected removal args: %#v", runner.args)
	}
}
