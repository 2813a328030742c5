package agent

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"loom/internal/config"
	"loom/internal/logging"
	"loom/internal/queue"
	"loom/internal/services"
)

// WorkspaceRecorder persists the workspace path on the task record so status
// output can point at the directory while it exists.
type WorkspaceRecorder interface {
	SetWorkspace(ctx context.Context, id int64, path string) error
}

// Workspace is one provisioned working directory.
type Workspace struct {
	TaskID   int64
	Path     string
	worktree bool
}

// Workspaces provisions isolated working directories for worktree tasks.
// When the configured repo directory is a git checkout, each workspace is a
// git worktree sharing its object store; otherwise it is a scratch directory
// under the workspace root.
type Workspaces struct {
	root       string
	repoDir    string
	keepFailed bool
	runner     CommandRunner
	recorder   WorkspaceRecorder
	logger     *slog.Logger
}

// NewWorkspaces constructs a workspace manager from configuration. The
// recorder may be nil.
func NewWorkspaces(cfg *config.Config, logger *slog.Logger, runner CommandRunner, recorder WorkspaceRecorder) *Workspaces {
	if logger == nil {
		logger = logging.NewNop()
	}
	if runner == nil {
		runner = execRunner{}
	}
	return &Workspaces{
		root:       cfg.Paths.WorkspaceRoot,
		repoDir:    strings.TrimSpace(cfg.Agent.RepoDir),
		keepFailed: cfg.Agent.KeepFailedWorkspaces,
		runner:     runner,
		recorder:   recorder,
		logger:     logger,
	}
}

// Provision creates the working directory for one task attempt and records
// its path.
func (w *Workspaces) Provision(ctx context.Context, task *queue.Task) (*Workspace, error) {
	if err := os.MkdirAll(w.root, 0o755); err != nil {
		return nil, services.Wrap(services.ErrExecution, "agent", "workspace", "create workspace root", err)
	}

	name := fmt.Sprintf("task-%d-%s", task.ID, uuid.NewString()[:8])
	path := filepath.Join(w.root, name)
	ws := &Workspace{TaskID: task.ID, Path: path}

	if w.isGitRepo() {
		ws.worktree = true
		err := w.runner.Run(ctx, w.repoDir, "git", []string{"worktree", "add", "--detach", path}, nil, nil)
		if err != nil {
			return nil, services.Wrap(services.ErrExecution, "agent", "workspace",
				fmt.Sprintf("create git worktree at %s", path), err)
		}
	} else if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, services.Wrap(services.ErrExecution, "agent", "workspace", "create workspace directory", err)
	}

	w.record(ctx, task.ID, path)
	w.logger.Debug("workspace provisioned",
		logging.Int64(logging.FieldTaskID, task.ID),
		logging.String("workspace", path),
		logging.Bool("worktree", ws.worktree))
	return ws, nil
}

// Release removes the workspace unless the attempt failed and failed
// workspaces are configured to be kept for inspection.
func (w *Workspaces) Release(ctx context.Context, ws *Workspace, failed bool) error {
	if ws == nil {
		return nil
	}
	if failed && w.keepFailed {
		w.logger.Info("keeping failed workspace",
			logging.Int64(logging.FieldTaskID, ws.TaskID),
			logging.String("workspace", ws.Path))
		return nil
	}

	if ws.worktree {
		err := w.runner.Run(ctx, w.repoDir, "git", []string{"worktree", "remove", "--force", ws.Path}, nil, nil)
		if err != nil {
			w.logger.Warn("git worktree remove failed",
				logging.String("workspace", ws.Path),
				logging.Error(err))
		}
	}
	if err := os.RemoveAll(ws.Path); err != nil {
		return services.Wrap(services.ErrExecution, "agent", "workspace",
			fmt.Sprintf("remove workspace %s", ws.Path), err)
	}
	w.record(ctx, ws.TaskID, "")
	return nil
}

func (w *Workspaces) record(ctx context.Context, id int64, path string) {
	if w.recorder == nil {
		return
	}
	if err := w.recorder.SetWorkspace(ctx, id, path); err != nil {
		w.logger.Warn("record workspace path failed",
			logging.Int64(logging.FieldTaskID, id),
			logging.Error(err))
	}
}

// isGitRepo reports whether the configured repo directory is a git checkout.
// A .git regular file counts: worktrees and submodules use one.
func (w *Workspaces) isGitRepo() bool {
	if w.repoDir == "" {
		return false
	}
	info, err := os.Stat(filepath.Join(w.repoDir, ".git"))
	if err != nil {
		return false
	}
	return info.IsDir() || info.Mode().IsRegular()
}
