package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"loom/internal/agent"
	"loom/internal/config"
	"loom/internal/deps"
	"loom/internal/services"
)

// CheckAgentBinary verifies the configured cli-mode agent binary resolves to
// an executable.
func CheckAgentBinary(cfg *config.Config) Result {
	const name = "Agent binary"

	status := deps.Check(deps.Requirement{
		Name:    name,
		Command: cfg.Agent.Binary,
	})
	if !status.Available {
		return Result{Name: name, Detail: status.Detail}
	}
	detail := status.Detail
	if detail == "" {
		detail = status.Command
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckAPI verifies the chat-completions endpoint accepts the configured
// credential and model. One attempt, 30-second cap.
func CheckAPI(ctx context.Context, cfg *config.Config) Result {
	const name = "API endpoint"

	if strings.TrimSpace(cfg.API.APIKey) == "" {
		return Result{Name: name, Detail: "api key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	executor := agent.NewAPIExecutor(cfg, nil, agent.WithRetryMaxAttempts(1))
	if err := executor.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeAPIError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "endpoint reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable
// and writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries loom shells out to. Both
// the daemon and the status command consume this list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "Agent CLI",
			Command:     cfg.Agent.Binary,
			Description: "Runs cli-mode tasks",
		},
		{
			Name:        "git",
			Command:     "git",
			Description: "Provisions worktree-isolated workspaces",
			Optional:    true,
		},
	}
	return deps.CheckBinaries(requirements)
}

func summarizeAPIError(err error) string {
	if details := services.Details(err); details.Message != "" {
		return details.Message
	}
	return err.Error()
}
