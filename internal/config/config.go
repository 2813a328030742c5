package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration for the queue database, logs, and
// task workspaces.
type Paths struct {
	DataDir       string `toml:"data_dir"`
	LogDir        string `toml:"log_dir"`
	WorkspaceRoot string `toml:"workspace_root"`
}

// Runner contains configuration for the dispatch loop.
type Runner struct {
	MaxParallel         int `toml:"max_parallel"`
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
	TaskTimeoutMinutes  int `toml:"task_timeout_minutes"`
	DefaultMaxRetries   int `toml:"default_max_retries"`
	LockTimeoutSeconds  int `toml:"lock_timeout_seconds"`
}

// Agent contains configuration for running tasks through the local agent
// binary.
type Agent struct {
	Binary               string   `toml:"binary"`
	ExtraArgs            []string `toml:"extra_args"`
	RepoDir              string   `toml:"repo_dir"`
	KeepFailedWorkspaces bool     `toml:"keep_failed_workspaces"`
}

// API contains configuration for running tasks against a hosted
// chat-completions endpoint.
type API struct {
	Enabled        bool              `toml:"enabled"`
	APIKey         string            `toml:"api_key"`
	APIKeyEnv      string            `toml:"api_key_env"`
	BaseURL        string            `toml:"base_url"`
	Model          string            `toml:"model"`
	ModelAliases   map[string]string `toml:"model_aliases"`
	TimeoutSeconds int               `toml:"timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format             string            `toml:"format"`
	Level              string            `toml:"level"`
	RetentionDays      int               `toml:"retention_days"`
	ComponentOverrides map[string]string `toml:"component_overrides"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	TaskFailed     bool   `toml:"task_failed"`
	QueueDrained   bool   `toml:"queue_drained"`
	Errors         bool   `toml:"errors"`
}

// Config encapsulates all configuration values for Loom.
//
// Configuration sections by subsystem:
//   - Paths: queue database, log, and workspace directories
//   - Runner: dispatch parallelism, polling, timeouts, and retry budget
//   - Agent: local agent binary invocation for cli-mode tasks
//   - API: hosted model endpoint for api-mode tasks
//   - Logging: log format, level, retention, and per-component overrides
//   - Notifications: ntfy push notification settings
type Config struct {
	Paths         Paths         `toml:"paths"`
	Runner        Runner        `toml:"runner"`
	Agent         Agent         `toml:"agent"`
	API           API           `toml:"api"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/loom/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("loom.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.WorkspaceRoot} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueDBPath returns the location of the queue database file.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// SocketPath returns the daemon IPC socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "loom.sock")
}

// PIDFilePath returns the daemon PID file location.
func (c *Config) PIDFilePath() string {
	return filepath.Join(c.Paths.LogDir, "loom.pid")
}

// DaemonLockPath returns the daemon single-instance lock file location.
func (c *Config) DaemonLockPath() string {
	return filepath.Join(c.Paths.LogDir, "loomd.lock")
}

// LogFilePath returns the stable pointer to the current daemon log.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.Paths.LogDir, "loom.log")
}

// PollInterval returns the runner poll sleep as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Runner.PollIntervalSeconds) * time.Second
}

// TaskTimeout returns the per-task execution deadline as a duration. Zero
// disables the deadline.
func (c *Config) TaskTimeout() time.Duration {
	return time.Duration(c.Runner.TaskTimeoutMinutes) * time.Minute
}

// LockTimeout returns the bound on store lock waits as a duration.
func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.Runner.LockTimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// ResolveModel maps a task model tier through the configured aliases. An empty
// tier falls back to the default api model; unknown tiers are passed through
// so fully qualified model names keep working.
func (c *Config) ResolveModel(tier string) string {
	tier = strings.TrimSpace(tier)
	if tier == "" {
		return strings.TrimSpace(c.API.Model)
	}
	if resolved, ok := c.API.ModelAliases[tier]; ok {
		if trimmed := strings.TrimSpace(resolved); trimmed != "" {
			return trimmed
		}
	}
	return tier
}
