package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRunner()
	c.normalizeAgent()
	if err := c.normalizeAgentRepoDir(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeLogging()
	c.normalizeNotifications()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.WorkspaceRoot) == "" {
		c.Paths.WorkspaceRoot = defaultWorkspaceRoot
	}
	if c.Paths.WorkspaceRoot, err = expandPath(c.Paths.WorkspaceRoot); err != nil {
		return fmt.Errorf("paths.workspace_root: %w", err)
	}
	return nil
}

func (c *Config) normalizeRunner() {
	if c.Runner.MaxParallel <= 0 {
		c.Runner.MaxParallel = defaultMaxParallel
	}
	if c.Runner.PollIntervalSeconds <= 0 {
		c.Runner.PollIntervalSeconds = defaultPollIntervalSeconds
	}
	if c.Runner.TaskTimeoutMinutes < 0 {
		c.Runner.TaskTimeoutMinutes = 0
	}
	if c.Runner.DefaultMaxRetries < 0 {
		c.Runner.DefaultMaxRetries = defaultMaxRetries
	}
	if c.Runner.LockTimeoutSeconds <= 0 {
		c.Runner.LockTimeoutSeconds = defaultLockTimeoutSeconds
	}
}

func (c *Config) normalizeAgent() {
	c.Agent.Binary = strings.TrimSpace(c.Agent.Binary)
	if c.Agent.Binary == "" {
		c.Agent.Binary = defaultAgentBinary
	}
	args := make([]string, 0, len(c.Agent.ExtraArgs))
	for _, arg := range c.Agent.ExtraArgs {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			args = append(args, trimmed)
		}
	}
	c.Agent.ExtraArgs = args
}

func (c *Config) normalizeAgentRepoDir() error {
	c.Agent.RepoDir = strings.TrimSpace(c.Agent.RepoDir)
	if c.Agent.RepoDir == "" {
		return nil
	}
	expanded, err := expandPath(c.Agent.RepoDir)
	if err != nil {
		return fmt.Errorf("agent.repo_dir: %w", err)
	}
	c.Agent.RepoDir = expanded
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.APIKey = strings.TrimSpace(c.API.APIKey)
	c.API.APIKeyEnv = strings.TrimSpace(c.API.APIKeyEnv)
	if c.API.APIKeyEnv == "" {
		c.API.APIKeyEnv = defaultAPIKeyEnv
	}
	// Environment credentials take precedence over file values so operators
	// can rotate keys without editing config.
	if value := strings.TrimSpace(os.Getenv(c.API.APIKeyEnv)); value != "" {
		c.API.APIKey = value
	}
	c.API.BaseURL = strings.TrimSpace(c.API.BaseURL)
	if c.API.BaseURL == "" {
		c.API.BaseURL = defaultAPIBaseURL
	}
	c.API.Model = strings.TrimSpace(c.API.Model)
	if c.API.Model == "" {
		c.API.Model = defaultAPIModel
	}
	if c.API.TimeoutSeconds <= 0 {
		c.API.TimeoutSeconds = defaultAPITimeoutSeconds
	}
	if len(c.API.ModelAliases) > 0 {
		aliases := make(map[string]string, len(c.API.ModelAliases))
		for tier, model := range c.API.ModelAliases {
			tier = strings.ToLower(strings.TrimSpace(tier))
			model = strings.TrimSpace(model)
			if tier == "" || model == "" {
				continue
			}
			aliases[tier] = model
		}
		c.API.ModelAliases = aliases
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
	if len(c.Logging.ComponentOverrides) > 0 {
		overrides := make(map[string]string, len(c.Logging.ComponentOverrides))
		for component, level := range c.Logging.ComponentOverrides {
			component = strings.ToLower(strings.TrimSpace(component))
			level = strings.ToLower(strings.TrimSpace(level))
			if component == "" || level == "" {
				continue
			}
			overrides[component] = level
		}
		c.Logging.ComponentOverrides = overrides
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}
