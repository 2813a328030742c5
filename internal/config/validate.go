package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable. Validation stays permissive
// about credentials: a missing api key only fails api-mode tasks at dispatch
// time, it never blocks the daemon from starting.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateRunner(); err != nil {
		return err
	}
	if err := c.validateAgent(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	if strings.TrimSpace(c.Paths.WorkspaceRoot) == "" {
		return errors.New("paths.workspace_root must be set")
	}
	return nil
}

func (c *Config) validateRunner() error {
	if err := ensurePositiveMap(map[string]int{
		"runner.max_parallel":          c.Runner.MaxParallel,
		"runner.poll_interval_seconds": c.Runner.PollIntervalSeconds,
		"runner.lock_timeout_seconds":  c.Runner.LockTimeoutSeconds,
	}); err != nil {
		return err
	}
	if c.Runner.TaskTimeoutMinutes < 0 {
		return errors.New("runner.task_timeout_minutes must be >= 0 (0 disables the deadline)")
	}
	if c.Runner.DefaultMaxRetries < 0 {
		return errors.New("runner.default_max_retries must be >= 0")
	}
	return nil
}

func (c *Config) validateAgent() error {
	if strings.TrimSpace(c.Agent.Binary) == "" {
		return errors.New("agent.binary must be set")
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.TimeoutSeconds <= 0 {
		return errors.New("api.timeout_seconds must be positive")
	}
	if c.API.Enabled && strings.TrimSpace(c.API.BaseURL) == "" {
		return errors.New("api.base_url must be set when api.enabled is true")
	}
	for tier, model := range c.API.ModelAliases {
		if strings.TrimSpace(model) == "" {
			return fmt.Errorf("api.model_aliases.%s must not be empty", tier)
		}
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive (seconds)")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
