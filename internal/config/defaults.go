package config

const (
	defaultDataDir             = "~/.local/share/loom"
	defaultLogDir              = "~/.local/share/loom/logs"
	defaultWorkspaceRoot       = "~/.local/share/loom/workspaces"
	defaultLogRetentionDays    = 60
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultMaxParallel         = 2
	defaultPollIntervalSeconds = 2
	defaultTaskTimeoutMinutes  = 60
	defaultMaxRetries          = 3
	defaultLockTimeoutSeconds  = 5
	defaultAgentBinary         = "agent"
	defaultAPIKeyEnv           = "LOOM_API_KEY"
	defaultAPIBaseURL          = "https://api.openai.com/v1/chat/completions"
	defaultAPIModel            = "gpt-4o-mini"
	defaultAPITimeoutSeconds   = 120
	defaultNotifyTimeout       = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:       defaultDataDir,
			LogDir:        defaultLogDir,
			WorkspaceRoot: defaultWorkspaceRoot,
		},
		Runner: Runner{
			MaxParallel:         defaultMaxParallel,
			PollIntervalSeconds: defaultPollIntervalSeconds,
			TaskTimeoutMinutes:  defaultTaskTimeoutMinutes,
			DefaultMaxRetries:   defaultMaxRetries,
			LockTimeoutSeconds:  defaultLockTimeoutSeconds,
		},
		Agent: Agent{
			Binary:               defaultAgentBinary,
			KeepFailedWorkspaces: true,
		},
		API: API{
			APIKeyEnv:      defaultAPIKeyEnv,
			BaseURL:        defaultAPIBaseURL,
			Model:          defaultAPIModel,
			TimeoutSeconds: defaultAPITimeoutSeconds,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			TaskFailed:     true,
			QueueDrained:   true,
			Errors:         true,
		},
	}
}
