package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"loom/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.WorkspaceRoot = filepath.Join(base, "workspaces")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithMaxParallel overrides the runner worker budget on the test config.
func WithMaxParallel(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Runner.MaxParallel = n
	}
}

// WithMaxRetries overrides the default retry budget for new tasks.
func WithMaxRetries(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Runner.DefaultMaxRetries = n
	}
}

// WithAgentScript writes an executable shell script and points the agent
// binary at it, so executor tests control what the subprocess does.
func WithAgentScript(body string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Agent.Binary = StubBinary(b.t, filepath.Join(b.baseDir, "bin"), "agent", body)
	}
}

// WithAPIEndpoint enables api mode against the provided URL and credential.
func WithAPIEndpoint(baseURL, key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.API.Enabled = true
		b.cfg.API.BaseURL = baseURL
		b.cfg.API.APIKey = key
	}
}

// StubBinary writes an executable script into dir and returns its path.
func StubBinary(t testing.TB, dir, name, body string) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(dir, name)
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
