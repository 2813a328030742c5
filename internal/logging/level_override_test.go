package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestWithLevelOverrideSuppressesLowerLevels(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	quiet := WithLevelOverride(base, slog.LevelWarn)
	quiet.Info("filtered out")
	quiet.Warn("kept")

	output := buf.String()
	if strings.Contains(output, "filtered out") {
		t.Fatalf("info record should be suppressed: %q", output)
	}
	if !strings.Contains(output, "kept") {
		t.Fatalf("warn record should pass: %q", output)
	}
}

func TestWithLevelOverrideReplacesExistingOverride(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	quiet := WithLevelOverride(base, slog.LevelError)
	loud := WithLevelOverride(quiet, slog.LevelInfo)
	loud.Info("visible again")

	if !strings.Contains(buf.String(), "visible again") {
		t.Fatalf("re-override should relax the threshold: %q", buf.String())
	}
}

func TestWithLevelOverrideNilLogger(t *testing.T) {
	logger := WithLevelOverride(nil, slog.LevelInfo)
	// Must not panic and must stay silent.
	logger.Error("discarded")
}

func TestForComponentAppliesConfiguredOverride(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	overrides := map[string]string{"store": "error"}

	store := ForComponent(base, "store", overrides)
	store.Warn("busy retry")
	store.Error("corrupt database")

	output := buf.String()
	if strings.Contains(output, "busy retry") {
		t.Fatalf("warn should be suppressed for overridden component: %q", output)
	}
	if !strings.Contains(output, "corrupt database") {
		t.Fatalf("error should pass for overridden component: %q", output)
	}
	if !strings.Contains(output, `"component":"store"`) {
		t.Fatalf("component attribute missing: %q", output)
	}
}

func TestForComponentWithoutOverrideKeepsBaseLevel(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	overrides := map[string]string{"store": "error"}

	runner := ForComponent(base, "runner", overrides)
	runner.Debug("detailed trace")

	if !strings.Contains(buf.String(), "detailed trace") {
		t.Fatalf("components without overrides should keep the base level: %q", buf.String())
	}
}
