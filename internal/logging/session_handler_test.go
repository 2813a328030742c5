package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestSessionIDHandlerInjectsAttribute(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewJSONHandler(&buf, nil)

	logger := slog.New(newSessionIDHandler(base, "sess-123"))
	logger.Info("test message")

	if !strings.Contains(buf.String(), `"session_id":"sess-123"`) {
		t.Fatalf("expected session_id attribute in output: %q", buf.String())
	}
}

func TestSessionIDHandlerPreservesExistingAttrs(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewJSONHandler(&buf, nil)

	logger := slog.New(newSessionIDHandler(base, "sess-456")).With("component", "daemon")
	logger.Warn("problem detected", "detail", "value")

	output := buf.String()
	if !strings.Contains(output, `"session_id":"sess-456"`) {
		t.Fatalf("expected session_id attribute in output: %q", output)
	}
	if !strings.Contains(output, `"component":"daemon"`) {
		t.Fatalf("expected component attribute in output: %q", output)
	}
	if !strings.Contains(output, `"detail":"value"`) {
		t.Fatalf("expected call-site attribute in output: %q", output)
	}
}

func TestSessionIDHandlerNilBase(t *testing.T) {
	handler := newSessionIDHandler(nil, "sess-789")
	if handler.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("nil base should yield a disabled handler")
	}
	// Must not panic when asked to handle anyway.
	if err := handler.Handle(context.Background(), slog.Record{}); err != nil {
		t.Fatalf("noop handle returned error: %v", err)
	}
}
