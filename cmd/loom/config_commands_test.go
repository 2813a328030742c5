package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigCommands(t *testing.T) {
	base := t.TempDir()
	socket := filepath.Join(base, "missing.sock")
	target := filepath.Join(base, "loom.toml")

	output, err := runCLIWithSocket(t, socket, target, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init failed: %v\n%s", err, output)
	}
	requireContains(t, output, "Wrote sample configuration to "+target)

	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected sample config on disk: %v", err)
	}

	if _, err := runCLIWithSocket(t, socket, target, "config", "init", "--path", target); err == nil {
		t.Fatal("expected repeat init without --overwrite to fail")
	}

	output, err = runCLIWithSocket(t, socket, target, "config", "init", "--path", target, "--overwrite")
	if err != nil {
		t.Fatalf("config init --overwrite failed: %v\n%s", err, output)
	}
	requireContains(t, output, "Wrote sample configuration to "+target)

	output, err = runCLIWithSocket(t, socket, target, "config", "path")
	if err != nil {
		t.Fatalf("config path failed: %v\n%s", err, output)
	}
	requireContains(t, output, target)
	if strings.Contains(output, "Not created yet") {
		t.Fatalf("config file exists, got:\n%s", output)
	}

	output, err = runCLIWithSocket(t, socket, target, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v\n%s", err, output)
	}
	requireContains(t, output, "# Resolved from "+target)
	requireContains(t, output, "[runner]")
	requireContains(t, output, "max_parallel")
}

func TestConfigCommandsWhenFileMissing(t *testing.T) {
	base := t.TempDir()
	socket := filepath.Join(base, "missing.sock")
	target := filepath.Join(base, "absent.toml")

	output, err := runCLIWithSocket(t, socket, target, "config", "path")
	if err != nil {
		t.Fatalf("config path failed: %v\n%s", err, output)
	}
	requireContains(t, output, target)
	requireContains(t, output, "Not created yet")

	output, err = runCLIWithSocket(t, socket, target, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v\n%s", err, output)
	}
	requireContains(t, output, "showing defaults")
	requireContains(t, output, "[paths]")
}
