package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveLogPathUsesXDGStateHome(t *testing.T) {
	xdgStateHome := t.TempDir()
	t.Setenv("XDG_STATE_HOME", xdgStateHome)

	path, err := resolveLogPath("")
	if err != nil {
		t.Fatalf("resolveLogPath: %v", err)
	}
	want := filepath.Join(xdgStateHome, "vitalscribe", "session.jsonl")
	if path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}
}

func TestResolveLogPathPrefersExplicitDir(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	dir := t.TempDir()

	path, err := resolveLogPath(dir)
	if err != nil {
		t.Fatalf("resolveLogPath: %v", err)
	}
	want := filepath.Join(dir, "session.jsonl")
	if path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}
}

func TestNewCreatesWritableJSONLogFile(t *testing.T) {
	dir := t.TempDir()

	runtime, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	runtime.Logger.Info("unit-test-log", "component", "logging")
	if err := runtime.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	contents, err := os.ReadFile(runtime.Path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(contents), `"msg":"unit-test-log"`) {
		t.Fatalf("log contents missing expected msg field: %s", contents)
	}
	if !strings.Contains(string(contents), `"component":"logging"`) {
		t.Fatalf("log contents missing expected component field: %s", contents)
	}
}
