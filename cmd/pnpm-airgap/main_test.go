package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func captureOutputWithExitCode(t *testing.T, run func() int) (int, string, string) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stdout failed: %v", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stderr failed: %v", err)
	}

	os.Stdout = stdoutW
	os.Stderr = stderrW

	code := run()

	_ = stdoutW.Close()
	_ = stderrW.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	stdoutBytes, _ := io.ReadAll(stdoutR)
	stderrBytes, _ := io.ReadAll(stderrR)

	_ = stdoutR.Close()
	_ = stderrR.Close()

	return code, string(stdoutBytes), string(stderrBytes)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestSnapshotDiffCommand(t *testing.T) {
	dir := t.TempDir()
	snapPath := writeFile(t, dir, "snapshot.json", `{
  "formatVersion": 2,
  "capturedAt": "2026-03-01T12:00:00Z",
  "registryUrl": "https://registry.internal.example",
  "packages": {"pkg": ["1.0.0"]}
}`)
	reqPath := writeFile(t, dir, "requirements.json", `["pkg@1.0.0", "pkg@2.0.0"]`)

	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runSnapshotDiff([]string{"--snapshot", snapPath, "--requirements", reqPath})
	})

	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(stdout, "missing   pkg@2.0.0") {
		t.Errorf("expected missing pkg@2.0.0 in output, got:\n%s", stdout)
	}
	if !strings.Contains(stdout, "existing  pkg@1.0.0") {
		t.Errorf("expected existing pkg@1.0.0 in output, got:\n%s", stdout)
	}
	if !strings.Contains(stdout, "1 missing, 1 existing") {
		t.Errorf("expected totals line in output, got:\n%s", stdout)
	}
}

func TestSnapshotDiffRejectsWrongFormatVersion(t *testing.T) {
	dir := t.TempDir()
	snapPath := writeFile(t, dir, "snapshot.json", `{"formatVersion": 1, "packages": {}}`)
	reqPath := writeFile(t, dir, "requirements.json", `[]`)

	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runSnapshotDiff([]string{"--snapshot", snapPath, "--requirements", reqPath})
	})

	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr, "format version") {
		t.Errorf("expected format version error, got:\n%s", stderr)
	}
}

func TestSnapshotDiffRequiresFlags(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runSnapshotDiff(nil)
	})
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr, "Usage:") {
		t.Errorf("expected usage message, got:\n%s", stderr)
	}
}

func TestSnapshotNounUnknownAction(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runSnapshotNoun([]string{"bogus"})
	})
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr, "Unknown snapshot action") {
		t.Errorf("expected unknown action error, got:\n%s", stderr)
	}
}

func TestHistoryNounUsage(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runHistoryNoun(nil)
	})
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr, "Usage:") {
		t.Errorf("expected usage message, got:\n%s", stderr)
	}
}

func TestHistoryListWithEmptyDatabase(t *testing.T) {
	dir := t.TempDir()
	configPath := writeFile(t, dir, "config.yaml", `
registry:
  url: "https://registry.internal.example"
history:
  path: "`+filepath.Join(dir, "history.db")+`"
`)

	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runHistoryList([]string{"--config", configPath})
	})

	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(stdout, "No runs recorded.") {
		t.Errorf("expected empty-history message, got:\n%s", stdout)
	}
}

func TestPublishRejectsMissingConfig(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runPublish([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml")})
	})
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr, "Failed to load config") {
		t.Errorf("expected config load error, got:\n%s", stderr)
	}
}
