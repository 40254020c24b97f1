package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"taskmaster/backend"
	"taskmaster/backend/rest"
)

// testConfig returns an isolated Config rooted at a temp dir
func testConfig(t *testing.T, yaml string) *Config {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(yaml), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return &Config{
		NoPrompt:   true,
		ConfigPath: configPath,
		DBPath:     filepath.Join(dir, "tasks.db"),
		PostsPath:  filepath.Join(dir, "posts.json"),
		PrefsPath:  filepath.Join(dir, "prefs.toml"),
	}
}

func run(cfg *Config, args ...string) (string, string, int) {
	var stdout, stderr bytes.Buffer
	code := Execute(args, &stdout, &stderr, cfg)
	return stdout.String(), stderr.String(), code
}

func TestHelp(t *testing.T) {
	stdout, _, code := run(testConfig(t, "default_backend: sqlite\n"), "--help")
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	for _, want := range []string{"taskmaster", "Usage:", "project", "task", "post", "serve", "tui"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("help output missing %q:\n%s", want, stdout)
		}
	}
}

func TestVersion(t *testing.T) {
	stdout, _, code := run(testConfig(t, "default_backend: sqlite\n"), "--version")
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	if !strings.Contains(stdout, Version) {
		t.Errorf("version output %q does not contain %q", stdout, Version)
	}
}

func TestUnknownCommand(t *testing.T) {
	_, stderr, code := run(testConfig(t, "default_backend: sqlite\n"), "frobnicate")
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr, "Error:") {
		t.Errorf("expected error on stderr, got %q", stderr)
	}
}

func TestErrorJSON(t *testing.T) {
	stdout, _, code := run(testConfig(t, "default_backend: sqlite\n"), "--json", "task", "list", "missing")
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}

	var resp struct {
		Error  string `json:"error"`
		Code   int    `json:"code"`
		Result string `json:"result"`
	}
	if err := json.Unmarshal([]byte(stdout), &resp); err != nil {
		t.Fatalf("invalid JSON %q: %v", stdout, err)
	}
	if resp.Code != 1 || resp.Result != ResultError {
		t.Errorf("unexpected error response: %+v", resp)
	}
	if !strings.Contains(resp.Error, "project not found: missing") {
		t.Errorf("unexpected error message: %q", resp.Error)
	}
}

func TestErrorTextPrintsResultCode(t *testing.T) {
	stdout, stderr, code := run(testConfig(t, "default_backend: sqlite\n"), "task", "list", "missing")
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if strings.TrimSpace(stdout) != ResultError {
		t.Errorf("expected %s on stdout, got %q", ResultError, stdout)
	}
	if !strings.Contains(stderr, "project not found") {
		t.Errorf("unexpected stderr: %q", stderr)
	}
}

func TestInvalidConfig(t *testing.T) {
	_, stderr, code := run(testConfig(t, "default_backend: sqlite\noutput_format: xml\n"), "project", "list")
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr, "invalid configuration") {
		t.Errorf("expected invalid configuration error, got %q", stderr)
	}
}

func TestBackendFlagOverridesConfig(t *testing.T) {
	_, stderr, code := run(testConfig(t, "default_backend: sqlite\n"), "--backend", "carrier-pigeon", "project", "list")
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr, "unknown default_backend") {
		t.Errorf("unexpected stderr: %q", stderr)
	}
}

func TestContainsJSONFlag(t *testing.T) {
	tests := []struct {
		args []string
		want bool
	}{
		{[]string{"task", "list"}, false},
		{[]string{"--json", "task", "list"}, true},
		{[]string{"task", "list", "--json"}, true},
		{[]string{"task", "list", "--jsonx"}, false},
	}
	for _, tt := range tests {
		if got := containsJSONFlag(tt.args); got != tt.want {
			t.Errorf("containsJSONFlag(%v) = %v, want %v", tt.args, got, tt.want)
		}
	}
}

func TestDescribe(t *testing.T) {
	errMissing := errors.New("missing")
	notFound := func() error { return errMissing }

	if describe(nil, notFound) != nil {
		t.Error("expected nil for nil error")
	}
	if got := describe(fmt.Errorf("get: %w", backend.ErrNotFound), notFound); got != errMissing {
		t.Errorf("expected notFound error, got %v", got)
	}
	if got := describe(backend.ErrNotFound, nil); !errors.Is(got, backend.ErrNotFound) {
		t.Errorf("expected ErrNotFound to pass through, got %v", got)
	}
	if got := describe(rest.ErrUnauthorized, nil); !strings.Contains(got.Error(), "authentication failed for rest") {
		t.Errorf("unexpected unauthorized mapping: %v", got)
	}
	other := errors.New("disk full")
	if got := describe(other, notFound); got != other {
		t.Errorf("expected other errors unchanged, got %v", got)
	}
}

func TestFormatTaskLine(t *testing.T) {
	task := backend.Task{ID: "t1", Title: "Paint fence", Status: backend.StatusCompleted, Priority: backend.PriorityHigh}
	want := "[✓] Paint fence (high)  t1"
	if got := formatTaskLine(task); got != want {
		t.Errorf("formatTaskLine() = %q, want %q", got, want)
	}
}

func TestParsePostRef(t *testing.T) {
	if id, err := parsePostRef(" 12 "); err != nil || id != 12 {
		t.Errorf("parsePostRef(12) = %d, %v", id, err)
	}
	for _, ref := range []string{"abc", "0", "-3", ""} {
		if _, err := parsePostRef(ref); err == nil {
			t.Errorf("parsePostRef(%q) expected error", ref)
		}
	}
}
