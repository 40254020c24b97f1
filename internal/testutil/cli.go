// Package testutil runs the taskmaster CLI in-process against throwaway
// storage so command tests can live next to the commands they cover.
package testutil

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"taskmaster/backend"
	"taskmaster/cmd/taskmaster/cmd"
	"taskmaster/internal/credentials"
)

// Result codes printed as the last line of no-prompt text output.
const (
	ResultActionCompleted = cmd.ResultActionCompleted
	ResultInfoOnly        = cmd.ResultInfoOnly
	ResultError           = cmd.ResultError
)

const baseConfig = `default_backend: sqlite
logging:
  background_enabled: false
`

// CLITest owns one isolated taskmaster home: config, database, posts file,
// preferences and an in-memory keyring, all under t.TempDir().
type CLITest struct {
	t       *testing.T
	cfg     *cmd.Config
	keyring *credentials.MockKeyring
}

// NewCLITest starts with no posts. The posts file is written as an empty
// list so the demo posts are not seeded.
func NewCLITest(t *testing.T) *CLITest {
	t.Helper()
	c := newCLITest(t)
	c.write(c.cfg.PostsPath, "[]")
	return c
}

// NewCLITestWithSeededPosts leaves the posts file missing, so the first post
// command seeds the demo posts.
func NewCLITestWithSeededPosts(t *testing.T) *CLITest {
	t.Helper()
	return newCLITest(t)
}

func newCLITest(t *testing.T) *CLITest {
	t.Helper()
	dir := t.TempDir()
	c := &CLITest{
		t:       t,
		keyring: credentials.NewMockKeyring(),
	}
	c.cfg = &cmd.Config{
		NoPrompt:   true,
		ConfigPath: filepath.Join(dir, "config.yaml"),
		DBPath:     filepath.Join(dir, "tasks.db"),
		PostsPath:  filepath.Join(dir, "posts.json"),
		PrefsPath:  filepath.Join(dir, "prefs.toml"),
		Keyring:    c.keyring,
	}
	c.write(c.cfg.ConfigPath, baseConfig)
	return c
}

func (c *CLITest) write(path, content string) {
	c.t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		c.t.Fatalf("write %s: %v", filepath.Base(path), err)
	}
}

// Config is passed to cmd.Execute on every run; tests may adjust it, e.g. Now.
func (c *CLITest) Config() *cmd.Config { return c.cfg }

func (c *CLITest) Keyring() *credentials.MockKeyring { return c.keyring }

// SetStdin feeds input to prompts and leaves no-prompt mode.
func (c *CLITest) SetStdin(input string) {
	c.cfg.NoPrompt = false
	c.cfg.Stdin = strings.NewReader(input)
}

// SetConfigValue appends "key: value" to the config file.
func (c *CLITest) SetConfigValue(key, value string) {
	c.t.Helper()
	data, err := os.ReadFile(c.cfg.ConfigPath)
	if err != nil {
		c.t.Fatalf("read config: %v", err)
	}
	c.write(c.cfg.ConfigPath, string(data)+key+": "+value+"\n")
}

// SetFullConfig replaces the config file.
func (c *CLITest) SetFullConfig(yamlContent string) {
	c.t.Helper()
	c.write(c.cfg.ConfigPath, yamlContent)
}

// Execute runs taskmaster with args.
func (c *CLITest) Execute(args ...string) (stdout, stderr string, exitCode int) {
	var out, errOut bytes.Buffer
	exitCode = cmd.Execute(args, &out, &errOut, c.cfg)
	return out.String(), errOut.String(), exitCode
}

// MustExecute returns stdout, failing the test on a non-zero exit.
func (c *CLITest) MustExecute(args ...string) string {
	c.t.Helper()
	stdout, stderr, code := c.Execute(args...)
	if code != 0 {
		c.t.Fatalf("taskmaster %s: exit %d\nstdout: %s\nstderr: %s", strings.Join(args, " "), code, stdout, stderr)
	}
	return stdout
}

// ExecuteAndFail is MustExecute for commands expected to fail.
func (c *CLITest) ExecuteAndFail(args ...string) (stdout, stderr string) {
	c.t.Helper()
	stdout, stderr, code := c.Execute(args...)
	if code == 0 {
		c.t.Fatalf("taskmaster %s: expected failure, got exit 0\nstdout: %s", strings.Join(args, " "), stdout)
	}
	return stdout, stderr
}

// MustExecuteJSON prepends --json and decodes stdout into out.
func (c *CLITest) MustExecuteJSON(out any, args ...string) {
	c.t.Helper()
	stdout := c.MustExecute(append([]string{"--json"}, args...)...)
	if err := json.Unmarshal([]byte(stdout), out); err != nil {
		c.t.Fatalf("decode %q: %v", stdout, err)
	}
}

func (c *CLITest) AddProject(name string) backend.Project {
	c.t.Helper()
	var resp struct {
		Project backend.Project `json:"project"`
	}
	c.MustExecuteJSON(&resp, "project", "add", name)
	return resp.Project
}

// AddTask runs "task add" with optional extra flags such as --priority.
func (c *CLITest) AddTask(projectID, title string, flags ...string) backend.Task {
	c.t.Helper()
	var resp struct {
		Task backend.Task `json:"task"`
	}
	c.MustExecuteJSON(&resp, append([]string{"task", "add", projectID, title}, flags...)...)
	return resp.Task
}

func AssertContains(t *testing.T, output, expected string) {
	t.Helper()
	if !strings.Contains(output, expected) {
		t.Errorf("expected output to contain %q, got:\n%s", expected, output)
	}
}

func AssertNotContains(t *testing.T, output, unexpected string) {
	t.Helper()
	if strings.Contains(output, unexpected) {
		t.Errorf("expected output NOT to contain %q, got:\n%s", unexpected, output)
	}
}

// AssertResultCode checks the last non-blank line of output.
func AssertResultCode(t *testing.T, output, expectedCode string) {
	t.Helper()
	trimmed := strings.TrimSpace(output)
	last := strings.TrimSpace(trimmed[strings.LastIndex(trimmed, "\n")+1:])
	if last != expectedCode {
		t.Errorf("expected result code %q, got %q\nFull output:\n%s", expectedCode, last, output)
	}
}
