package utils

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound matches, via errors.Is, every "not found" error built here.
var ErrNotFound = errors.New("not found")

// ErrorWithSuggestion pairs an error with a hint for the user. The CLI prints
// both; JSON output keeps only Err.
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

func (e *ErrorWithSuggestion) Error() string {
	return e.Err.Error() + "\n\nSuggestion: " + e.Suggestion
}

func (e *ErrorWithSuggestion) GetSuggestion() string {
	return e.Suggestion
}

func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// WrapWithSuggestion attaches suggestion to err.
func WrapWithSuggestion(err error, suggestion string) error {
	return &ErrorWithSuggestion{Err: err, Suggestion: suggestion}
}

func suggest(err error, format string, args ...any) error {
	return &ErrorWithSuggestion{Err: err, Suggestion: fmt.Sprintf(format, args...)}
}

type notFoundError struct {
	kind, ref string
}

func (e *notFoundError) Error() string { return e.kind + " not found: " + e.ref }

func (e *notFoundError) Is(target error) bool { return target == ErrNotFound }

func ErrTaskNotFound(ref string) error {
	return suggest(&notFoundError{"task", ref}, "Use 'taskmaster task list <project>' to see task ids")
}

func ErrProjectNotFound(name string) error {
	return suggest(&notFoundError{"project", name}, "Create the project with 'taskmaster project add %s'", name)
}

func ErrPostNotFound(id string) error {
	return suggest(&notFoundError{"post", id}, "Use 'taskmaster post list' to see post ids")
}

func ErrNoProjectsAvailable() error {
	return suggest(errors.New("no projects available"), "Create a project with 'taskmaster project add <name>'")
}

// ErrEmptyTitle is returned when a task or post title is blank. kind is
// "task" or "post".
func ErrEmptyTitle(kind string) error {
	return suggest(fmt.Errorf("%s title is required", kind),
		"Pass a non-empty title, e.g. 'taskmaster %s add \"Write docs\"'", kind)
}

func ErrBackendNotConfigured(name string) error {
	return suggest(fmt.Errorf("backend not configured: %s", name), "Add %s configuration to your config file", name)
}

// offlineHints maps fragments of a network error to advice, first match wins.
var offlineHints = []struct {
	fragments []string
	hint      string
}{
	{[]string{"no such host", "dns"}, "Check your DNS settings and internet connection"},
	{[]string{"connection refused"}, "Check if the server is running and accessible"},
	{[]string{"timeout"}, "The server may be slow or unreachable. Try again later"},
}

// ErrBackendOffline reports an unreachable backend, picking the suggestion
// from the transport error text.
func ErrBackendOffline(name, reason string) error {
	hint := "Check your internet connection and try again"
	lower := strings.ToLower(reason)
search:
	for _, h := range offlineHints {
		for _, f := range h.fragments {
			if strings.Contains(lower, f) {
				hint = h.hint
				break search
			}
		}
	}
	return suggest(fmt.Errorf("backend %s is offline: %s", name, reason), "%s", hint)
}

func ErrInvalidPriority(priority string, valid []string) error {
	return suggest(fmt.Errorf("invalid priority: %s", priority), "Valid options: %s", strings.Join(valid, ", "))
}

func ErrInvalidStatus(status string, valid []string) error {
	return suggest(fmt.Errorf("invalid status: %s", status), "Valid options: %s", strings.Join(valid, ", "))
}

// ErrCredentialsNotFound is returned when neither the keyring nor the
// environment holds a token for user.
func ErrCredentialsNotFound(backend, user string) error {
	return suggest(fmt.Errorf("credentials not found for %s user %s", backend, user),
		"Run 'taskmaster credentials set --username %s --prompt' or set TASKMASTER_%s_TOKEN", user, strings.ToUpper(backend))
}

func ErrAuthenticationFailed(backend string) error {
	return suggest(fmt.Errorf("authentication failed for %s", backend),
		"Verify your credentials are correct and have not expired")
}
