package utils

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"taskmaster/backend"
)

// MaxTitleLength is the longest accepted task or post title, in characters.
const MaxTitleLength = 200

// ValidateTitle checks that a title is non-blank and not overly long.
// kind names the record in the error, e.g. "task" or "post".
func ValidateTitle(kind, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle(kind)
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return &ErrorWithSuggestion{
			Err:        fmt.Errorf("%s title is longer than %d characters", kind, MaxTitleLength),
			Suggestion: "Shorten the title and move details into the description",
		}
	}
	return nil
}

// normalizeEnum lowercases s and accepts '-' or ' ' in place of '_'.
func normalizeEnum(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}

// statusAliases maps accepted shorthands to statuses.
var statusAliases = map[string]backend.TaskStatus{
	"todo":     backend.StatusPending,
	"progress": backend.StatusInProgress,
	"doing":    backend.StatusInProgress,
	"done":     backend.StatusCompleted,
}

// ParseStatus parses a task status such as "pending", "in-progress" or "done".
func ParseStatus(s string) (backend.TaskStatus, error) {
	n := normalizeEnum(s)
	for _, valid := range backend.ValidStatuses {
		if n == string(valid) {
			return valid, nil
		}
	}
	if status, ok := statusAliases[n]; ok {
		return status, nil
	}
	return "", ErrInvalidStatus(s, statusNames())
}

// ParsePriority parses a task priority such as "low" or "HIGH".
func ParsePriority(s string) (backend.TaskPriority, error) {
	n := normalizeEnum(s)
	for _, valid := range backend.ValidPriorities {
		if n == string(valid) {
			return valid, nil
		}
	}
	return "", ErrInvalidPriority(s, priorityNames())
}

func statusNames() []string {
	names := make([]string, len(backend.ValidStatuses))
	for i, s := range backend.ValidStatuses {
		names[i] = string(s)
	}
	return names
}

func priorityNames() []string {
	names := make([]string, len(backend.ValidPriorities))
	for i, p := range backend.ValidPriorities {
		names[i] = string(p)
	}
	return names
}
