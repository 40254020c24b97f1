// Package prompt handles interactive prompts with no-prompt mode support.
// It provides task selection by title filter, delete confirmation and
// interactive add mode with field validation.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
	"taskmaster/backend"
	"taskmaster/internal/utils"
)

// Sentinel errors for prompt operations.
var (
	ErrSelectionCancelled = errors.New("selection cancelled")
	ErrNoPromptMode       = errors.New("interactive prompts disabled (--no-prompt / -y)")
	ErrNoTasks            = errors.New("no tasks available")
	ErrNoMatches          = errors.New("no tasks match the filter")
)

// IsInteractive reports whether r is a terminal a user can answer prompts on.
func IsInteractive(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// TaskSelector lets the user pick one task, narrowing by a title filter first.
type TaskSelector struct {
	Tasks    []backend.Task
	Prompt   string
	Filter   string // Initial filter; when set the filter prompt is skipped
	Reader   io.Reader
	Writer   io.Writer
	NoPrompt bool
}

// Run executes the task selection prompt.
// A filter matching exactly one task selects it without prompting, even in
// no-prompt mode. Otherwise NoPrompt returns ErrNoPromptMode.
func (s *TaskSelector) Run() (*backend.Task, error) {
	if len(s.Tasks) == 0 {
		return nil, ErrNoTasks
	}

	writer := s.Writer
	if writer == nil {
		writer = io.Discard
	}

	candidates := s.Tasks
	if s.Filter != "" {
		candidates = FilterByTitle(s.Tasks, s.Filter)
		if len(candidates) == 0 {
			return nil, ErrNoMatches
		}
	}
	if len(candidates) == 1 {
		return &candidates[0], nil
	}
	if s.NoPrompt {
		return nil, ErrNoPromptMode
	}

	scanner := bufio.NewScanner(s.Reader)

	if s.Filter == "" {
		_, _ = fmt.Fprintf(writer, "%s\nFilter (or press Enter to show all): ", s.Prompt)
		if !scanner.Scan() {
			return nil, ErrSelectionCancelled
		}
		candidates = FilterByTitle(s.Tasks, strings.TrimSpace(scanner.Text()))
		if len(candidates) == 0 {
			return nil, ErrNoMatches
		}
		if len(candidates) == 1 {
			_, _ = fmt.Fprintf(writer, "Auto-selected: %s\n", candidates[0].Title)
			return &candidates[0], nil
		}
	} else {
		_, _ = fmt.Fprintf(writer, "%s\n", s.Prompt)
	}

	for i, t := range candidates {
		_, _ = fmt.Fprintf(writer, "  %d) %s\n", i+1, FormatTaskLine(t))
	}

	_, _ = fmt.Fprintf(writer, "Select (0 to cancel): ")
	if !scanner.Scan() {
		return nil, ErrSelectionCancelled
	}

	input := strings.TrimSpace(scanner.Text())
	num, err := strconv.Atoi(input)
	if err != nil {
		return nil, fmt.Errorf("invalid selection: %s", input)
	}
	if num == 0 {
		return nil, ErrSelectionCancelled
	}
	if num < 1 || num > len(candidates) {
		return nil, fmt.Errorf("selection out of range: %d", num)
	}
	return &candidates[num-1], nil
}

// FilterByTitle returns the tasks whose title contains filter, ignoring case.
// An empty filter returns every task.
func FilterByTitle(tasks []backend.Task, filter string) []backend.Task {
	filter = strings.ToLower(strings.TrimSpace(filter))
	var out []backend.Task
	for _, t := range tasks {
		if filter == "" || strings.Contains(strings.ToLower(t.Title), filter) {
			out = append(out, t)
		}
	}
	return out
}

// FormatTaskLine formats a task for a selection list: title, then status and priority.
func FormatTaskLine(t backend.Task) string {
	return fmt.Sprintf("%s [%s, %s]", t.Title, t.Status, t.Priority)
}

// Confirm asks a yes/no question. NoPrompt answers yes without asking.
// End of input answers no.
func Confirm(question string, reader io.Reader, writer io.Writer, noPrompt bool) bool {
	if noPrompt {
		return true
	}
	if writer == nil {
		writer = io.Discard
	}
	scanner := bufio.NewScanner(reader)
	for {
		_, _ = fmt.Fprintf(writer, "%s [y/N]: ", question)
		if !scanner.Scan() {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "y", "yes":
			return true
		case "", "n", "no":
			return false
		}
		_, _ = fmt.Fprintln(writer, "Please answer y or n.")
	}
}

// AddFields holds the field values collected during interactive add mode.
type AddFields struct {
	Title       string
	Description string
	Priority    backend.TaskPriority
	Status      backend.TaskStatus
}

// NewTask converts the collected fields into a create request for projectID.
func (f AddFields) NewTask(projectID string) backend.NewTask {
	return backend.NewTask{
		ProjectID:   projectID,
		Title:       f.Title,
		Description: f.Description,
		Status:      f.Status,
		Priority:    f.Priority,
	}
}

// InteractiveAdder provides sequential field prompts with validation
// for adding a task when no title is provided.
type InteractiveAdder struct {
	Reader   io.Reader
	Writer   io.Writer
	NoPrompt bool
}

// Run prompts for title (required), description, priority and status.
// Blank optional answers keep the backend defaults.
func (a *InteractiveAdder) Run() (*AddFields, error) {
	if a.NoPrompt {
		return nil, ErrNoPromptMode
	}
	q := &questioner{scanner: bufio.NewScanner(a.Reader), w: a.Writer}
	if q.w == nil {
		q.w = io.Discard
	}
	fields := &AddFields{}

	title, ok := q.ask("Title (required): ", func(in string) (string, error) {
		return in, utils.ValidateTitle("task", in)
	}, "Title cannot be empty or longer than 200 characters.")
	if !ok {
		return nil, errors.New("no input for title")
	}
	fields.Title = title

	fields.Description, _ = q.ask("Description (optional): ", nil, "")

	fields.Priority, _ = askEnum(q, "Priority (low, medium, high; default medium): ", utils.ParsePriority, "Invalid priority")
	fields.Status, _ = askEnum(q, "Status (pending, in_progress, completed; default pending): ", utils.ParseStatus, "Invalid status")
	return fields, nil
}

// questioner asks one line at a time, repeating a question until its answer
// parses.
type questioner struct {
	scanner *bufio.Scanner
	w       io.Writer
}

// ask returns the trimmed answer. With a nil parse any answer is accepted.
// ok is false at end of input.
func (q *questioner) ask(question string, parse func(string) (string, error), invalid string) (string, bool) {
	for {
		_, _ = fmt.Fprint(q.w, question)
		if !q.scanner.Scan() {
			return "", false
		}
		in := strings.TrimSpace(q.scanner.Text())
		if parse == nil {
			return in, true
		}
		out, err := parse(in)
		if err == nil {
			return out, true
		}
		_, _ = fmt.Fprintln(q.w, invalid)
	}
}

// askEnum prompts for an optional enum value. A blank answer or end of
// input returns the zero value.
func askEnum[T ~string](q *questioner, question string, parse func(string) (T, error), invalid string) (T, bool) {
	var zero T
	for {
		_, _ = fmt.Fprint(q.w, question)
		if !q.scanner.Scan() {
			return zero, false
		}
		in := strings.TrimSpace(q.scanner.Text())
		if in == "" {
			return zero, true
		}
		v, err := parse(in)
		if err == nil {
			return v, true
		}
		_, _ = fmt.Fprintf(q.w, "%s: %s\n", invalid, in)
	}
}
