package prompt

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"taskmaster/backend"
)

func sampleTasks() []backend.Task {
	return []backend.Task{
		{ID: "1", Title: "Buy groceries", Status: backend.StatusPending, Priority: backend.PriorityLow},
		{ID: "2", Title: "Buy birthday gift", Status: backend.StatusInProgress, Priority: backend.PriorityHigh},
		{ID: "3", Title: "Write report", Status: backend.StatusCompleted, Priority: backend.PriorityMedium},
	}
}

func TestTaskSelectorFilterThenSelect(t *testing.T) {
	var out bytes.Buffer
	s := &TaskSelector{
		Tasks:  sampleTasks(),
		Prompt: "Select a task:",
		Reader: strings.NewReader("buy\n2\n"),
		Writer: &out,
	}

	got, err := s.Run()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got.ID != "2" {
		t.Errorf("selected %q, want 2", got.ID)
	}
	if !strings.Contains(out.String(), "Buy birthday gift [in_progress, high]") {
		t.Errorf("output missing task line: %q", out.String())
	}
	if strings.Contains(out.String(), "Write report") {
		t.Error("filtered out task should not be listed")
	}
}

func TestTaskSelectorFilterNarrowsToOne(t *testing.T) {
	var out bytes.Buffer
	s := &TaskSelector{Tasks: sampleTasks(), Reader: strings.NewReader("report\n"), Writer: &out}

	got, err := s.Run()
	if err != nil || got.ID != "3" {
		t.Fatalf("Run() = %v, %v", got, err)
	}
	if !strings.Contains(out.String(), "Auto-selected: Write report") {
		t.Errorf("output = %q", out.String())
	}
}

func TestTaskSelectorInitialFilter(t *testing.T) {
	tests := []struct {
		name     string
		filter   string
		noPrompt bool
		input    string
		wantID   string
		wantErr  error
	}{
		{"unique match skips prompt", "groceries", true, "", "1", nil},
		{"ambiguous in no-prompt mode", "buy", true, "", "", ErrNoPromptMode},
		{"ambiguous prompts for choice", "buy", false, "1\n", "1", nil},
		{"no match", "holiday", false, "", "", ErrNoMatches},
		{"cancel", "buy", false, "0\n", "", ErrSelectionCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &TaskSelector{Tasks: sampleTasks(), Filter: tt.filter, NoPrompt: tt.noPrompt, Reader: strings.NewReader(tt.input)}
			got, err := s.Run()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Run() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || got.ID != tt.wantID {
				t.Fatalf("Run() = %v, %v; want %s", got, err, tt.wantID)
			}
		})
	}
}

func TestTaskSelectorInvalidSelection(t *testing.T) {
	for _, input := range []string{"\nabc\n", "\n9\n"} {
		s := &TaskSelector{Tasks: sampleTasks(), Reader: strings.NewReader(input)}
		if _, err := s.Run(); err == nil {
			t.Errorf("input %q: expected error", input)
		}
	}
}

func TestTaskSelectorEdgeCases(t *testing.T) {
	if _, err := (&TaskSelector{}).Run(); !errors.Is(err, ErrNoTasks) {
		t.Errorf("empty list error = %v", err)
	}

	single := &TaskSelector{Tasks: sampleTasks()[:1], NoPrompt: true}
	got, err := single.Run()
	if err != nil || got.ID != "1" {
		t.Errorf("single task = %v, %v", got, err)
	}

	eof := &TaskSelector{Tasks: sampleTasks(), Reader: strings.NewReader("")}
	if _, err := eof.Run(); !errors.Is(err, ErrSelectionCancelled) {
		t.Errorf("EOF error = %v", err)
	}
}

func TestFilterByTitle(t *testing.T) {
	if n := len(FilterByTitle(sampleTasks(), "BUY")); n != 2 {
		t.Errorf("FilterByTitle(BUY) = %d tasks, want 2", n)
	}
	if n := len(FilterByTitle(sampleTasks(), "")); n != 3 {
		t.Errorf("empty filter = %d tasks, want 3", n)
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input    string
		noPrompt bool
		want     bool
	}{
		{"y\n", false, true},
		{"YES\n", false, true},
		{"n\n", false, false},
		{"\n", false, false},
		{"", false, false},
		{"maybe\ny\n", false, true},
		{"", true, true},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		got := Confirm("Delete task?", strings.NewReader(tt.input), &out, tt.noPrompt)
		if got != tt.want {
			t.Errorf("Confirm(%q, noPrompt=%v) = %v, want %v", tt.input, tt.noPrompt, got, tt.want)
		}
		if !tt.noPrompt && !strings.Contains(out.String(), "Delete task? [y/N]") {
			t.Errorf("prompt not shown: %q", out.String())
		}
	}
}

func TestInteractiveAdder(t *testing.T) {
	var out bytes.Buffer
	a := &InteractiveAdder{
		Reader: strings.NewReader("\nShip release\nTag and publish\nurgent\nhigh\ndone\n"),
		Writer: &out,
	}

	fields, err := a.Run()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if fields.Title != "Ship release" || fields.Description != "Tag and publish" {
		t.Errorf("fields = %+v", fields)
	}
	if fields.Priority != backend.PriorityHigh || fields.Status != backend.StatusCompleted {
		t.Errorf("priority/status = %s/%s", fields.Priority, fields.Status)
	}
	if !strings.Contains(out.String(), "Title cannot be empty") || !strings.Contains(out.String(), "Invalid priority: urgent") {
		t.Errorf("validation messages missing: %q", out.String())
	}

	draft := fields.NewTask("p1")
	if draft.ProjectID != "p1" || draft.Title != "Ship release" {
		t.Errorf("NewTask() = %+v", draft)
	}
}

func TestInteractiveAdderDefaults(t *testing.T) {
	fields, err := (&InteractiveAdder{Reader: strings.NewReader("Quick one\n\n\n\n")}).Run()
	if err != nil {
		t.Fatal(err)
	}
	draft := fields.NewTask("p1").WithDefaults()
	if draft.Priority != backend.PriorityMedium || draft.Status != backend.StatusPending {
		t.Errorf("defaults = %s/%s", draft.Priority, draft.Status)
	}
}

func TestInteractiveAdderNoPrompt(t *testing.T) {
	if _, err := (&InteractiveAdder{NoPrompt: true}).Run(); !errors.Is(err, ErrNoPromptMode) {
		t.Errorf("error = %v, want ErrNoPromptMode", err)
	}
	if _, err := (&InteractiveAdder{Reader: strings.NewReader("")}).Run(); err == nil {
		t.Error("EOF before title should fail")
	}
}

func TestIsInteractiveRejectsNonFiles(t *testing.T) {
	if IsInteractive(strings.NewReader("")) {
		t.Error("strings.Reader is not a terminal")
	}
}
