package utils

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorWithSuggestionFormatting(t *testing.T) {
	base := errors.New("something went wrong")
	err := &ErrorWithSuggestion{Err: base, Suggestion: "Try doing X"}

	var _ error = err
	if got := err.Error(); got != "something went wrong\n\nSuggestion: Try doing X" {
		t.Errorf("Error() = %q", got)
	}
	if err.GetSuggestion() != "Try doing X" {
		t.Errorf("GetSuggestion() = %q", err.GetSuggestion())
	}
	if !errors.Is(err, base) {
		t.Error("errors.Is should see the wrapped error")
	}
}

func TestWrapWithSuggestion(t *testing.T) {
	base := errors.New("disk full")
	err := WrapWithSuggestion(base, "Free some space")

	var ews *ErrorWithSuggestion
	if !errors.As(err, &ews) {
		t.Fatalf("WrapWithSuggestion should return *ErrorWithSuggestion, got %T", err)
	}
	if ews.Err != base || ews.Suggestion != "Free some space" {
		t.Errorf("wrapped = %+v", ews)
	}
}

func TestDomainErrors(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		wantMessage    string
		wantSuggestion string
	}{
		{"task not found", ErrTaskNotFound("abc"), "task not found: abc", "taskmaster task list"},
		{"project not found", ErrProjectNotFound("Home"), "project not found: Home", "taskmaster project add Home"},
		{"no projects", ErrNoProjectsAvailable(), "no projects available", "taskmaster project add"},
		{"post not found", ErrPostNotFound("7"), "post not found: 7", "taskmaster post list"},
		{"empty title", ErrEmptyTitle("task"), "task title is required", "taskmaster task add"},
		{"backend not configured", ErrBackendNotConfigured("rest"), "backend not configured: rest", "rest configuration"},
		{"invalid priority", ErrInvalidPriority("urgent", []string{"low", "high"}), "invalid priority: urgent", "low, high"},
		{"invalid status", ErrInvalidStatus("blocked", []string{"pending", "completed"}), "invalid status: blocked", "pending, completed"},
		{"credentials", ErrCredentialsNotFound("rest", "alice"), "credentials not found for rest user alice", "TASKMASTER_REST_TOKEN"},
		{"auth failed", ErrAuthenticationFailed("rest"), "authentication failed for rest", "credentials"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ews *ErrorWithSuggestion
			if !errors.As(tt.err, &ews) {
				t.Fatalf("expected *ErrorWithSuggestion, got %T", tt.err)
			}
			if !strings.Contains(ews.Err.Error(), tt.wantMessage) {
				t.Errorf("message = %q, want %q", ews.Err.Error(), tt.wantMessage)
			}
			if !strings.Contains(ews.Suggestion, tt.wantSuggestion) {
				t.Errorf("suggestion = %q, want it to contain %q", ews.Suggestion, tt.wantSuggestion)
			}
		})
	}
}

func TestErrBackendOfflineSuggestions(t *testing.T) {
	tests := []struct {
		reason string
		want   string
	}{
		{"dial tcp: lookup api: no such host", "DNS"},
		{"dial tcp 127.0.0.1:3001: connect: connection refused", "server is running"},
		{"context deadline exceeded (Client.Timeout exceeded)", "slow or unreachable"},
		{"unexpected EOF", "internet connection"},
	}
	for _, tt := range tests {
		err := ErrBackendOffline("rest", tt.reason)
		if !strings.Contains(err.Error(), "backend rest is offline") {
			t.Errorf("Error() = %q", err.Error())
		}
		if !strings.Contains(err.(*ErrorWithSuggestion).Suggestion, tt.want) {
			t.Errorf("reason %q: suggestion = %q, want %q", tt.reason, err.(*ErrorWithSuggestion).Suggestion, tt.want)
		}
	}
}

func TestNotFoundErrorsMatchSentinel(t *testing.T) {
	for _, err := range []error{ErrTaskNotFound("t1"), ErrProjectNotFound("Home"), ErrPostNotFound("3")} {
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("%q should match ErrNotFound", err)
		}
	}
	if errors.Is(ErrNoProjectsAvailable(), ErrNotFound) {
		t.Error("ErrNoProjectsAvailable should not match ErrNotFound")
	}
}
