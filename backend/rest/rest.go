// Package rest provides a TaskStore backed by a json-server style HTTP API.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"taskmaster/backend"
	"taskmaster/internal/ratelimit"
	"taskmaster/internal/utils"
)

const (
	// DefaultBaseURL is where the demo API listens
	DefaultBaseURL = "http://localhost:3001"
	// DefaultTimeout bounds each HTTP attempt
	DefaultTimeout = 30 * time.Second
)

// ErrUnauthorized is returned when the API rejects the configured token.
var ErrUnauthorized = errors.New("unauthorized")

// Config holds REST connection settings
type Config struct {
	BaseURL    string
	APIToken   string
	Username   string // Account identifier for keyring lookup
	UseKeyring bool
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
	Transport  http.RoundTripper // Override for testing
}

// ConfigFromEnv creates a Config from environment variables
func ConfigFromEnv() Config {
	return Config{
		BaseURL:  os.Getenv("TASKMASTER_REST_URL"),
		APIToken: os.Getenv("TASKMASTER_REST_TOKEN"),
	}
}

// Backend implements backend.TaskStore over HTTP
type Backend struct {
	client  *ratelimit.Client
	baseURL string
	now     func() time.Time
}

// New creates a new REST backend
func New(cfg Config) (*Backend, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid rest base url %q: %w", cfg.BaseURL, err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	header := http.Header{}
	header.Set("Accept", "application/json")
	if cfg.APIToken != "" {
		header.Set("Authorization", "Bearer "+cfg.APIToken)
	}

	return &Backend{
		client: ratelimit.NewClient(ratelimit.Config{
			MaxRetries:   cfg.MaxRetries,
			BaseDelay:    cfg.BaseDelay,
			EnableJitter: true,
			Backend:      "rest",
			Header:       header,
			Timeout:      timeout,
			Transport:    cfg.Transport,
		}),
		baseURL: baseURL,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close releases idle connections
func (b *Backend) Close() error {
	b.client.CloseIdleConnections()
	return nil
}

// do sends a JSON request and decodes a JSON response into out when out is non-nil.
// what names the resource in not found errors.
func (b *Backend) do(ctx context.Context, method, path, what string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	utils.Debugf("rest: %s %s", method, path)
	resp, err := b.client.Do(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", what, backend.ErrNotFound)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("rest %s %s: %w", method, path, ErrUnauthorized)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("rest %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("rest %s %s: decode response: %w", method, path, err)
	}
	return nil
}

// GetProjects returns all projects
func (b *Backend) GetProjects(ctx context.Context) ([]backend.Project, error) {
	projects := []backend.Project{}
	if err := b.do(ctx, http.MethodGet, "/projects", "projects", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// GetProject returns a specific project
func (b *Backend) GetProject(ctx context.Context, id string) (*backend.Project, error) {
	var p backend.Project
	if err := b.do(ctx, http.MethodGet, "/projects/"+url.PathEscape(id), "project "+id, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProject creates a new project
func (b *Backend) CreateProject(ctx context.Context, project backend.NewProject) (*backend.Project, error) {
	var p backend.Project
	if err := b.do(ctx, http.MethodPost, "/projects", "projects", project, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetTasks returns the tasks of a project, or all tasks when projectID is empty
func (b *Backend) GetTasks(ctx context.Context, projectID string) ([]backend.Task, error) {
	path := "/tasks"
	if projectID != "" {
		path += "?" + url.Values{"projectId": {projectID}}.Encode()
	}
	tasks := []backend.Task{}
	if err := b.do(ctx, http.MethodGet, path, "tasks", nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// GetTask returns a specific task
func (b *Backend) GetTask(ctx context.Context, id string) (*backend.Task, error) {
	var t backend.Task
	if err := b.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(id), "task "+id, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// taskCreate is the create body. Timestamps are sent for servers that store them verbatim.
type taskCreate struct {
	backend.NewTask
	Created  time.Time `json:"createdAt"`
	Modified time.Time `json:"updatedAt"`
}

// CreateTask creates a task
func (b *Backend) CreateTask(ctx context.Context, task backend.NewTask) (*backend.Task, error) {
	now := b.now()
	body := taskCreate{NewTask: task.WithDefaults(), Created: now, Modified: now}

	var t backend.Task
	if err := b.do(ctx, http.MethodPost, "/tasks", "tasks", body, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// taskUpdate is the PATCH body
type taskUpdate struct {
	backend.TaskPatch
	Modified time.Time `json:"updatedAt"`
}

// UpdateTask sends a partial update
func (b *Backend) UpdateTask(ctx context.Context, id string, patch backend.TaskPatch) (*backend.Task, error) {
	body := taskUpdate{TaskPatch: patch, Modified: b.now()}

	var t backend.Task
	if err := b.do(ctx, http.MethodPatch, "/tasks/"+url.PathEscape(id), "task "+id, body, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// DeleteTask removes a task
func (b *Backend) DeleteTask(ctx context.Context, id string) error {
	return b.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(id), "task "+id, nil, nil)
}

// Verify interface compliance at compile time
var _ backend.TaskStore = (*Backend)(nil)
