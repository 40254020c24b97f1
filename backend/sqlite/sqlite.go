// Package sqlite implements backend.TaskStore on an SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
	"taskmaster/backend"
)

// Backend implements backend.TaskStore using SQLite
type Backend struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new SQLite backend and initializes the database schema
func New(path string) (*Backend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases shared across calls
	db.SetMaxOpenConns(1)

	b := &Backend{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := b.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return b, nil
}

// initSchema creates the database tables if they don't exist
func (b *Backend) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			priority TEXT NOT NULL DEFAULT 'medium',
			created TEXT NOT NULL,
			modified TEXT NOT NULL,
			FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_tasks_project_id ON tasks(project_id);
		CREATE INDEX IF NOT EXISTS idx_tasks_modified ON tasks(modified);
	`

	// Enable foreign keys
	if _, err := b.db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return err
	}

	_, err := b.db.Exec(schema)
	return err
}

// GetProjects returns all projects ordered by name
func (b *Backend) GetProjects(ctx context.Context) ([]backend.Project, error) {
	rows, err := b.db.QueryContext(ctx, "SELECT id, name, description FROM projects ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	projects := []backend.Project{}
	for rows.Next() {
		var p backend.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// GetProject returns a specific project by ID
func (b *Backend) GetProject(ctx context.Context, id string) (*backend.Project, error) {
	var p backend.Project
	err := b.db.QueryRowContext(ctx,
		"SELECT id, name, description FROM projects WHERE id = ?", id,
	).Scan(&p.ID, &p.Name, &p.Description)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, backend.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProject creates a new project
func (b *Backend) CreateProject(ctx context.Context, project backend.NewProject) (*backend.Project, error) {
	id := uuid.New().String()
	_, err := b.db.ExecContext(ctx,
		"INSERT INTO projects (id, name, description) VALUES (?, ?, ?)",
		id, project.Name, project.Description,
	)
	if err != nil {
		return nil, err
	}
	return &backend.Project{ID: id, Name: project.Name, Description: project.Description}, nil
}

const taskColumns = "id, project_id, title, description, status, priority, created, modified"

// GetTasks returns the tasks of a project, or of every project when projectID is empty
func (b *Backend) GetTasks(ctx context.Context, projectID string) ([]backend.Task, error) {
	query := "SELECT " + taskColumns + " FROM tasks"
	var args []any
	if projectID != "" {
		query += " WHERE project_id = ?"
		args = append(args, projectID)
	}
	query += " ORDER BY created, id"

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	tasks := []backend.Task{}
	for rows.Next() {
		t, err := scanTaskFrom(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// GetTask returns a specific task
func (b *Backend) GetTask(ctx context.Context, id string) (*backend.Task, error) {
	row := b.db.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)

	t, err := scanTaskFrom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, backend.ErrNotFound)
	}
	return t, err
}

// scanner is an interface satisfied by both *sql.Rows and *sql.Row
type scanner interface {
	Scan(dest ...any) error
}

// scanTaskFrom scans a task from any scanner (Rows or Row)
func scanTaskFrom(s scanner) (*backend.Task, error) {
	var t backend.Task
	var createdStr, modifiedStr string

	err := s.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.Priority, &createdStr, &modifiedStr)
	if err != nil {
		return nil, err
	}

	t.Created, _ = time.Parse(time.RFC3339Nano, createdStr)
	t.Modified, _ = time.Parse(time.RFC3339Nano, modifiedStr)
	return &t, nil
}

// CreateTask adds a new task to its project
func (b *Backend) CreateTask(ctx context.Context, task backend.NewTask) (*backend.Task, error) {
	task = task.WithDefaults()
	if _, err := b.GetProject(ctx, task.ProjectID); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	now := b.now()
	nowStr := now.Format(time.RFC3339Nano)

	_, err := b.db.ExecContext(ctx,
		"INSERT INTO tasks ("+taskColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		id, task.ProjectID, task.Title, task.Description, task.Status, task.Priority, nowStr, nowStr,
	)
	if err != nil {
		return nil, err
	}

	return &backend.Task{
		ID:          id,
		ProjectID:   task.ProjectID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		Priority:    task.Priority,
		Created:     now,
		Modified:    now,
	}, nil
}

// UpdateTask merges the patch into an existing task and stamps its modification time
func (b *Backend) UpdateTask(ctx context.Context, id string, patch backend.TaskPatch) (*backend.Task, error) {
	current, err := b.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := patch.Apply(*current)
	updated.Modified = b.now()
	if !updated.Modified.After(current.Modified) {
		// Keep updatedAt strictly increasing so recency ordering is total
		updated.Modified = current.Modified.Add(time.Nanosecond)
	}

	_, err = b.db.ExecContext(ctx,
		`UPDATE tasks SET project_id = ?, title = ?, description = ?, status = ?, priority = ?, modified = ?
		 WHERE id = ?`,
		updated.ProjectID, updated.Title, updated.Description, updated.Status, updated.Priority,
		updated.Modified.Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteTask removes a task
func (b *Backend) DeleteTask(ctx context.Context, id string) error {
	res, err := b.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("task %s: %w", id, backend.ErrNotFound)
	}
	return nil
}

// Close closes the database connection
func (b *Backend) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

// Verify interface compliance at compile time
var _ backend.TaskStore = (*Backend)(nil)
