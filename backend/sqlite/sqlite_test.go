package sqlite

import (
	"context"
	"errors"
	"testing"

	"taskmaster/backend"
)

// mustNewBackend creates an in-memory backend and registers cleanup
func mustNewBackend(t *testing.T) (*Backend, context.Context) {
	t.Helper()
	b, err := New(":memory:")
	if err != nil {
		t.Fatalf("New(:memory:) error: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b, context.Background()
}

// helper to create a project and fail on error
func mustCreateProject(t *testing.T, b *Backend, ctx context.Context, name string) *backend.Project {
	t.Helper()
	p, err := b.CreateProject(ctx, backend.NewProject{Name: name})
	if err != nil {
		t.Fatalf("CreateProject error: %v", err)
	}
	return p
}

// helper to create a task and fail on error
func mustCreateTask(t *testing.T, b *Backend, ctx context.Context, projectID, title string) *backend.Task {
	t.Helper()
	created, err := b.CreateTask(ctx, backend.NewTask{ProjectID: projectID, Title: title})
	if err != nil {
		t.Fatalf("CreateTask error: %v", err)
	}
	return created
}

func strPtr(s string) *string { return &s }

// TestBackendImplementsInterface verifies the Backend type implements TaskStore.
func TestBackendImplementsInterface(t *testing.T) {
	var _ backend.TaskStore = (*Backend)(nil)
}

// TestCreateAndGetProject tests creating and retrieving a project.
func TestCreateAndGetProject(t *testing.T) {
	b, ctx := mustNewBackend(t)

	p := mustCreateProject(t, b, ctx, "Website")
	if p.ID == "" {
		t.Error("project.ID is empty")
	}

	got, err := b.GetProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProject error: %v", err)
	}
	if got.Name != "Website" {
		t.Errorf("got.Name = %q, want %q", got.Name, "Website")
	}

	projects, err := b.GetProjects(ctx)
	if err != nil {
		t.Fatalf("GetProjects error: %v", err)
	}
	if len(projects) != 1 {
		t.Errorf("GetProjects returned %d projects, want 1", len(projects))
	}
}

// TestGetProjectNotFound verifies missing projects report ErrNotFound.
func TestGetProjectNotFound(t *testing.T) {
	b, ctx := mustNewBackend(t)

	_, err := b.GetProject(ctx, "missing")
	if !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("GetProject error = %v, want ErrNotFound", err)
	}
}

// TestCreateTaskAssignsIDAndTimestamps tests the backend-owned fields of a new task.
func TestCreateTaskAssignsIDAndTimestamps(t *testing.T) {
	b, ctx := mustNewBackend(t)
	p := mustCreateProject(t, b, ctx, "Website")

	created := mustCreateTask(t, b, ctx, p.ID, "Write copy")
	if created.ID == "" {
		t.Error("created.ID is empty (should be auto-generated)")
	}
	if created.Created.IsZero() || created.Modified.IsZero() {
		t.Error("created timestamps should be set")
	}
	if !created.Created.Equal(created.Modified) {
		t.Errorf("createdAt %v and updatedAt %v should match on create", created.Created, created.Modified)
	}
	if created.Status != backend.StatusPending {
		t.Errorf("created.Status = %q, want %q", created.Status, backend.StatusPending)
	}
	if created.Priority != backend.PriorityMedium {
		t.Errorf("created.Priority = %q, want %q", created.Priority, backend.PriorityMedium)
	}

	got, err := b.GetTask(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetTask error: %v", err)
	}
	if got.Title != "Write copy" || got.ProjectID != p.ID {
		t.Errorf("GetTask = %+v, want title and project preserved", got)
	}
}

// TestCreateTaskUnknownProject verifies a task cannot be created in a missing project.
func TestCreateTaskUnknownProject(t *testing.T) {
	b, ctx := mustNewBackend(t)

	_, err := b.CreateTask(ctx, backend.NewTask{ProjectID: "nope", Title: "x"})
	if !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("CreateTask error = %v, want ErrNotFound", err)
	}
}

// TestGetTasksFiltersByProject tests listing tasks per project and across projects.
func TestGetTasksFiltersByProject(t *testing.T) {
	b, ctx := mustNewBackend(t)
	p1 := mustCreateProject(t, b, ctx, "One")
	p2 := mustCreateProject(t, b, ctx, "Two")

	mustCreateTask(t, b, ctx, p1.ID, "a")
	mustCreateTask(t, b, ctx, p1.ID, "b")
	mustCreateTask(t, b, ctx, p2.ID, "c")

	tests := []struct {
		projectID string
		want      int
	}{
		{p1.ID, 2},
		{p2.ID, 1},
		{"", 3},
		{"unknown", 0},
	}
	for _, tt := range tests {
		tasks, err := b.GetTasks(ctx, tt.projectID)
		if err != nil {
			t.Fatalf("GetTasks(%q) error: %v", tt.projectID, err)
		}
		if len(tasks) != tt.want {
			t.Errorf("GetTasks(%q) returned %d tasks, want %d", tt.projectID, len(tasks), tt.want)
		}
	}
}

// TestUpdateTaskMergesPatch verifies partial updates keep untouched fields and bump updatedAt.
func TestUpdateTaskMergesPatch(t *testing.T) {
	b, ctx := mustNewBackend(t)
	p := mustCreateProject(t, b, ctx, "Website")
	created, err := b.CreateTask(ctx, backend.NewTask{ProjectID: p.ID, Title: "Draft", Description: "first pass"})
	if err != nil {
		t.Fatalf("CreateTask error: %v", err)
	}

	status := backend.StatusCompleted
	updated, err := b.UpdateTask(ctx, created.ID, backend.TaskPatch{Title: strPtr("Final"), Status: &status})
	if err != nil {
		t.Fatalf("UpdateTask error: %v", err)
	}
	if updated.Title != "Final" || updated.Status != backend.StatusCompleted {
		t.Errorf("updated = %+v, want patched title and status", updated)
	}
	if updated.Description != "first pass" {
		t.Errorf("updated.Description = %q, want untouched %q", updated.Description, "first pass")
	}
	if !updated.Modified.After(created.Modified) {
		t.Errorf("updatedAt %v should be after %v", updated.Modified, created.Modified)
	}
	if !updated.Created.Equal(created.Created) {
		t.Errorf("createdAt changed from %v to %v", created.Created, updated.Created)
	}

	stored, err := b.GetTask(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetTask error: %v", err)
	}
	if stored.Title != "Final" {
		t.Errorf("stored.Title = %q, want %q", stored.Title, "Final")
	}
}

// TestUpdateTaskNotFound verifies updates of missing tasks report ErrNotFound.
func TestUpdateTaskNotFound(t *testing.T) {
	b, ctx := mustNewBackend(t)

	_, err := b.UpdateTask(ctx, "missing", backend.TaskPatch{Title: strPtr("y")})
	if !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("UpdateTask error = %v, want ErrNotFound", err)
	}
}

// TestDeleteTask tests deleting a task and deleting it again.
func TestDeleteTask(t *testing.T) {
	b, ctx := mustNewBackend(t)
	p := mustCreateProject(t, b, ctx, "Website")
	created := mustCreateTask(t, b, ctx, p.ID, "Temporary")

	if err := b.DeleteTask(ctx, created.ID); err != nil {
		t.Fatalf("DeleteTask error: %v", err)
	}
	if _, err := b.GetTask(ctx, created.ID); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("GetTask after delete error = %v, want ErrNotFound", err)
	}
	if err := b.DeleteTask(ctx, created.ID); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("second DeleteTask error = %v, want ErrNotFound", err)
	}
}

// TestProjectTasksCollection exercises the backend.Collection adapter over SQLite.
func TestProjectTasksCollection(t *testing.T) {
	b, ctx := mustNewBackend(t)
	p := mustCreateProject(t, b, ctx, "Website")
	coll := backend.ProjectTasks(b, p.ID)

	created, err := coll.Create(ctx, backend.NewTask{Title: "via collection"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if created.ProjectID != p.ID {
		t.Errorf("created.ProjectID = %q, want %q", created.ProjectID, p.ID)
	}

	items, err := coll.List(ctx)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(items) != 1 || items[0].ID != created.ID {
		t.Errorf("List = %+v, want the created task", items)
	}
}
