package file_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"taskmaster/backend"
	"taskmaster/backend/file"
)

// =============================================================================
// Test Helpers
// =============================================================================

// newBackend creates a file backend over a fresh temporary path
func newBackend(t *testing.T, cfg file.Config) *file.Backend {
	t.Helper()
	if cfg.FilePath == "" {
		cfg.FilePath = filepath.Join(t.TempDir(), "posts.json")
	}
	be, err := file.New(cfg)
	if err != nil {
		t.Fatalf("failed to create file backend: %v", err)
	}
	t.Cleanup(func() { _ = be.Close() })
	return be
}

func strPtr(s string) *string { return &s }

// =============================================================================
// Seeding and paging
// =============================================================================

func TestFileBackendSeedsDemoPosts(t *testing.T) {
	be := newBackend(t, file.Config{})
	ctx := context.Background()

	page, err := be.GetPosts(ctx, 1, 5)
	if err != nil {
		t.Fatalf("GetPosts error: %v", err)
	}
	if page.Total != 30 {
		t.Errorf("page.Total = %d, want 30", page.Total)
	}
	if len(page.Posts) != 5 {
		t.Fatalf("len(page.Posts) = %d, want 5", len(page.Posts))
	}
	if page.Posts[0].Title != "React Query and Data Visualization" {
		t.Errorf("newest post = %q, want the most recently seeded one", page.Posts[0].Title)
	}
	for i := 1; i < len(page.Posts); i++ {
		if page.Posts[i].Created.After(page.Posts[i-1].Created) {
			t.Errorf("posts not ordered newest first at index %d", i)
		}
	}

	if _, err := os.Stat(be.Path()); err != nil {
		t.Errorf("expected posts file to be written: %v", err)
	}
}

func TestFileBackendPaging(t *testing.T) {
	be := newBackend(t, file.Config{})
	ctx := context.Background()

	tests := []struct {
		name     string
		page     int
		pageSize int
		wantLen  int
		wantPage int
	}{
		{"first page", 1, 5, 5, 1},
		{"last full page", 6, 5, 5, 6},
		{"past the end", 7, 5, 0, 7},
		{"defaults", 0, 0, 5, 1},
		{"large page", 1, 100, 30, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := be.GetPosts(ctx, tt.page, tt.pageSize)
			if err != nil {
				t.Fatalf("GetPosts error: %v", err)
			}
			if len(page.Posts) != tt.wantLen {
				t.Errorf("len(Posts) = %d, want %d", len(page.Posts), tt.wantLen)
			}
			if page.Page != tt.wantPage {
				t.Errorf("Page = %d, want %d", page.Page, tt.wantPage)
			}
		})
	}
}

// =============================================================================
// CRUD
// =============================================================================

func TestFileBackendCreateUsesNextID(t *testing.T) {
	be := newBackend(t, file.Config{})
	ctx := context.Background()

	created, err := be.CreatePost(ctx, backend.NewPost{Title: "Hello", Content: "World"})
	if err != nil {
		t.Fatalf("CreatePost error: %v", err)
	}
	if created.ID != 31 {
		t.Errorf("created.ID = %d, want 31", created.ID)
	}
	if created.Created.IsZero() {
		t.Error("created.Created should be set")
	}

	got, err := be.GetPost(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetPost error: %v", err)
	}
	if got.Title != "Hello" {
		t.Errorf("got.Title = %q, want %q", got.Title, "Hello")
	}
}

func TestFileBackendEmptyFileStartsAtOne(t *testing.T) {
	be := newBackend(t, file.Config{NoSeed: true})
	ctx := context.Background()

	created, err := be.CreatePost(ctx, backend.NewPost{Title: "First"})
	if err != nil {
		t.Fatalf("CreatePost error: %v", err)
	}
	if created.ID != 1 {
		t.Errorf("created.ID = %d, want 1", created.ID)
	}
}

func TestFileBackendUpdatePost(t *testing.T) {
	be := newBackend(t, file.Config{})
	ctx := context.Background()

	updated, err := be.UpdatePost(ctx, 3, backend.PostPatch{Title: strPtr("Mutations, revisited")})
	if err != nil {
		t.Fatalf("UpdatePost error: %v", err)
	}
	if updated.Title != "Mutations, revisited" {
		t.Errorf("updated.Title = %q", updated.Title)
	}
	if updated.Content == "" {
		t.Error("updated.Content should be kept from the stored post")
	}
	if !updated.Modified.After(updated.Created) {
		t.Errorf("updatedAt %v should be after createdAt %v", updated.Modified, updated.Created)
	}

	_, err = be.UpdatePost(ctx, 999, backend.PostPatch{Title: strPtr("x")})
	if !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("UpdatePost(999) error = %v, want ErrNotFound", err)
	}
}

func TestFileBackendGetMissingPost(t *testing.T) {
	be := newBackend(t, file.Config{})

	_, err := be.GetPost(context.Background(), 999)
	if !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("GetPost(999) error = %v, want ErrNotFound", err)
	}
}

func TestFileBackendDeletePost(t *testing.T) {
	be := newBackend(t, file.Config{})
	ctx := context.Background()

	if err := be.DeletePost(ctx, 1); err != nil {
		t.Fatalf("DeletePost error: %v", err)
	}
	if _, err := be.GetPost(ctx, 1); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("GetPost after delete error = %v, want ErrNotFound", err)
	}
	// Deleting a missing post succeeds
	if err := be.DeletePost(ctx, 1); err != nil {
		t.Errorf("second DeletePost error = %v, want nil", err)
	}

	page, err := be.GetPosts(ctx, 1, 5)
	if err != nil {
		t.Fatalf("GetPosts error: %v", err)
	}
	if page.Total != 29 {
		t.Errorf("page.Total = %d, want 29", page.Total)
	}
}

func TestFileBackendPersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.json")
	ctx := context.Background()

	first := newBackend(t, file.Config{FilePath: path, NoSeed: true})
	if _, err := first.CreatePost(ctx, backend.NewPost{Title: "Kept"}); err != nil {
		t.Fatalf("CreatePost error: %v", err)
	}

	second := newBackend(t, file.Config{FilePath: path})
	got, err := second.GetPost(ctx, 1)
	if err != nil {
		t.Fatalf("GetPost error: %v", err)
	}
	if got.Title != "Kept" {
		t.Errorf("got.Title = %q, want %q", got.Title, "Kept")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("posts file is not a JSON array: %v", err)
	}
	if _, ok := raw[0]["createdAt"]; !ok {
		t.Error("expected createdAt key in the stored post")
	}
}

func TestFileBackendInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	be := newBackend(t, file.Config{FilePath: path})

	if _, err := be.GetPosts(context.Background(), 1, 5); err == nil {
		t.Error("expected an error for a corrupt posts file")
	}
}

func TestFileBackendLatencyHonoursContext(t *testing.T) {
	be := newBackend(t, file.Config{Latency: time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := be.GetPosts(ctx, 1, 5)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("GetPosts error = %v, want context.DeadlineExceeded", err)
	}
}

func TestPostsCollectionParsesIDs(t *testing.T) {
	be := newBackend(t, file.Config{})
	coll := backend.Posts(be, 1, 5)
	ctx := context.Background()

	got, err := coll.Get(ctx, "2")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.ID != 2 {
		t.Errorf("got.ID = %d, want 2", got.ID)
	}
	if _, err := coll.Get(ctx, "abc"); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("Get(abc) error = %v, want ErrNotFound", err)
	}
}
