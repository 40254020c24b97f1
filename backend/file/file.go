// Package file implements a PostStore backend that keeps blog posts in a JSON file.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"taskmaster/backend"
)

// DefaultPageSize is the number of posts per page when none is requested
const DefaultPageSize = 5

// Config holds file backend configuration
type Config struct {
	FilePath string        // Path to the posts file
	Latency  time.Duration // Artificial delay applied to every call
	NoSeed   bool          // Start with an empty file instead of the demo posts
}

// Backend implements backend.PostStore for file-based storage
type Backend struct {
	config   Config
	filePath string // Resolved absolute path
	mu       sync.Mutex
	now      func() time.Time
}

// New creates a new file backend
func New(cfg Config) (*Backend, error) {
	filePath := cfg.FilePath
	if filePath == "" {
		filePath = "posts.json"
	}

	// Resolve relative paths
	if !filepath.IsAbs(filePath) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		filePath = filepath.Join(wd, filePath)
	}

	return &Backend{
		config:   cfg,
		filePath: filePath,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close closes the backend
func (b *Backend) Close() error {
	return nil
}

// Path returns the resolved posts file path
func (b *Backend) Path() string {
	return b.filePath
}

// delay simulates network latency, returning early if ctx is cancelled
func (b *Backend) delay(ctx context.Context) error {
	if b.config.Latency <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(b.config.Latency):
		return nil
	}
}

// GetPosts returns one page of posts ordered newest first
func (b *Backend) GetPosts(ctx context.Context, page, pageSize int) (*backend.PostPage, error) {
	if err := b.delay(ctx); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	posts, err := b.load()
	if err != nil {
		return nil, err
	}

	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].Created.After(posts[j].Created)
	})

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(posts) {
		start = len(posts)
	}
	if end > len(posts) {
		end = len(posts)
	}

	paged := make([]backend.Post, end-start)
	copy(paged, posts[start:end])
	return &backend.PostPage{
		Posts:    paged,
		Total:    len(posts),
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// GetPost returns a specific post
func (b *Backend) GetPost(ctx context.Context, id int) (*backend.Post, error) {
	if err := b.delay(ctx); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	posts, err := b.load()
	if err != nil {
		return nil, err
	}
	for _, p := range posts {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("post %d: %w", id, backend.ErrNotFound)
}

// CreatePost appends a post with the next free id
func (b *Backend) CreatePost(ctx context.Context, post backend.NewPost) (*backend.Post, error) {
	if err := b.delay(ctx); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	posts, err := b.load()
	if err != nil {
		return nil, err
	}

	maxID := 0
	for _, p := range posts {
		if p.ID > maxID {
			maxID = p.ID
		}
	}

	now := b.now()
	created := backend.Post{
		ID:       maxID + 1,
		Title:    post.Title,
		Content:  post.Content,
		Author:   post.Author,
		Created:  now,
		Modified: now,
	}
	if err := b.save(append(posts, created)); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdatePost merges the patch into an existing post
func (b *Backend) UpdatePost(ctx context.Context, id int, patch backend.PostPatch) (*backend.Post, error) {
	if err := b.delay(ctx); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	posts, err := b.load()
	if err != nil {
		return nil, err
	}

	for i, p := range posts {
		if p.ID != id {
			continue
		}
		updated := patch.Apply(p)
		updated.Modified = b.now()
		posts[i] = updated
		if err := b.save(posts); err != nil {
			return nil, err
		}
		return &updated, nil
	}
	return nil, fmt.Errorf("post %d: %w", id, backend.ErrNotFound)
}

// DeletePost removes a post. Deleting a missing post is not an error.
func (b *Backend) DeletePost(ctx context.Context, id int) error {
	if err := b.delay(ctx); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	posts, err := b.load()
	if err != nil {
		return err
	}

	kept := posts[:0]
	for _, p := range posts {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(posts) {
		return nil
	}
	return b.save(kept)
}

// load reads the posts file, seeding it on first use. Callers hold b.mu.
func (b *Backend) load() ([]backend.Post, error) {
	data, err := os.ReadFile(b.filePath)
	if os.IsNotExist(err) {
		var posts []backend.Post
		if !b.config.NoSeed {
			posts = seedPosts(b.now())
		}
		if err := b.save(posts); err != nil {
			return nil, err
		}
		return posts, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read posts file: %w", err)
	}

	var posts []backend.Post
	if len(data) == 0 {
		return posts, nil
	}
	if err := json.Unmarshal(data, &posts); err != nil {
		return nil, fmt.Errorf("invalid posts file %s: %w", b.filePath, err)
	}
	return posts, nil
}

// save writes posts atomically via a temporary file. Callers hold b.mu.
func (b *Backend) save(posts []backend.Post) error {
	if posts == nil {
		posts = []backend.Post{}
	}

	dir := filepath.Dir(b.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create posts directory: %w", err)
	}

	data, err := json.MarshalIndent(posts, "", "  ")
	if err != nil {
		return err
	}

	tmp := b.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write posts file: %w", err)
	}
	return os.Rename(tmp, b.filePath)
}

// Verify interface compliance at compile time
var _ backend.PostStore = (*Backend)(nil)
