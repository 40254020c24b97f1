package backend

import (
	"context"
	"fmt"
	"strconv"
)

// Collection is the CRUD surface of one remote collection of entities.
// E is the stored entity, N the fields supplied on create and P a partial update.
type Collection[E Entity, N any, P any] interface {
	List(ctx context.Context) ([]E, error)
	Get(ctx context.Context, id string) (E, error)
	Create(ctx context.Context, draft N) (E, error)
	Update(ctx context.Context, id string, patch P) (E, error)
	Delete(ctx context.Context, id string) error
}

// ProjectTasks returns the collection of tasks belonging to one project.
func ProjectTasks(store TaskStore, projectID string) Collection[Task, NewTask, TaskPatch] {
	return &projectTasks{store: store, projectID: projectID}
}

type projectTasks struct {
	store     TaskStore
	projectID string
}

func (c *projectTasks) List(ctx context.Context) ([]Task, error) {
	return c.store.GetTasks(ctx, c.projectID)
}

func (c *projectTasks) Get(ctx context.Context, id string) (Task, error) {
	t, err := c.store.GetTask(ctx, id)
	if err != nil {
		return Task{}, err
	}
	return *t, nil
}

func (c *projectTasks) Create(ctx context.Context, draft NewTask) (Task, error) {
	if draft.ProjectID == "" {
		draft.ProjectID = c.projectID
	}
	t, err := c.store.CreateTask(ctx, draft)
	if err != nil {
		return Task{}, err
	}
	return *t, nil
}

func (c *projectTasks) Update(ctx context.Context, id string, patch TaskPatch) (Task, error) {
	t, err := c.store.UpdateTask(ctx, id, patch)
	if err != nil {
		return Task{}, err
	}
	return *t, nil
}

func (c *projectTasks) Delete(ctx context.Context, id string) error {
	return c.store.DeleteTask(ctx, id)
}

// Posts returns the collection of posts on the given page (1-based).
func Posts(store PostStore, page, pageSize int) Collection[Post, NewPost, PostPatch] {
	return &postCollection{store: store, page: page, pageSize: pageSize}
}

type postCollection struct {
	store    PostStore
	page     int
	pageSize int
}

// ParsePostID converts an entity id into a post id.
func ParsePostID(id string) (int, error) {
	n, err := strconv.Atoi(id)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("post %q: %w", id, ErrNotFound)
	}
	return n, nil
}

func (c *postCollection) List(ctx context.Context) ([]Post, error) {
	page, err := c.store.GetPosts(ctx, c.page, c.pageSize)
	if err != nil {
		return nil, err
	}
	return page.Posts, nil
}

func (c *postCollection) Get(ctx context.Context, id string) (Post, error) {
	n, err := ParsePostID(id)
	if err != nil {
		return Post{}, err
	}
	p, err := c.store.GetPost(ctx, n)
	if err != nil {
		return Post{}, err
	}
	return *p, nil
}

func (c *postCollection) Create(ctx context.Context, draft NewPost) (Post, error) {
	p, err := c.store.CreatePost(ctx, draft)
	if err != nil {
		return Post{}, err
	}
	return *p, nil
}

func (c *postCollection) Update(ctx context.Context, id string, patch PostPatch) (Post, error) {
	n, err := ParsePostID(id)
	if err != nil {
		return Post{}, err
	}
	p, err := c.store.UpdatePost(ctx, n, patch)
	if err != nil {
		return Post{}, err
	}
	return *p, nil
}

func (c *postCollection) Delete(ctx context.Context, id string) error {
	n, err := ParsePostID(id)
	if err != nil {
		return err
	}
	return c.store.DeletePost(ctx, n)
}

// Verify interface compliance at compile time
var _ Collection[Task, NewTask, TaskPatch] = (*projectTasks)(nil)
var _ Collection[Post, NewPost, PostPatch] = (*postCollection)(nil)
