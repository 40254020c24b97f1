package backend

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by stores when the requested record does not exist.
var ErrNotFound = errors.New("not found")

// Entity is a uniquely identified record owned by a backend.
type Entity interface {
	EntityID() string
	ModifiedAt() time.Time
}

// Project groups tasks
type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// NewProject holds the fields supplied when creating a project
type NewProject struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// TaskStatus represents the progress of a task
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
)

// Next returns the status that follows s when cycling through the badge states.
func (s TaskStatus) Next() TaskStatus {
	switch s {
	case StatusPending:
		return StatusInProgress
	case StatusInProgress:
		return StatusCompleted
	default:
		return StatusPending
	}
}

// TaskPriority represents how urgent a task is
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// Next returns the priority that follows p when cycling.
func (p TaskPriority) Next() TaskPriority {
	switch p {
	case PriorityLow:
		return PriorityMedium
	case PriorityMedium:
		return PriorityHigh
	default:
		return PriorityLow
	}
}

// ValidStatuses lists the accepted task statuses in display order.
var ValidStatuses = []TaskStatus{StatusPending, StatusInProgress, StatusCompleted}

// ValidPriorities lists the accepted task priorities in display order.
var ValidPriorities = []TaskPriority{PriorityLow, PriorityMedium, PriorityHigh}

// Task represents a unit of work inside a project
type Task struct {
	ID          string       `json:"id"`
	ProjectID   string       `json:"projectId"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	Created     time.Time    `json:"createdAt"`
	Modified    time.Time    `json:"updatedAt"`
}

// EntityID implements Entity.
func (t Task) EntityID() string { return t.ID }

// ModifiedAt implements Entity. Tasks that were never updated report their creation time.
func (t Task) ModifiedAt() time.Time {
	if t.Modified.IsZero() {
		return t.Created
	}
	return t.Modified
}

// NewTask holds the fields supplied when creating a task
type NewTask struct {
	ProjectID   string       `json:"projectId"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
}

// WithDefaults fills in the status and priority the backends assume when omitted.
func (n NewTask) WithDefaults() NewTask {
	if n.Status == "" {
		n.Status = StatusPending
	}
	if n.Priority == "" {
		n.Priority = PriorityMedium
	}
	return n
}

// Placeholder builds the provisional task shown while a create is in flight.
func (n NewTask) Placeholder() Task {
	n = n.WithDefaults()
	now := time.Now().UTC()
	return Task{
		ID:          ProvisionalID(),
		ProjectID:   n.ProjectID,
		Title:       n.Title,
		Description: n.Description,
		Status:      n.Status,
		Priority:    n.Priority,
		Created:     now,
		Modified:    now,
	}
}

// TaskPatch is a partial update; nil fields are left unchanged
type TaskPatch struct {
	ProjectID   *string       `json:"projectId,omitempty"`
	Title       *string       `json:"title,omitempty"`
	Description *string       `json:"description,omitempty"`
	Status      *TaskStatus   `json:"status,omitempty"`
	Priority    *TaskPriority `json:"priority,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.ProjectID == nil && p.Title == nil && p.Description == nil && p.Status == nil && p.Priority == nil
}

// Apply returns a copy of t with the patch fields overwritten.
func (p TaskPatch) Apply(t Task) Task {
	if p.ProjectID != nil {
		t.ProjectID = *p.ProjectID
	}
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	return t
}

// Post represents a blog post
type Post struct {
	ID       int       `json:"id"`
	Title    string    `json:"title"`
	Content  string    `json:"content"`
	Author   string    `json:"author,omitempty"`
	Created  time.Time `json:"createdAt"`
	Modified time.Time `json:"updatedAt"`
}

// EntityID implements Entity.
func (p Post) EntityID() string { return strconv.Itoa(p.ID) }

// ModifiedAt implements Entity.
func (p Post) ModifiedAt() time.Time {
	if p.Modified.IsZero() {
		return p.Created
	}
	return p.Modified
}

// NewPost holds the fields supplied when creating a post
type NewPost struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Author  string `json:"author,omitempty"`
}

// Placeholder builds the provisional post shown while a create is in flight.
// Provisional posts have a negative id so they never collide with stored ids.
func (n NewPost) Placeholder() Post {
	now := time.Now().UTC()
	return Post{
		ID:       -(int(uuid.New().ID()>>1) + 1),
		Title:    n.Title,
		Content:  n.Content,
		Author:   n.Author,
		Created:  now,
		Modified: now,
	}
}

// PostPatch is a partial update; nil fields are left unchanged
type PostPatch struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
	Author  *string `json:"author,omitempty"`
}

// Apply returns a copy of p with the patch fields overwritten.
func (pp PostPatch) Apply(p Post) Post {
	if pp.Title != nil {
		p.Title = *pp.Title
	}
	if pp.Content != nil {
		p.Content = *pp.Content
	}
	if pp.Author != nil {
		p.Author = *pp.Author
	}
	return p
}

// PostPage is one page of posts, newest first
type PostPage struct {
	Posts    []Post `json:"posts"`
	Total    int    `json:"total"`
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
}

// TaskStore defines the interface for authoritative project and task storage
type TaskStore interface {
	// Project operations
	GetProjects(ctx context.Context) ([]Project, error)
	GetProject(ctx context.Context, id string) (*Project, error)
	CreateProject(ctx context.Context, project NewProject) (*Project, error)

	// Task operations; an empty projectID returns tasks of every project
	GetTasks(ctx context.Context, projectID string) ([]Task, error)
	GetTask(ctx context.Context, id string) (*Task, error)
	CreateTask(ctx context.Context, task NewTask) (*Task, error)
	UpdateTask(ctx context.Context, id string, patch TaskPatch) (*Task, error)
	DeleteTask(ctx context.Context, id string) error

	// Connection management
	Close() error
}

// PostStore defines the interface for authoritative blog post storage
type PostStore interface {
	GetPosts(ctx context.Context, page, pageSize int) (*PostPage, error)
	GetPost(ctx context.Context, id int) (*Post, error)
	CreatePost(ctx context.Context, post NewPost) (*Post, error)
	UpdatePost(ctx context.Context, id int, patch PostPatch) (*Post, error)
	DeletePost(ctx context.Context, id int) error
	Close() error
}

// FindProjectByName searches for a project by name (case-insensitive).
// Returns nil if no match is found.
func FindProjectByName(projects []Project, name string) *Project {
	for _, p := range projects {
		if strings.EqualFold(p.Name, name) {
			return &p
		}
	}
	return nil
}

// GenerateID generates a unique identifier using UUID v4.
func GenerateID() string {
	return uuid.New().String()
}

// provisionalPrefix marks ids synthesized locally for optimistic placeholders.
const provisionalPrefix = "pending-"

// ProvisionalID returns an id for a placeholder that cannot collide with a stored id.
func ProvisionalID() string {
	return provisionalPrefix + uuid.New().String()
}

// IsProvisional reports whether id was produced by ProvisionalID.
func IsProvisional(id string) bool {
	return strings.HasPrefix(id, provisionalPrefix)
}
