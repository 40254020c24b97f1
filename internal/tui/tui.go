// Package tui provides the terminal user interface: projects, their tasks
// and a "Recently Updated" sidebar. Task changes are applied optimistically
// through the task caches and rolled back when the backend rejects them.
package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"taskmaster/backend"
	"taskmaster/internal/cache"
	"taskmaster/internal/recent"
	"taskmaster/internal/utils"
)

// Focus indicates which pane has focus
type Focus int

const (
	FocusProjects Focus = iota
	FocusTasks
)

// Mode indicates the current input mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeAdd
	ModeAddProject
	ModeEdit
	ModeFilter
	ModeHelp
	ModeConfirmDelete
)

// errStillSaving is shown when a task is acted on before its create settled
var errStillSaving = errors.New("task is still being saved")

type taskCache = cache.Cache[backend.Task, backend.NewTask, backend.TaskPatch]
type taskMutation = cache.Mutation[backend.NewTask, backend.TaskPatch]

// Options configures the TUI
type Options struct {
	// Recent receives committed task changes. A fresh tracker is used when nil.
	Recent *recent.Tracker[backend.Task]
	// MutationTimeout bounds each remote change before it is rolled back.
	MutationTimeout time.Duration
	// InitialProjectID selects a project on startup when it exists.
	InitialProjectID string
	// OnProjectSelected is called, off the UI goroutine, when the selection changes.
	OnProjectSelected func(projectID string)
	// Now is used for relative timestamps.
	Now func() time.Time
}

// Model represents the TUI state
type Model struct {
	store  backend.TaskStore
	ctx    context.Context
	group  *cache.Group[backend.Task, backend.NewTask, backend.TaskPatch]
	recent *recent.Tracker[backend.Task]
	opts   Options

	// Data
	projects    []backend.Project
	tasks       []backend.Task
	filteredIdx []int // indices into tasks for the filtered view
	pending     int
	err         error

	// Selection
	projectCursor int
	taskCursor    int
	focus         Focus

	// Mode and input
	mode      Mode
	textInput textinput.Model
	filter    string

	// UI dimensions
	width  int
	height int

	styles styles
}

type styles struct {
	pane      lipgloss.Style
	selected  lipgloss.Style
	completed lipgloss.Style
	muted     lipgloss.Style
	help      lipgloss.Style
	dialog    lipgloss.Style
	statusBar lipgloss.Style
	errBanner lipgloss.Style
	high      lipgloss.Style
}

// Message types
type loadedMsg struct {
	projects []backend.Project
	tasks    []backend.Task
}

type projectTasksMsg struct {
	projectID string
	err       error
}

type projectCreatedMsg struct {
	project *backend.Project
}

type settledMsg struct {
	projectID string
	op        cache.Kind
	err       error
}

type errMsg struct {
	err error
}

// New creates a new TUI model over store
func New(store backend.TaskStore, opts Options) *Model {
	ti := textinput.New()
	ti.Placeholder = "Enter text..."
	ti.CharLimit = utils.MaxTitleLength

	tracker := opts.Recent
	if tracker == nil {
		tracker = recent.New[backend.Task](recent.DefaultCapacity)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	m := &Model{
		store:     store,
		ctx:       context.Background(),
		recent:    tracker,
		opts:      opts,
		textInput: ti,
		focus:     FocusProjects,
		mode:      ModeNormal,
		styles:    newStyles(),
	}
	m.group = cache.NewGroup(func(projectID string) *taskCache {
		return cache.New(backend.ProjectTasks(store, projectID),
			cache.TaskOptions("tasks:"+projectID, tracker, opts.MutationTimeout))
	})
	return m
}

func newStyles() styles {
	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)
	return styles{
		pane:      border,
		selected:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		completed: lipgloss.NewStyle().Strikethrough(true).Foreground(lipgloss.Color("240")),
		muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		help:      lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		dialog: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2),
		statusBar: lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1),
		errBanner: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		high:      lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
	}
}

// Tasks returns the tasks of the selected project as currently displayed.
func (m *Model) Tasks() []backend.Task {
	out := make([]backend.Task, len(m.tasks))
	copy(out, m.tasks)
	return out
}

// Err returns the error shown in the banner, if any.
func (m *Model) Err() error { return m.err }

// SelectedProject returns the selected project, or nil if there is none.
func (m *Model) SelectedProject() *backend.Project {
	if m.projectCursor < len(m.projects) {
		p := m.projects[m.projectCursor]
		return &p
	}
	return nil
}

// Init initializes the TUI
func (m *Model) Init() tea.Cmd {
	return m.load()
}

// load fetches projects and every task once, then primes each project's
// cache so switching projects needs no fetch.
func (m *Model) load() tea.Cmd {
	ctx, store, group := m.ctx, m.store, m.group
	return func() tea.Msg {
		projects, err := store.GetProjects(ctx)
		if err != nil {
			return errMsg{err}
		}
		tasks, err := store.GetTasks(ctx, "")
		if err != nil {
			return errMsg{err}
		}
		ids := make([]string, len(projects))
		for i, p := range projects {
			ids[i] = p.ID
		}
		group.Prime(tasks, func(t backend.Task) string { return t.ProjectID }, ids...)
		return loadedMsg{projects: projects, tasks: tasks}
	}
}

func (m *Model) currentProjectID() string {
	if p := m.SelectedProject(); p != nil {
		return p.ID
	}
	return ""
}

// syncTasks copies the selected project's cached tasks into the view
func (m *Model) syncTasks() {
	id := m.currentProjectID()
	if id == "" {
		m.tasks = nil
		m.pending = 0
	} else {
		c := m.group.Get(id)
		m.tasks = c.Items()
		m.pending = c.Pending()
	}
	m.applyFilter()
}

// loadProject refetches the project's tasks when its cache is stale
func (m *Model) loadProject(projectID string) tea.Cmd {
	if projectID == "" {
		return nil
	}
	c := m.group.Get(projectID)
	if !c.Stale() {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		_, err := c.Load(ctx)
		return projectTasksMsg{projectID: projectID, err: err}
	}
}

func (m *Model) projectSelected() tea.Cmd {
	m.taskCursor = 0
	m.syncTasks()
	id := m.currentProjectID()
	cmds := []tea.Cmd{m.loadProject(id)}
	if cb := m.opts.OnProjectSelected; cb != nil && id != "" {
		cmds = append(cmds, func() tea.Msg {
			cb(id)
			return nil
		})
	}
	return tea.Batch(cmds...)
}

// mutate applies m optimistically and returns the command that settles it
func (m *Model) mutate(mut taskMutation) tea.Cmd {
	projectID := m.currentProjectID()
	if projectID == "" {
		return nil
	}
	p := m.group.Get(projectID).Begin(mut)
	m.err = nil
	m.syncTasks()

	ctx := m.ctx
	return func() tea.Msg {
		_, err := p.Settle(ctx)
		return settledMsg{projectID: projectID, op: mut.Kind, err: err}
	}
}

func (m *Model) createProject(name string) tea.Cmd {
	ctx, store := m.ctx, m.store
	return func() tea.Msg {
		p, err := store.CreateProject(ctx, backend.NewProject{Name: name})
		if err != nil {
			return errMsg{err}
		}
		return projectCreatedMsg{p}
	}
}

// selectedTask returns the task under the cursor
func (m *Model) selectedTask() (backend.Task, bool) {
	if m.taskCursor < len(m.filteredIdx) {
		return m.tasks[m.filteredIdx[m.taskCursor]], true
	}
	return backend.Task{}, false
}

// taskForChange returns the selected task unless its create is still in flight
func (m *Model) taskForChange() (backend.Task, bool) {
	t, ok := m.selectedTask()
	if !ok {
		return t, false
	}
	if backend.IsProvisional(t.ID) {
		m.err = errStillSaving
		return t, false
	}
	return t, true
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case loadedMsg:
		m.projects = msg.projects
		m.recent.Seed(msg.tasks)
		m.projectCursor = 0
		for i, p := range m.projects {
			if p.ID == m.opts.InitialProjectID {
				m.projectCursor = i
				break
			}
		}
		m.syncTasks()
		return m, nil

	case projectTasksMsg:
		if msg.err != nil {
			m.err = msg.err
		}
		if msg.projectID == m.currentProjectID() {
			m.syncTasks()
		}
		return m, nil

	case projectCreatedMsg:
		m.projects = append(m.projects, *msg.project)
		m.group.Get(msg.project.ID).Prime(nil)
		m.projectCursor = len(m.projects) - 1
		return m, m.projectSelected()

	case settledMsg:
		if msg.err != nil {
			m.err = msg.err
		}
		if msg.projectID != m.currentProjectID() {
			return m, nil
		}
		m.syncTasks()
		if m.taskCursor >= len(m.filteredIdx) && m.taskCursor > 0 {
			m.taskCursor = len(m.filteredIdx) - 1
		}
		// Refetch once nothing else is in flight for this project
		if m.pending == 0 {
			return m, m.loadProject(msg.projectID)
		}
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case ModeAdd, ModeAddProject, ModeEdit:
			return m.handleInputMode(msg)
		case ModeFilter:
			return m.handleFilterMode(msg)
		case ModeHelp:
			m.mode = ModeNormal
			return m, nil
		case ModeConfirmDelete:
			return m.handleConfirmDeleteMode(msg)
		}
		return m.handleNormalMode(msg)
	}

	return m, nil
}

func (m *Model) handleNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "tab":
		if m.focus == FocusProjects {
			m.focus = FocusTasks
		} else {
			m.focus = FocusProjects
		}

	case "up", "k":
		if m.focus == FocusProjects {
			if m.projectCursor > 0 {
				m.projectCursor--
				return m, m.projectSelected()
			}
		} else if m.taskCursor > 0 {
			m.taskCursor--
		}

	case "down", "j":
		if m.focus == FocusProjects {
			if m.projectCursor < len(m.projects)-1 {
				m.projectCursor++
				return m, m.projectSelected()
			}
		} else if m.taskCursor < len(m.filteredIdx)-1 {
			m.taskCursor++
		}

	case "a":
		if m.currentProjectID() == "" {
			m.err = utils.ErrNoProjectsAvailable()
			return m, nil
		}
		return m, m.openInput(ModeAdd, "New task title...", "")

	case "n":
		return m, m.openInput(ModeAddProject, "New project name...", "")

	case "e":
		if t, ok := m.taskForChange(); ok {
			return m, m.openInput(ModeEdit, "", t.Title)
		}

	case "s", " ":
		if t, ok := m.taskForChange(); ok {
			next := t.Status.Next()
			return m, m.mutate(taskMutation{Kind: cache.OpUpdate, ID: t.ID, Patch: backend.TaskPatch{Status: &next}})
		}

	case "p":
		if t, ok := m.taskForChange(); ok {
			next := t.Priority.Next()
			return m, m.mutate(taskMutation{Kind: cache.OpUpdate, ID: t.ID, Patch: backend.TaskPatch{Priority: &next}})
		}

	case "d":
		if _, ok := m.taskForChange(); ok {
			m.mode = ModeConfirmDelete
		}

	case "r":
		if id := m.currentProjectID(); id != "" {
			m.group.Get(id).Invalidate()
			return m, m.loadProject(id)
		}

	case "/":
		return m, m.openInput(ModeFilter, "Search...", m.filter)

	case "?":
		m.mode = ModeHelp

	case "esc":
		m.err = nil
	}
	return m, nil
}

func (m *Model) openInput(mode Mode, placeholder, value string) tea.Cmd {
	m.mode = mode
	m.textInput.Reset()
	m.textInput.Placeholder = placeholder
	m.textInput.SetValue(value)
	m.textInput.Focus()
	return textinput.Blink
}

// handleInputMode handles the add, add project and edit dialogs
func (m *Model) handleInputMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = ModeNormal
		return m, nil

	case tea.KeyEnter:
		mode := m.mode
		value := strings.TrimSpace(m.textInput.Value())
		m.mode = ModeNormal
		m.textInput.Blur()

		switch mode {
		case ModeAddProject:
			if value == "" {
				return m, nil
			}
			return m, m.createProject(value)
		case ModeAdd:
			if err := utils.ValidateTitle("task", value); err != nil {
				m.err = err
				return m, nil
			}
			cmd := m.mutate(taskMutation{
				Kind:  cache.OpCreate,
				Draft: backend.NewTask{ProjectID: m.currentProjectID(), Title: value},
			})
			m.focus = FocusTasks
			m.taskCursor = max(len(m.filteredIdx)-1, 0)
			return m, cmd
		case ModeEdit:
			t, ok := m.selectedTask()
			if !ok || value == t.Title {
				return m, nil
			}
			if err := utils.ValidateTitle("task", value); err != nil {
				m.err = err
				return m, nil
			}
			return m, m.mutate(taskMutation{Kind: cache.OpUpdate, ID: t.ID, Patch: backend.TaskPatch{Title: &value}})
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m *Model) handleFilterMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.filter = m.textInput.Value()
		m.applyFilter()
		m.mode = ModeNormal
		return m, nil

	case tea.KeyEsc:
		m.filter = ""
		m.applyFilter()
		m.mode = ModeNormal
		return m, nil
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmDeleteMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		m.mode = ModeNormal
		if t, ok := m.selectedTask(); ok {
			cmd := m.mutate(taskMutation{Kind: cache.OpDelete, ID: t.ID})
			if m.taskCursor >= len(m.filteredIdx) && m.taskCursor > 0 {
				m.taskCursor--
			}
			return m, cmd
		}
	case "n", "N", "esc":
		m.mode = ModeNormal
	}
	return m, nil
}

func (m *Model) applyFilter() {
	m.filteredIdx = nil
	filter := strings.ToLower(m.filter)
	for i, task := range m.tasks {
		if filter == "" || strings.Contains(strings.ToLower(task.Title), filter) {
			m.filteredIdx = append(m.filteredIdx, i)
		}
	}
	if m.taskCursor >= len(m.filteredIdx) {
		m.taskCursor = max(len(m.filteredIdx)-1, 0)
	}
}
