package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"taskmaster/backend"
	"taskmaster/internal/cli/prompt"
	"taskmaster/internal/utils"
)

// newTaskCmd creates the 'task' subcommand for task management
func newTaskCmd(a *app) *cobra.Command {
	taskCmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
		Long:  "List, add, update and delete the tasks of a project.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	listCmd := &cobra.Command{
		Use:   "list [project]",
		Short: "List tasks of one project, or of every project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, _ := cmd.Flags().GetString("status")
			project := ""
			if len(args) == 1 {
				project = args[0]
			}
			return a.doTaskList(cmd.Context(), project, status)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	listCmd.Flags().StringP("status", "s", "", "Only show tasks with this status")
	taskCmd.AddCommand(listCmd)

	addCmd := &cobra.Command{
		Use:   "add [project] [title]",
		Short: "Add a task to a project",
		Long:  "Add a task to a project. Without a title the fields are prompted for interactively.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			draft := backend.NewTask{}
			if len(args) == 2 {
				draft.Title = args[1]
			}
			draft.Description, _ = cmd.Flags().GetString("description")
			if err := parseTaskFlags(cmd, &draft.Status, &draft.Priority); err != nil {
				return err
			}
			return a.doTaskAdd(cmd.Context(), args[0], draft, len(args) == 2)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addCmd.Flags().StringP("description", "d", "", "Task description")
	addCmd.Flags().StringP("priority", "p", "", "Task priority (low, medium, high)")
	addCmd.Flags().StringP("status", "s", "", "Task status (pending, in_progress, completed)")
	taskCmd.AddCommand(addCmd)

	updateCmd := &cobra.Command{
		Use:   "update [task]",
		Short: "Update task fields",
		Long:  "Update a task by id, or by a title filter that matches exactly one task.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := patchFromFlags(cmd)
			if err != nil {
				return err
			}
			project, _ := cmd.Flags().GetString("project")
			return a.doTaskUpdate(cmd.Context(), args[0], patch, project)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	updateCmd.Flags().String("title", "", "New task title")
	updateCmd.Flags().StringP("description", "d", "", "New task description")
	updateCmd.Flags().StringP("priority", "p", "", "New task priority (low, medium, high)")
	updateCmd.Flags().StringP("status", "s", "", "New task status (pending, in_progress, completed)")
	updateCmd.Flags().String("project", "", "Move the task to another project")
	taskCmd.AddCommand(updateCmd)

	taskCmd.AddCommand(&cobra.Command{
		Use:   "status [task] [status]",
		Short: "Set the status of a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := utils.ParseStatus(args[1])
			if err != nil {
				return err
			}
			return a.doTaskUpdate(cmd.Context(), args[0], backend.TaskPatch{Status: &status}, "")
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	taskCmd.AddCommand(&cobra.Command{
		Use:   "delete [task]",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.doTaskDelete(cmd.Context(), args[0])
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	return taskCmd
}

// parseTaskFlags reads the --status and --priority flags when they were set
func parseTaskFlags(cmd *cobra.Command, status *backend.TaskStatus, priority *backend.TaskPriority) error {
	if cmd.Flags().Changed("status") {
		v, _ := cmd.Flags().GetString("status")
		s, err := utils.ParseStatus(v)
		if err != nil {
			return err
		}
		*status = s
	}
	if cmd.Flags().Changed("priority") {
		v, _ := cmd.Flags().GetString("priority")
		p, err := utils.ParsePriority(v)
		if err != nil {
			return err
		}
		*priority = p
	}
	return nil
}

// patchFromFlags builds a patch from the update flags that were set
func patchFromFlags(cmd *cobra.Command) (backend.TaskPatch, error) {
	var patch backend.TaskPatch
	if cmd.Flags().Changed("title") {
		title, _ := cmd.Flags().GetString("title")
		if err := utils.ValidateTitle("task", title); err != nil {
			return patch, err
		}
		title = strings.TrimSpace(title)
		patch.Title = &title
	}
	if cmd.Flags().Changed("description") {
		description, _ := cmd.Flags().GetString("description")
		patch.Description = &description
	}
	var status backend.TaskStatus
	var priority backend.TaskPriority
	if err := parseTaskFlags(cmd, &status, &priority); err != nil {
		return patch, err
	}
	if status != "" {
		patch.Status = &status
	}
	if priority != "" {
		patch.Priority = &priority
	}
	return patch, nil
}

func statusIcon(s backend.TaskStatus) string {
	switch s {
	case backend.StatusCompleted:
		return "[✓]"
	case backend.StatusInProgress:
		return "[~]"
	default:
		return "[ ]"
	}
}

// formatTaskLine renders one task for list output
func formatTaskLine(t backend.Task) string {
	return fmt.Sprintf("%s %s (%s)  %s", statusIcon(t.Status), t.Title, t.Priority, t.ID)
}

// resolveTask finds a task by id, falling back to a title filter
func (a *app) resolveTask(ctx context.Context, store backend.TaskStore, ref string) (*backend.Task, error) {
	t, err := store.GetTask(ctx, ref)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, backend.ErrNotFound) {
		return nil, describe(err, nil)
	}

	all, err := store.GetTasks(ctx, "")
	if err != nil {
		return nil, describe(err, nil)
	}
	reader, interactive := a.stdin()
	selector := &prompt.TaskSelector{
		Tasks:    all,
		Prompt:   fmt.Sprintf("Several tasks match %q:", ref),
		Filter:   ref,
		Reader:   reader,
		Writer:   a.stdout,
		NoPrompt: !interactive,
	}
	t, err = selector.Run()
	switch {
	case errors.Is(err, prompt.ErrNoTasks), errors.Is(err, prompt.ErrNoMatches):
		return nil, utils.ErrTaskNotFound(ref)
	case errors.Is(err, prompt.ErrNoPromptMode):
		return nil, &utils.ErrorWithSuggestion{
			Err:        fmt.Errorf("%q matches several tasks", ref),
			Suggestion: "Use the task id or a more specific title",
		}
	case err != nil:
		return nil, err
	}
	return t, nil
}

// doTaskList displays the tasks of one project, or of every project grouped by project
func (a *app) doTaskList(ctx context.Context, projectRef, statusFilter string) error {
	var status backend.TaskStatus
	if statusFilter != "" {
		s, err := utils.ParseStatus(statusFilter)
		if err != nil {
			return err
		}
		status = s
	}

	store, err := a.openTaskStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var projects []backend.Project
	group := a.taskGroup(store)
	if projectRef != "" {
		project, err := resolveProject(ctx, store, projectRef)
		if err != nil {
			return err
		}
		if _, err := group.Get(project.ID).Load(ctx); err != nil {
			return describe(err, nil)
		}
		projects = []backend.Project{*project}
	} else {
		projects, err = store.GetProjects(ctx)
		if err != nil {
			return describe(err, nil)
		}
		all, err := store.GetTasks(ctx, "")
		if err != nil {
			return describe(err, nil)
		}
		ids := make([]string, len(projects))
		for i, p := range projects {
			ids[i] = p.ID
		}
		// One fetch fills every project's cache
		group.Prime(all, func(t backend.Task) string { return t.ProjectID }, ids...)
	}

	filter := func(tasks []backend.Task) []backend.Task {
		if status == "" {
			return tasks
		}
		out := make([]backend.Task, 0, len(tasks))
		for _, t := range tasks {
			if t.Status == status {
				out = append(out, t)
			}
		}
		return out
	}

	if a.json {
		type listTasksResponse struct {
			Tasks  []backend.Task `json:"tasks"`
			Count  int            `json:"count"`
			Result string         `json:"result"`
		}
		tasks := []backend.Task{}
		for _, p := range projects {
			tasks = append(tasks, filter(group.Get(p.ID).Items())...)
		}
		return writeJSON(a.stdout, listTasksResponse{Tasks: tasks, Count: len(tasks), Result: ResultInfoOnly})
	}

	if len(projects) == 0 {
		_, _ = fmt.Fprintln(a.stdout, "No projects found")
		a.info()
		return nil
	}
	for _, p := range projects {
		tasks := filter(group.Get(p.ID).Items())
		_, _ = fmt.Fprintf(a.stdout, "%s (%d):\n", p.Name, len(tasks))
		if len(tasks) == 0 {
			_, _ = fmt.Fprintln(a.stdout, "  No tasks")
		}
		for _, t := range tasks {
			_, _ = fmt.Fprintln(a.stdout, "  "+formatTaskLine(t))
		}
	}
	a.info()
	return nil
}

// doTaskAdd creates a task in the given project
func (a *app) doTaskAdd(ctx context.Context, projectRef string, draft backend.NewTask, haveTitle bool) error {
	if !haveTitle {
		reader, interactive := a.stdin()
		if !interactive {
			return utils.ErrEmptyTitle("task")
		}
		adder := &prompt.InteractiveAdder{Reader: reader, Writer: a.stdout}
		fields, err := adder.Run()
		if err != nil {
			return err
		}
		draft.Title = fields.Title
		if draft.Description == "" {
			draft.Description = fields.Description
		}
		if draft.Priority == "" {
			draft.Priority = fields.Priority
		}
		if draft.Status == "" {
			draft.Status = fields.Status
		}
	}
	if err := utils.ValidateTitle("task", draft.Title); err != nil {
		return err
	}
	draft.Title = strings.TrimSpace(draft.Title)

	store, err := a.openTaskStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	project, err := resolveProject(ctx, store, projectRef)
	if err != nil {
		return err
	}
	draft.ProjectID = project.ID

	task, err := a.projectCache(store, project.ID).Create(ctx, draft.WithDefaults())
	if err != nil {
		return describe(err, func() error { return utils.ErrProjectNotFound(projectRef) })
	}

	if a.json {
		return writeJSON(a.stdout, actionResponse{Action: "add", Task: &task, Result: ResultActionCompleted})
	}
	_, _ = fmt.Fprintf(a.stdout, "Created task: %s\n", task.Title)
	a.printTask(task, project.Name)
	a.done()
	return nil
}

// doTaskUpdate applies patch to a task, optionally moving it to another project
func (a *app) doTaskUpdate(ctx context.Context, ref string, patch backend.TaskPatch, projectRef string) error {
	store, err := a.openTaskStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if projectRef != "" {
		project, err := resolveProject(ctx, store, projectRef)
		if err != nil {
			return err
		}
		patch.ProjectID = &project.ID
	}
	if patch.IsEmpty() {
		return &utils.ErrorWithSuggestion{
			Err:        errors.New("nothing to update"),
			Suggestion: "Pass at least one of --title, --description, --priority, --status or --project",
		}
	}

	task, err := a.resolveTask(ctx, store, ref)
	if err != nil {
		return err
	}

	c := a.projectCache(store, task.ProjectID)
	c.Prime([]backend.Task{*task})
	updated, err := c.Update(ctx, task.ID, patch)
	if err != nil {
		return describe(err, func() error { return utils.ErrTaskNotFound(ref) })
	}

	if a.json {
		return writeJSON(a.stdout, actionResponse{Action: "update", Task: &updated, Result: ResultActionCompleted})
	}
	_, _ = fmt.Fprintf(a.stdout, "Updated task: %s\n", updated.Title)
	a.printTask(updated, "")
	a.done()
	return nil
}

// doTaskDelete removes a task after confirmation
func (a *app) doTaskDelete(ctx context.Context, ref string) error {
	store, err := a.openTaskStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	task, err := a.resolveTask(ctx, store, ref)
	if err != nil {
		return err
	}

	reader, interactive := a.stdin()
	if !prompt.Confirm(fmt.Sprintf("Delete task %q?", task.Title), reader, a.stdout, !interactive) {
		_, _ = fmt.Fprintln(a.stdout, "Cancelled")
		return nil
	}

	c := a.projectCache(store, task.ProjectID)
	c.Prime([]backend.Task{*task})
	if err := c.Delete(ctx, task.ID); err != nil {
		return describe(err, func() error { return utils.ErrTaskNotFound(ref) })
	}

	if a.json {
		return writeJSON(a.stdout, actionResponse{Action: "delete", Task: task, Result: ResultActionCompleted})
	}
	_, _ = fmt.Fprintf(a.stdout, "Deleted task: %s\n", task.Title)
	a.done()
	return nil
}

// printTask prints the authoritative fields of a task
func (a *app) printTask(t backend.Task, projectName string) {
	_, _ = fmt.Fprintf(a.stdout, "  ID: %s\n", t.ID)
	if projectName != "" {
		_, _ = fmt.Fprintf(a.stdout, "  Project: %s\n", projectName)
	}
	_, _ = fmt.Fprintf(a.stdout, "  Status: %s\n", t.Status)
	_, _ = fmt.Fprintf(a.stdout, "  Priority: %s\n", t.Priority)
	if t.Description != "" {
		_, _ = fmt.Fprintf(a.stdout, "  Description: %s\n", t.Description)
	}
	_, _ = fmt.Fprintf(a.stdout, "  Updated: %s\n", t.ModifiedAt().Format("2006-01-02 15:04:05"))
}

// newRecentCmd creates the 'recent' subcommand
func newRecentCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Show recently updated tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return a.doRecent(cmd.Context(), limit)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().IntP("limit", "n", 0, "Show at most N tasks (default: recent.capacity)")
	return cmd
}

// doRecent rebuilds the recently updated list from the backend and prints it
func (a *app) doRecent(ctx context.Context, limit int) error {
	if limit < 0 {
		return fmt.Errorf("--limit must not be negative, got %d", limit)
	}

	store, err := a.openTaskStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	projects, err := store.GetProjects(ctx)
	if err != nil {
		return describe(err, nil)
	}
	names := make(map[string]string, len(projects))
	for _, p := range projects {
		names[p.ID] = p.Name
	}
	all, err := store.GetTasks(ctx, "")
	if err != nil {
		return describe(err, nil)
	}

	a.recentTasks.Seed(all)
	items := a.recentTasks.List()
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}

	if a.json {
		type recentTask struct {
			backend.Task
			Project string `json:"project"`
		}
		type recentResponse struct {
			Tasks  []recentTask `json:"tasks"`
			Count  int          `json:"count"`
			Result string       `json:"result"`
		}
		out := make([]recentTask, 0, len(items))
		for _, t := range items {
			out = append(out, recentTask{Task: t, Project: names[t.ProjectID]})
		}
		return writeJSON(a.stdout, recentResponse{Tasks: out, Count: len(out), Result: ResultInfoOnly})
	}

	if len(items) == 0 {
		_, _ = fmt.Fprintln(a.stdout, "No recent activity")
		a.info()
		return nil
	}
	now := a.now()
	_, _ = fmt.Fprintln(a.stdout, "Recently Updated:")
	for _, t := range items {
		project := names[t.ProjectID]
		if project == "" {
			project = "Unknown project"
		}
		_, _ = fmt.Fprintf(a.stdout, "  %s %s\n", statusIcon(t.Status), t.Title)
		_, _ = fmt.Fprintf(a.stdout, "      %s · %s · updated %s\n", project, t.Status,
			humanize.RelTime(t.ModifiedAt(), now, "ago", "from now"))
	}
	a.info()
	return nil
}

