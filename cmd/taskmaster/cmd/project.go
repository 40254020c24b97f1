package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"taskmaster/backend"
	"taskmaster/internal/utils"
)

// newProjectCmd creates the 'project' subcommand for project management
func newProjectCmd(a *app) *cobra.Command {
	projectCmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
		Long:  "View all projects or manage projects with subcommands.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.doProjectList(cmd.Context())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	projectCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List projects with their task counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.doProjectList(cmd.Context())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	addCmd := &cobra.Command{
		Use:   "add [name]",
		Short: "Create a new project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			description, _ := cmd.Flags().GetString("description")
			return a.doProjectAdd(cmd.Context(), args[0], description)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addCmd.Flags().StringP("description", "d", "", "Project description")
	projectCmd.AddCommand(addCmd)

	projectCmd.AddCommand(&cobra.Command{
		Use:   "show [id or name]",
		Short: "Show a project and its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.doProjectShow(cmd.Context(), args[0])
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	return projectCmd
}

// resolveProject finds a project by id, then by case-insensitive name
func resolveProject(ctx context.Context, store backend.TaskStore, ref string) (*backend.Project, error) {
	p, err := store.GetProject(ctx, ref)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, backend.ErrNotFound) {
		return nil, describe(err, nil)
	}

	projects, err := store.GetProjects(ctx)
	if err != nil {
		return nil, describe(err, nil)
	}
	if p := backend.FindProjectByName(projects, ref); p != nil {
		return p, nil
	}
	return nil, utils.ErrProjectNotFound(ref)
}

// countTasks returns the number of tasks in each project
func countTasks(tasks []backend.Task) map[string]int {
	counts := make(map[string]int)
	for _, t := range tasks {
		counts[t.ProjectID]++
	}
	return counts
}

// doProjectList displays all projects with their task counts
func (a *app) doProjectList(ctx context.Context) error {
	store, err := a.openTaskStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	projects, err := store.GetProjects(ctx)
	if err != nil {
		return describe(err, nil)
	}
	tasks, err := store.GetTasks(ctx, "")
	if err != nil {
		return describe(err, nil)
	}
	counts := countTasks(tasks)

	if a.json {
		type projectJSON struct {
			backend.Project
			Tasks int `json:"tasks"`
		}
		output := make([]projectJSON, 0, len(projects))
		for _, p := range projects {
			output = append(output, projectJSON{Project: p, Tasks: counts[p.ID]})
		}
		return writeJSON(a.stdout, output)
	}

	if len(projects) == 0 {
		_, _ = fmt.Fprintln(a.stdout, "No projects found")
		a.info()
		return nil
	}

	_, _ = fmt.Fprintf(a.stdout, "Projects (%d):\n", len(projects))
	for _, p := range projects {
		_, _ = fmt.Fprintf(a.stdout, "  %-36s  %s (%d tasks)\n", p.ID, p.Name, counts[p.ID])
	}
	a.info()
	return nil
}

// doProjectAdd creates a project after checking for a duplicate name
func (a *app) doProjectAdd(ctx context.Context, name, description string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &utils.ErrorWithSuggestion{
			Err:        errors.New("project name is required"),
			Suggestion: "Pass a name, e.g. 'taskmaster project add Website'",
		}
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
	if backend.FindProjectByName(projects, name) != nil {
		return fmt.Errorf("project '%s' already exists", name)
	}

	project, err := store.CreateProject(ctx, backend.NewProject{Name: name, Description: strings.TrimSpace(description)})
	if err != nil {
		return describe(err, nil)
	}

	if a.json {
		return writeJSON(a.stdout, actionResponse{Action: "add", Project: project, Result: ResultActionCompleted})
	}
	_, _ = fmt.Fprintf(a.stdout, "Created project: %s (%s)\n", project.Name, project.ID)
	a.done()
	return nil
}

// doProjectShow displays one project and its tasks
func (a *app) doProjectShow(ctx context.Context, ref string) error {
	store, err := a.openTaskStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	project, err := resolveProject(ctx, store, ref)
	if err != nil {
		return err
	}
	tasks, err := a.projectCache(store, project.ID).Load(ctx)
	if err != nil {
		return describe(err, nil)
	}

	if a.json {
		type projectDetail struct {
			backend.Project
			Tasks []backend.Task `json:"tasks"`
		}
		if tasks == nil {
			tasks = []backend.Task{}
		}
		return writeJSON(a.stdout, projectDetail{Project: *project, Tasks: tasks})
	}

	_, _ = fmt.Fprintf(a.stdout, "Project: %s\n", project.Name)
	_, _ = fmt.Fprintf(a.stdout, "ID: %s\n", project.ID)
	if project.Description != "" {
		_, _ = fmt.Fprintf(a.stdout, "Description: %s\n", project.Description)
	}
	_, _ = fmt.Fprintf(a.stdout, "Tasks: %d\n", len(tasks))
	for _, t := range tasks {
		_, _ = fmt.Fprintln(a.stdout, "  "+formatTaskLine(t))
	}
	a.info()
	return nil
}
