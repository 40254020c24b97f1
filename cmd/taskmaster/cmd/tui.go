package cmd

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"taskmaster/internal/prefs"
	"taskmaster/internal/tui"
	"taskmaster/internal/utils"
)

// newTUICmd creates the 'tui' subcommand
func newTUICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the terminal user interface",
		Long:  "Browse projects and tasks with a recently updated sidebar. Press ? inside for key bindings.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.doTUI(cmd.Context())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// doTUI runs the TUI until the user quits, remembering the selected project
func (a *app) doTUI(ctx context.Context) error {
	store, err := a.openTaskStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	prefsPath := a.cfg.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}
	p := prefs.Load(prefsPath)

	var mu sync.Mutex
	model := tui.New(store, tui.Options{
		Recent:           a.recentTasks,
		MutationTimeout:  a.conf.GetMutationTimeout(),
		InitialProjectID: p.LastProjectID,
		OnProjectSelected: func(projectID string) {
			mu.Lock()
			defer mu.Unlock()
			p.LastProjectID = projectID
			if err := prefs.Save(prefsPath, p); err != nil {
				utils.Debugf("could not save preferences: %v", err)
			}
		},
		Now: a.now,
	})

	reader, _ := a.stdin()
	program := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithInput(reader),
		tea.WithOutput(a.stdout),
	)
	_, err = program.Run()
	return err
}
