package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"taskmaster/backend"
)

// View renders the TUI
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		m.width = 100
		m.height = 24
	}

	switch m.mode {
	case ModeAdd:
		return m.renderInputDialog("Add Task", "Enter: save  Esc: cancel")
	case ModeAddProject:
		return m.renderInputDialog("Add Project", "Enter: save  Esc: cancel")
	case ModeEdit:
		title := "Edit Task"
		if t, ok := m.selectedTask(); ok {
			title = "Edit: " + t.Title
		}
		return m.renderInputDialog(title, "Enter: save  Esc: cancel")
	case ModeFilter:
		return m.renderInputDialog("Search/Filter Tasks", "Enter: filter  Esc: clear")
	case ModeHelp:
		return m.centerDialog(m.styles.dialog.Render(helpText))
	case ModeConfirmDelete:
		return m.renderConfirmDeleteDialog()
	}

	projectWidth := m.width / 5
	recentWidth := m.width / 4
	taskWidth := m.width - projectWidth - recentWidth - 6
	paneHeight := m.height - 5

	main := lipgloss.JoinHorizontal(lipgloss.Top,
		m.styles.pane.Width(projectWidth).Height(paneHeight).Render(m.renderProjectPane(projectWidth-4)),
		m.styles.pane.Width(taskWidth).Height(paneHeight).Render(m.renderTaskPane(taskWidth-4)),
		m.styles.pane.Width(recentWidth).Height(paneHeight).Render(m.renderRecentPane(recentWidth-4)),
	)

	var b strings.Builder
	b.WriteString(main)
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(m.styles.errBanner.Render("Error: " + firstLine(m.err.Error())))
	}
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	return b.String()
}

// firstLine drops the suggestion block of user-facing errors
func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func header(title string, width int) string {
	if width < 1 {
		width = 1
	}
	return title + "\n" + strings.Repeat("─", width) + "\n"
}

func (m *Model) renderProjectPane(width int) string {
	var b strings.Builder
	b.WriteString(header("Projects", width))

	if len(m.projects) == 0 {
		b.WriteString(m.styles.muted.Render("No projects (n to add)") + "\n")
		return b.String()
	}
	for i, p := range m.projects {
		cursor := " "
		name := p.Name
		if i == m.projectCursor {
			if m.focus == FocusProjects {
				cursor = ">"
			}
			name = m.styles.selected.Render(name)
		}
		b.WriteString(cursor + " " + name + "\n")
	}
	return b.String()
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

func (m *Model) renderTaskPane(width int) string {
	var b strings.Builder
	title := "Tasks"
	if p := m.SelectedProject(); p != nil {
		title = "Tasks · " + p.Name
	}
	b.WriteString(header(title, width))

	if len(m.filteredIdx) == 0 {
		b.WriteString("No tasks\n")
		return b.String()
	}

	for fi, idx := range m.filteredIdx {
		task := m.tasks[idx]
		selected := fi == m.taskCursor && m.focus == FocusTasks

		cursor := " "
		if selected {
			cursor = ">"
		}

		text := task.Title
		switch {
		case task.Status == backend.StatusCompleted:
			text = m.styles.completed.Render(text)
		case selected:
			text = m.styles.selected.Render(text)
		}

		badge := string(task.Priority)
		if task.Priority == backend.PriorityHigh {
			badge = m.styles.high.Render(badge)
		} else {
			badge = m.styles.muted.Render(badge)
		}

		line := fmt.Sprintf("%s %s %s %s", cursor, statusIcon(task.Status), text, badge)
		if backend.IsProvisional(task.ID) {
			line += m.styles.muted.Render(" (saving...)")
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (m *Model) projectName(id string) string {
	for _, p := range m.projects {
		if p.ID == id {
			return p.Name
		}
	}
	return "Unknown project"
}

func (m *Model) renderRecentPane(width int) string {
	var b strings.Builder
	b.WriteString(header("Recently Updated", width))

	items := m.recent.List()
	if len(items) == 0 {
		b.WriteString(m.styles.muted.Render("No recent activity") + "\n")
		return b.String()
	}
	now := m.opts.Now()
	for _, t := range items {
		b.WriteString(t.Title + "\n")
		b.WriteString(m.styles.muted.Render(fmt.Sprintf("  %s · %s", t.Status, m.projectName(t.ProjectID))) + "\n")
		b.WriteString(m.styles.muted.Render("  "+humanize.RelTime(t.ModifiedAt(), now, "ago", "from now")) + "\n")
	}
	return b.String()
}

func (m *Model) renderStatusBar() string {
	left := "no project"
	if p := m.SelectedProject(); p != nil {
		left = p.Name
	}
	if m.pending > 0 {
		left += fmt.Sprintf("  saving %d...", m.pending)
	}

	right := "q:quit  ?:help"
	if m.filter != "" {
		right = "Filter: " + m.filter + "  " + right
	}

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}
	return m.styles.statusBar.Width(m.width).Render(left + strings.Repeat(" ", padding) + right)
}

func (m *Model) renderInputDialog(title, hint string) string {
	dialog := m.styles.dialog.Render(
		title + "\n\n" +
			m.textInput.View() + "\n\n" +
			m.styles.help.Render(hint),
	)
	return m.centerDialog(dialog)
}

func (m *Model) renderConfirmDeleteDialog() string {
	question := "Delete selected task?"
	if t, ok := m.selectedTask(); ok {
		question = fmt.Sprintf("Delete %q?", t.Title)
	}
	dialog := m.styles.dialog.Render(question + "\n\n" + m.styles.help.Render("y: yes  n: no"))
	return m.centerDialog(dialog)
}

const helpText = `Help - Key Bindings

Navigation:
  j/↓    Move down
  k/↑    Move up
  Tab    Switch focus between projects/tasks

Actions:
  a      Add task to the selected project
  n      Add project
  e      Edit task title
  s      Cycle status (pending, in progress, completed)
  p      Cycle priority
  d      Delete task (with confirm)
  r      Reload tasks
  /      Search/filter tasks

General:
  Esc    Dismiss error
  ?      Show this help
  q      Quit

Press any key to close`

func (m *Model) centerDialog(dialog string) string {
	lines := strings.Split(dialog, "\n")
	dialogWidth := 0
	for _, line := range lines {
		dialogWidth = max(dialogWidth, lipgloss.Width(line))
	}

	topPad := max((m.height-len(lines))/2, 0)
	leftPad := max((m.width-dialogWidth)/2, 0)

	var b strings.Builder
	b.WriteString(strings.Repeat("\n", topPad))
	for _, line := range lines {
		b.WriteString(strings.Repeat(" ", leftPad))
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
