package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Dashboard wraps the bubbletea program driving the node dashboard.
type Dashboard struct {
	program *tea.Program
}

// NewDashboard creates a dashboard over the given snapshot provider. The
// reloader may be nil, which disables the reload key.
func NewDashboard(provider SnapshotProvider, reloader Reloader) *Dashboard {
	model := NewModel(provider, reloader)
	program := tea.NewProgram(model, tea.WithAltScreen())

	return &Dashboard{program: program}
}

// Run blocks until the user quits the dashboard.
func (d *Dashboard) Run() error {
	_, err := d.program.Run()
	return err
}

// Stop closes the dashboard from outside, e.g. on a signal.
func (d *Dashboard) Stop() {
	d.program.Quit()
}
