package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"membitnode/pkg/models"
)

// Message types for the dashboard

// snapshotsMsg carries a fresh copy of every node's state.
type snapshotsMsg []models.Snapshot

// reloadDoneMsg reports the outcome of a fleet reload.
type reloadDoneMsg struct {
	err error
}

// TickMsg drives the once-a-second refresh so countdowns stay live.
type TickMsg time.Time

// Update handles all messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		return m, tea.Batch(m.refreshCmd(), tickCmd())

	case snapshotsMsg:
		m.snaps = msg
		if m.selected >= len(m.snaps) && len(m.snaps) > 0 {
			m.selected = len(m.snaps) - 1
		}
		return m, nil

	case reloadDoneMsg:
		m.reloading = false
		if msg.err != nil {
			m.statusMsg = "reload failed: " + msg.err.Error()
		} else {
			m.statusMsg = "fleet reloaded"
			m.selected = 0
		}
		return m, m.refreshCmd()
	}

	return m, nil
}

// handleKeyPress handles keyboard input
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		return m, tea.Quit

	case "left", "h":
		if len(m.snaps) > 0 {
			m.selected = (m.selected - 1 + len(m.snaps)) % len(m.snaps)
		}
		return m, nil

	case "right", "l":
		if len(m.snaps) > 0 {
			m.selected = (m.selected + 1) % len(m.snaps)
		}
		return m, nil

	case "r", "R":
		if m.reloading {
			return m, nil
		}
		m.reloading = true
		m.statusMsg = "reloading fleet..."
		return m, m.reloadCmd()

	case "?":
		m.showHelp = !m.showHelp
		return m, nil
	}

	return m, nil
}
