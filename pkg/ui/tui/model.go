package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"membitnode/pkg/models"
)

// SnapshotProvider hands the dashboard a fresh view of every node,
// satisfied by the runner.
type SnapshotProvider interface {
	Snapshots() []models.Snapshot
}

// Reloader rebuilds the node fleet from the account and proxy files,
// satisfied by the runner.
type Reloader interface {
	Reload() error
}

// Model is the dashboard's bubbletea model: one node visible at a time,
// with the arrow keys paging through the fleet.
type Model struct {
	provider SnapshotProvider
	reloader Reloader

	spinner  spinner.Model
	snaps    []models.Snapshot
	selected int

	width     int
	height    int
	showHelp  bool
	reloading bool
	statusMsg string
}

// NewModel creates a dashboard model over the given provider.
func NewModel(provider SnapshotProvider, reloader Reloader) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(neonCyan)

	return Model{
		provider: provider,
		reloader: reloader,
		spinner:  s,
	}
}

// Init starts the refresh loop.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refreshCmd(), tickCmd(), m.spinner.Tick)
}

// selectedSnap returns the snapshot currently on screen.
func (m Model) selectedSnap() (models.Snapshot, bool) {
	if len(m.snaps) == 0 {
		return models.Snapshot{}, false
	}
	idx := m.selected
	if idx >= len(m.snaps) {
		idx = len(m.snaps) - 1
	}
	return m.snaps[idx], true
}

func (m Model) refreshCmd() tea.Cmd {
	provider := m.provider
	return func() tea.Msg {
		return snapshotsMsg(provider.Snapshots())
	}
}

func (m Model) reloadCmd() tea.Cmd {
	reloader := m.reloader
	return func() tea.Msg {
		if reloader == nil {
			return reloadDoneMsg{}
		}
		return reloadDoneMsg{err: reloader.Reload()}
	}
}

// tickCmd schedules the next periodic refresh.
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
