package tui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	// Color palette
	neonCyan    = lipgloss.Color("#00FFFF")
	neonMagenta = lipgloss.Color("#FF00FF")
	neonGreen   = lipgloss.Color("#39FF14")
	neonYellow  = lipgloss.Color("#FFFF00")
	neonOrange  = lipgloss.Color("#FF6700")
	neonRed     = lipgloss.Color("#FF0000")
	darkBg      = lipgloss.Color("#0A0E27")
	dimWhite    = lipgloss.Color("#B0B0B0")

	// Logo style
	logoStyle = lipgloss.NewStyle().
			Foreground(neonCyan).
			Bold(true).
			Padding(1, 0).
			Align(lipgloss.Center)

	// Panel styles
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(neonMagenta).
			Padding(0, 2)

	titleStyle = lipgloss.NewStyle().
			Background(neonMagenta).
			Foreground(darkBg).
			Bold(true).
			Padding(0, 1)

	// Stats styles
	statsLabelStyle = lipgloss.NewStyle().
			Foreground(neonCyan).
			Bold(true)

	statsValueStyle = lipgloss.NewStyle().
			Foreground(neonYellow)

	// Status styles
	connectedStyle = lipgloss.NewStyle().
			Foreground(neonGreen).
			Bold(true)

	idleStyle = lipgloss.NewStyle().
			Foreground(neonOrange).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(neonRed).
			Bold(true)

	// Log styles
	logLineStyle = lipgloss.NewStyle().
			Foreground(dimWhite)

	// Pager and help styles
	pagerStyle = lipgloss.NewStyle().
			Foreground(neonMagenta).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Padding(1, 0, 0, 2)

	statusMsgStyle = lipgloss.NewStyle().
			Foreground(neonYellow).
			Italic(true)
)
