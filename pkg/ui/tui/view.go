package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"membitnode/pkg/models"
)

// View renders the entire dashboard
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, m.renderHeader())

	snap, ok := m.selectedSnap()
	if !ok {
		sections = append(sections, panelStyle.Width(m.width-4).Render(
			m.spinner.View()+" waiting for nodes..."))
	} else {
		left := m.renderAccountPanel(snap)
		right := m.renderLogPanel(snap)
		sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right))
	}

	if m.statusMsg != "" {
		sections = append(sections, statusMsgStyle.Render(m.statusMsg))
	}

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("←/→ switch node · r reload · ? help · q quit"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderHeader renders the title bar with the node pager
func (m Model) renderHeader() string {
	title := logoStyle.Render("MEMBIT NODE RUNNER")

	if len(m.snaps) == 0 {
		return title
	}
	pager := pagerStyle.Render(fmt.Sprintf("node %d / %d", m.selected+1, len(m.snaps)))
	return lipgloss.JoinVertical(lipgloss.Center, title, pager)
}

// renderAccountPanel renders the selected node's account stats
func (m Model) renderAccountPanel(snap models.Snapshot) string {
	width := (m.width - 8) / 2

	rows := []string{
		titleStyle.Render(" ACCOUNT "),
		"",
		statRow("Handle:", orPlaceholder(snap.Handle)),
		statRow("User ID:", orPlaceholder(snap.UserID)),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Status:"), renderStatus(snap.Status)),
		"",
		statRow("Total Points:", fmt.Sprintf("%.2f", snap.TotalPoints)),
		statRow("Epoch Points:", fmt.Sprintf("%.2f", snap.EstimatedEpochPoints)),
		statRow("Eligible Posts:", fmt.Sprintf("%d", snap.EligiblePosts)),
		statRow("Epoch:", fmt.Sprintf("#%d", snap.EpochID)),
		"",
		statRow("Next Epoch:", snap.NextEpochCountdown),
		statRow("Next Scroll:", snap.NextScrollCountdown),
		"",
		statRow("IP Address:", orPlaceholder(snap.IPAddress)),
		statRow("Proxy:", snap.ProxyDesc),
	}

	content := lipgloss.JoinVertical(lipgloss.Left, rows...)
	return panelStyle.Width(width).Render(content)
}

// renderLogPanel renders the selected node's recent log lines
func (m Model) renderLogPanel(snap models.Snapshot) string {
	width := (m.width - 8) / 2
	visible := m.height - 12
	if visible < 3 {
		visible = 3
	}

	lines := snap.Logs
	if len(lines) > visible {
		lines = lines[len(lines)-visible:]
	}

	rows := []string{titleStyle.Render(" LOG "), ""}
	if len(lines) == 0 {
		rows = append(rows, logLineStyle.Render("no activity yet"))
	}
	for _, line := range lines {
		rows = append(rows, logLineStyle.Render(truncate(line, width-6)))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, rows...)
	return panelStyle.Width(width).Render(content)
}

// renderHelp renders the expanded help panel
func (m Model) renderHelp() string {
	help := []string{
		"←/h       previous node",
		"→/l       next node",
		"r         reload accounts and proxies",
		"?         toggle this help",
		"q/ctrl+c  quit",
	}
	return helpStyle.Render(strings.Join(help, "\n"))
}

func renderStatus(status models.NodeStatus) string {
	switch status {
	case models.StatusConnected:
		return connectedStyle.Render(string(status))
	case models.StatusError:
		return errorStyle.Render(string(status))
	default:
		return idleStyle.Render(string(status))
	}
}

func statRow(label, value string) string {
	return fmt.Sprintf("%s %s", statsLabelStyle.Render(label), statsValueStyle.Render(value))
}

func orPlaceholder(s string) string {
	if s == "" {
		return "..."
	}
	return s
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 1 {
		return s[:max]
	}
	return s[:max-1] + "…"
}
