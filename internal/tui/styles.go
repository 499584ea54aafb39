package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).MarginTop(1)

	doneStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cachedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	runningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	failedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	cancelledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	pendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	summaryStyle   = lipgloss.NewStyle().MarginTop(1)
)

// StatusIcon returns the glyph representing a task's status.
func StatusIcon(status Status) string {
	switch status {
	case StatusDone:
		return doneStyle.Render("✓")
	case StatusCached:
		return cachedStyle.Render("⚡")
	case StatusRunning:
		return runningStyle.Render("⏳")
	case StatusFailed:
		return failedStyle.Render("✗")
	case StatusCancelled:
		return cancelledStyle.Render("⊘")
	default:
		return pendingStyle.Render("…")
	}
}
