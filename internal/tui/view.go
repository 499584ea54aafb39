package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// View renders the current state of the model.
func (m Model) View() string {
	var sections []string

	sections = append(sections, titleStyle.Render("jolt build"))
	sections = append(sections, sectionStyle.Render("Progress"), m.prog.View())

	if len(m.order) > 0 {
		sections = append(sections, sectionStyle.Render("Tasks"), m.renderTasks())
	}

	summary := fmt.Sprintf("%d/%d finished", m.finished, m.total)
	if m.cancelled {
		summary += " (cancelled)"
	}
	sections = append(sections, sectionStyle.Render("Summary"), summaryStyle.Render(summary))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderTasks() string {
	var lines []string
	for _, qn := range m.order {
		s := m.tasks[qn]
		if s == nil {
			continue
		}
		line := fmt.Sprintf(" %s %s", StatusIcon(s.status), qn)
		if strings.TrimSpace(s.message) != "" {
			line = fmt.Sprintf("%s — %s", line, s.message)
		}
		if s.duration > 0 {
			line = fmt.Sprintf("%s (%s)", line, s.duration.Truncate(10*time.Millisecond))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
