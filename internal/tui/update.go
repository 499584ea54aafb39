package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/progress"
)

// Update handles Bubbletea messages and updates model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		return m, nil

	case StartMsg:
		s := m.ensure(msg.QualifiedName)
		s.status = StatusRunning
		return m, nil

	case DoneMsg:
		s := m.ensure(msg.QualifiedName)
		wasTerminal := isTerminal(s.status)
		if msg.Cached {
			s.status = StatusCached
		} else {
			s.status = StatusDone
		}
		s.duration = msg.Duration
		if !wasTerminal {
			m.finished++
		}
		return m, m.progressCmd()

	case FailedMsg:
		s := m.ensure(msg.QualifiedName)
		wasTerminal := isTerminal(s.status)
		s.status = StatusFailed
		s.duration = msg.Duration
		if msg.Err != nil {
			s.message = msg.Err.Error()
		}
		if !wasTerminal {
			m.finished++
		}
		return m, m.progressCmd()

	case CancelledMsg:
		s := m.ensure(msg.QualifiedName)
		wasTerminal := isTerminal(s.status)
		s.status = StatusCancelled
		if !wasTerminal {
			m.finished++
		}
		return m, m.progressCmd()

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.cancelled = true
			return m, tea.Quit
		}

	case progress.FrameMsg:
		newModel, cmd := m.prog.Update(msg)
		if p, ok := newModel.(progress.Model); ok {
			m.prog = p
		}
		return m, cmd
	}

	return m, nil
}

func (m Model) progressCmd() tea.Cmd {
	if m.total == 0 {
		return nil
	}
	return m.prog.SetPercent(float64(m.finished) / float64(m.total))
}
