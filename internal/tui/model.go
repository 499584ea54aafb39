// Package tui implements the optional progress view for a running build:
// a live list of tasks with their status (pending, running, cached,
// completed, failed, or cancelled) and an overall progress bar.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
)

// Status is a task's display state in the progress view.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCached    Status = "cached"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// StartMsg reports that a task began running.
type StartMsg struct{ QualifiedName string }

// DoneMsg reports that a task finished, successfully or served from cache.
type DoneMsg struct {
	QualifiedName string
	Cached        bool
	Duration      time.Duration
}

// FailedMsg reports that a task's run or publish callable returned an error.
type FailedMsg struct {
	QualifiedName string
	Err           error
	Duration      time.Duration
}

// CancelledMsg reports that a task was cancelled as an ancestor of a failure.
type CancelledMsg struct{ QualifiedName string }

type tickMsg struct{}

type taskState struct {
	status   Status
	message  string
	duration time.Duration
}

// Model is the Bubbletea state for the build progress view.
type Model struct {
	tasks map[string]*taskState
	order []string

	total     int
	finished  int
	cancelled bool

	prog progress.Model
}

// NewModel constructs a Model that will track exactly the tasks named.
func NewModel(qualifiedNames []string) Model {
	m := Model{
		tasks: make(map[string]*taskState, len(qualifiedNames)),
		order: append([]string(nil), qualifiedNames...),
		total: len(qualifiedNames),
		prog:  progress.New(progress.WithDefaultGradient()),
	}
	for _, qn := range qualifiedNames {
		m.tasks[qn] = &taskState{status: StatusPending}
	}
	return m
}

// Init schedules a single tick, which Update ignores; the progress bar
// animates through its own FrameMsg updates.
func (m Model) Init() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg { return tickMsg{} })
}

// IsFinished reports whether every tracked task reached a terminal state.
func (m Model) IsFinished() bool {
	return m.total > 0 && m.finished >= m.total
}

func (m *Model) ensure(qn string) *taskState {
	s, ok := m.tasks[qn]
	if !ok {
		s = &taskState{status: StatusPending}
		m.tasks[qn] = s
		m.order = append(m.order, qn)
		m.total++
	}
	return s
}

func isTerminal(s Status) bool {
	switch s {
	case StatusCached, StatusDone, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}
