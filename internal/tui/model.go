// Package tui provides a terminal user interface for displaying upload progress.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// StepStatus represents the state of one upload step.
type StepStatus int

const (
	StatusPending StepStatus = iota
	StatusRunning
	StatusDone
	StatusError
)

// Step is one unit of work shown in the TUI: a batch flush, a callout
// create, or a table create.
type Step struct {
	ID     string
	Title  string
	Status StepStatus
	Error  string
}

// maxRecentSteps is the number of recent completed/failed steps to show.
const maxRecentSteps = 5

// Model is the Bubble Tea model for the progress TUI.
type Model struct {
	header string

	// All steps indexed by ID for quick lookup
	steps map[string]*Step

	// Counts for progress display
	pendingCount int
	runningCount int
	doneCount    int
	errorCount   int
	totalCount   int

	// Currently running steps
	runningSteps []*Step

	// Recent completed/failed steps (scrolling buffer)
	recentSteps []*Step

	spinner  spinner.Model
	done     bool
	err      error
	quitting bool

	// Styles
	titleStyle    lipgloss.Style
	headerStyle   lipgloss.Style
	countStyle    lipgloss.Style
	doneStyle     lipgloss.Style
	errorStyle    lipgloss.Style
	runningStyle  lipgloss.Style
	progressStyle lipgloss.Style
	dimStyle      lipgloss.Style
}

// Messages for updating the TUI from operations.
type (
	// AddStepMsg adds a new step (starts as pending).
	AddStepMsg struct {
		Step *Step
	}

	// UpdateStatusMsg updates the status of a step.
	UpdateStatusMsg struct {
		ID     string
		Status StepStatus
		Error  string
	}

	// DoneMsg signals that the operation is complete.
	DoneMsg struct {
		Err error
	}
)

// New creates a new TUI model. The header line names the operation being
// displayed.
func New(header string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return Model{
		header:       header,
		steps:        make(map[string]*Step),
		runningSteps: make([]*Step, 0),
		recentSteps:  make([]*Step, 0),
		spinner:      s,

		titleStyle:    lipgloss.NewStyle().Bold(true),
		headerStyle:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")),
		countStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		doneStyle:     lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		errorStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		runningStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("205")),
		progressStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("205")),
		dimStyle:      lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case AddStepMsg:
		step := msg.Step
		step.Status = StatusPending
		m.steps[step.ID] = step
		m.pendingCount++
		m.totalCount++
		return m, nil

	case UpdateStatusMsg:
		step, ok := m.steps[msg.ID]
		if !ok {
			return m, nil
		}

		oldStatus := step.Status
		newStatus := msg.Status
		step.Status = newStatus
		step.Error = msg.Error

		// Update counts
		switch oldStatus {
		case StatusPending:
			m.pendingCount--
		case StatusRunning:
			m.runningCount--
		case StatusDone:
			m.doneCount--
		case StatusError:
			m.errorCount--
		}

		switch newStatus {
		case StatusPending:
			m.pendingCount++
		case StatusRunning:
			m.runningCount++
		case StatusDone:
			m.doneCount++
		case StatusError:
			m.errorCount++
		}

		// Update running steps list
		if oldStatus == StatusRunning && newStatus != StatusRunning {
			m.runningSteps = removeFromSlice(m.runningSteps, step)
		}
		if newStatus == StatusRunning && oldStatus != StatusRunning {
			m.runningSteps = append(m.runningSteps, step)
		}

		// Add to recent steps if completed or failed
		if newStatus == StatusDone || newStatus == StatusError {
			m.recentSteps = append(m.recentSteps, step)
			// Keep only the last N steps
			if len(m.recentSteps) > maxRecentSteps {
				m.recentSteps = m.recentSteps[len(m.recentSteps)-maxRecentSteps:]
			}
		}

		return m, nil

	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit
	}

	return m, nil
}

// removeFromSlice removes a step from a slice by pointer.
func removeFromSlice(slice []*Step, step *Step) []*Step {
	for i, v := range slice {
		if v == step {
			return append(slice[:i], slice[i+1:]...)
		}
	}
	return slice
}

// View renders the UI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	// Header
	b.WriteString("\n")
	b.WriteString(m.headerStyle.Render(m.header))
	b.WriteString("\n")

	// Progress bar
	completed := m.doneCount + m.errorCount
	if m.totalCount > 0 {
		percent := float64(completed) / float64(m.totalCount) * 100
		barWidth := 40
		filledWidth := int(float64(barWidth) * float64(completed) / float64(m.totalCount))
		if filledWidth > barWidth {
			filledWidth = barWidth
		}

		bar := strings.Repeat("━", filledWidth) + strings.Repeat("─", barWidth-filledWidth)
		b.WriteString(m.progressStyle.Render(bar))
		b.WriteString(fmt.Sprintf(" %.0f%% (%d/%d)\n", percent, completed, m.totalCount))
	}

	// Status counts
	counts := fmt.Sprintf("Pending: %d  Running: %d  Done: %d  Errors: %d",
		m.pendingCount, m.runningCount, m.doneCount, m.errorCount)
	b.WriteString(m.countStyle.Render(counts))
	b.WriteString("\n\n")

	// Currently running section
	if len(m.runningSteps) > 0 {
		b.WriteString(m.dimStyle.Render("In flight:"))
		b.WriteString("\n")
		for _, step := range m.runningSteps {
			b.WriteString(m.renderRunningStep(step))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	// Recent steps section
	if len(m.recentSteps) > 0 {
		b.WriteString(m.dimStyle.Render("Recent:"))
		b.WriteString("\n")
		for _, step := range m.recentSteps {
			b.WriteString(m.renderRecentStep(step))
			b.WriteString("\n")
		}
	}

	// Completion message
	if m.done {
		b.WriteString("\n")
		if m.err != nil {
			b.WriteString(m.errorStyle.Render("✗ Failed: " + m.err.Error()))
		} else {
			b.WriteString(m.doneStyle.Render("✓ Complete"))
		}
		b.WriteString("\n")
	}

	return b.String()
}

// renderRunningStep renders a currently running step.
func (m Model) renderRunningStep(step *Step) string {
	return fmt.Sprintf("  %s %s %s",
		m.spinner.View(),
		m.titleStyle.Render(truncate(step.Title, 40)),
		m.dimStyle.Render("("+truncate(step.ID, 12)+")"),
	)
}

// renderRecentStep renders a completed or failed step.
func (m Model) renderRecentStep(step *Step) string {
	var status string
	switch step.Status {
	case StatusDone:
		status = m.doneStyle.Render("✓")
	case StatusError:
		status = m.errorStyle.Render("✗ " + truncate(step.Error, 30))
	}

	return fmt.Sprintf("  %s %s", status, m.dimStyle.Render(truncate(step.Title, 40)))
}

// truncate shortens s to at most n runes of display, with an ellipsis.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// Steps returns all steps.
func (m *Model) Steps() map[string]*Step {
	return m.steps
}
