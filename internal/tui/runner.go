package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// Runner manages a TUI program and feeds it step events from an operation.
// Its step methods satisfy the sync package's Progress interface.
type Runner struct {
	program *tea.Program
	model   Model
	mu      sync.Mutex
	started bool
}

// NewRunner creates a new TUI runner. The header line names the operation.
func NewRunner(header string) *Runner {
	return &Runner{
		model: New(header),
	}
}

// Start starts the TUI program in a goroutine and returns immediately.
// The program runs until Done() is called.
func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	r.program = tea.NewProgram(r.model)
	r.started = true

	go func() {
		_, _ = r.program.Run()
	}()

	return nil
}

// Wait blocks until the TUI program exits.
func (r *Runner) Wait() {
	if r.program != nil {
		r.program.Wait()
	}
}

// StepQueued adds a pending step.
func (r *Runner) StepQueued(id, title string) {
	if r.program != nil {
		r.program.Send(AddStepMsg{Step: &Step{ID: id, Title: title, Status: StatusPending}})
	}
}

// StepStarted marks a step as running.
func (r *Runner) StepStarted(id string) {
	if r.program != nil {
		r.program.Send(UpdateStatusMsg{ID: id, Status: StatusRunning})
	}
}

// StepDone marks a step as successfully finished.
func (r *Runner) StepDone(id string) {
	if r.program != nil {
		r.program.Send(UpdateStatusMsg{ID: id, Status: StatusDone})
	}
}

// StepFailed marks a step as failed.
func (r *Runner) StepFailed(id string, err error) {
	if r.program == nil {
		return
	}
	msg := UpdateStatusMsg{ID: id, Status: StatusError}
	if err != nil {
		msg.Error = err.Error()
	}
	r.program.Send(msg)
}

// Done signals that the operation is complete.
func (r *Runner) Done(err error) {
	if r.program != nil {
		r.program.Send(DoneMsg{Err: err})
	}
}
