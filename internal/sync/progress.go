package sync

// Progress receives upload milestones for display. Implementations must be
// fast; calls happen inline between API calls.
type Progress interface {
	// StepQueued announces a step before it runs.
	StepQueued(id, title string)
	// StepStarted marks a queued step as running.
	StepStarted(id string)
	// StepDone marks a running step as finished.
	StepDone(id string)
	// StepFailed marks a running step as failed. The operation may still
	// continue when the failure has a fallback.
	StepFailed(id string, err error)
}

// NopProgress ignores all milestones. Used when no TUI is attached.
type NopProgress struct{}

func (NopProgress) StepQueued(string, string) {}
func (NopProgress) StepStarted(string)        {}
func (NopProgress) StepDone(string)           {}
func (NopProgress) StepFailed(string, error)  {}
