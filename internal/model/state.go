package model

// JobState represents the lifecycle state of a download job
type JobState string

const (
	// StateQueued means the job is admitted and waiting for a worker slot
	StateQueued JobState = "Queued"

	// StateExpanding means the submitted URL is being resolved, possibly
	// fanning out into multiple item jobs
	StateExpanding JobState = "Expanding"

	// StateCheckingDuplicate means the job is passing the duplicate gate
	StateCheckingDuplicate JobState = "CheckingDuplicate"

	// StateAwaitingOverwrite means the worker is blocked waiting for an
	// overwrite decision from the controller
	StateAwaitingOverwrite JobState = "AwaitingOverwriteDecision"

	// StateRunning means a worker is driving the transfer
	StateRunning JobState = "Running"

	// StateCancelled means the job was cancelled by the user
	StateCancelled JobState = "Cancelled"

	// StateFailed means the transfer failed with an error
	StateFailed JobState = "Failed"

	// StateCompleted means the transfer finished successfully
	StateCompleted JobState = "Completed"
)

// String returns the string representation of JobState
func (s JobState) String() string {
	return string(s)
}

// IsTerminal returns true if no further transitions are allowed from s
func (s JobState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// OccupiesSlot returns true if a job in this state counts against the
// scheduler's concurrency ceiling. A job blocked on an overwrite decision
// still holds its slot so the ceiling can never be exceeded.
func (s JobState) OccupiesSlot() bool {
	return s == StateRunning || s == StateAwaitingOverwrite
}

// CanTransition reports whether moving from s to next is a legal edge of
// the job state machine.
func (s JobState) CanTransition(next JobState) bool {
	switch s {
	case StateExpanding:
		return next == StateCheckingDuplicate || next == StateFailed || next == StateCancelled
	case StateCheckingDuplicate:
		return next == StateQueued || next == StateCancelled
	case StateQueued:
		return next == StateRunning || next == StateCancelled
	case StateRunning:
		return next == StateAwaitingOverwrite || next == StateCompleted ||
			next == StateFailed || next == StateCancelled
	case StateAwaitingOverwrite:
		return next == StateRunning || next == StateCancelled
	default:
		return false
	}
}
