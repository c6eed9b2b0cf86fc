package engine

import (
	"github.com/ytget/dlqueue/internal/model"
)

// EventSink receives job lifecycle events. All methods are invoked from a
// single dispatcher goroutine, in the order the events were produced for
// each job; no ordering is guaranteed between different jobs. A slow sink
// delays delivery but never reorders or drops events.
type EventSink interface {
	OnJobTitle(jobID, title string)
	OnJobProgress(jobID string, percent float64)
	OnJobStatus(jobID, text string)
	OnJobError(jobID, message string)
	OnJobFinished(jobID string, success bool)

	// OnOverwritePrompt asks the controller whether the existing file at
	// path may be overwritten; the answer arrives via ResolveOverwrite.
	OnOverwritePrompt(jobID, path string)

	// OnSessionDuplicatePrompt asks whether a URL already handled this
	// session should be downloaded again; the answer arrives via
	// ResolveSessionDuplicate.
	OnSessionDuplicatePrompt(url string)
}

// Engine defines the controller-facing surface of the download engine.
type Engine interface {
	SubmitURLs(urls []string, opts model.Options)
	SetCeiling(n int)
	CancelJob(jobID string)
	ResolveOverwrite(jobID string, allow bool)
	ResolveSessionDuplicate(url string, redownload bool)
	Job(id string) (model.Job, bool)
	Jobs() []model.Job
	Idle() bool
	Shutdown()
}
