package engine

// Workers never call the sink directly: every event goes through a single
// dispatcher goroutine so a single-threaded presentation layer only ever
// sees one call at a time, in production order.

const dispatchBuffer = 1024

type eventKind int

const (
	eventTitle eventKind = iota
	eventProgress
	eventStatus
	eventError
	eventFinished
	eventOverwritePrompt
	eventSessionPrompt
)

type event struct {
	kind    eventKind
	jobID   string
	text    string
	percent float64
	success bool
}

type dispatcher struct {
	sink EventSink
	ch   chan event
	done chan struct{}
}

func newDispatcher(sink EventSink) *dispatcher {
	d := &dispatcher{
		sink: sink,
		ch:   make(chan event, dispatchBuffer),
		done: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *dispatcher) run() {
	defer close(d.done)
	for ev := range d.ch {
		if d.sink == nil {
			continue
		}
		switch ev.kind {
		case eventTitle:
			d.sink.OnJobTitle(ev.jobID, ev.text)
		case eventProgress:
			d.sink.OnJobProgress(ev.jobID, ev.percent)
		case eventStatus:
			d.sink.OnJobStatus(ev.jobID, ev.text)
		case eventError:
			d.sink.OnJobError(ev.jobID, ev.text)
		case eventFinished:
			d.sink.OnJobFinished(ev.jobID, ev.success)
		case eventOverwritePrompt:
			d.sink.OnOverwritePrompt(ev.jobID, ev.text)
		case eventSessionPrompt:
			d.sink.OnSessionDuplicatePrompt(ev.text)
		}
	}
}

// Close drains remaining events and stops the dispatcher goroutine. No
// emits may happen after Close.
func (d *dispatcher) Close() {
	close(d.ch)
	<-d.done
}

func (d *dispatcher) Title(jobID, title string) {
	d.ch <- event{kind: eventTitle, jobID: jobID, text: title}
}

func (d *dispatcher) Progress(jobID string, percent float64) {
	d.ch <- event{kind: eventProgress, jobID: jobID, percent: percent}
}

func (d *dispatcher) Status(jobID, text string) {
	d.ch <- event{kind: eventStatus, jobID: jobID, text: text}
}

func (d *dispatcher) Error(jobID, message string) {
	d.ch <- event{kind: eventError, jobID: jobID, text: message}
}

func (d *dispatcher) Finished(jobID string, success bool) {
	d.ch <- event{kind: eventFinished, jobID: jobID, success: success}
}

func (d *dispatcher) OverwritePrompt(jobID, path string) {
	d.ch <- event{kind: eventOverwritePrompt, jobID: jobID, text: path}
}

func (d *dispatcher) SessionPrompt(url string) {
	d.ch <- event{kind: eventSessionPrompt, text: url}
}
