package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ytget/dlqueue/internal/fetch"
	"github.com/ytget/dlqueue/internal/model"
	"github.com/ytget/dlqueue/internal/platform"
)

const testTimeout = 5 * time.Second

// fakeFetcher is a controllable Fetcher for engine tests. Behavior is
// overridden per test through the function fields; unset fields fall back
// to instant success.
type fakeFetcher struct {
	mu        sync.Mutex
	resolveFn func(ctx context.Context, url string, opts model.Options) (*fetch.Metadata, error)
	pathFn    func(url string) (string, error)
	fetchFn   func(ctx context.Context, url string, opts model.Options, overwrite bool, events fetch.Events) error

	pathCalls  map[string]int
	fetchCalls []fetchCall
}

type fetchCall struct {
	url       string
	overwrite bool
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pathCalls: make(map[string]int)}
}

func (f *fakeFetcher) Resolve(ctx context.Context, url string, opts model.Options) (*fetch.Metadata, error) {
	if f.resolveFn != nil {
		return f.resolveFn(ctx, url, opts)
	}
	return &fetch.Metadata{Title: "Video " + url}, nil
}

func (f *fakeFetcher) ExpectedOutputPath(ctx context.Context, url string, opts model.Options) (string, error) {
	f.mu.Lock()
	f.pathCalls[url]++
	f.mu.Unlock()

	if f.pathFn != nil {
		return f.pathFn(url)
	}
	return "/nonexistent/downloads/out.mp4", nil
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string, opts model.Options, overwrite bool, events fetch.Events) error {
	f.mu.Lock()
	f.fetchCalls = append(f.fetchCalls, fetchCall{url: url, overwrite: overwrite})
	f.mu.Unlock()

	if f.fetchFn != nil {
		return f.fetchFn(ctx, url, opts, overwrite, events)
	}
	return nil
}

func (f *fakeFetcher) pathCallCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pathCalls[url]
}

func (f *fakeFetcher) calls() []fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]fetchCall, len(f.fetchCalls))
	copy(out, f.fetchCalls)
	return out
}

// collisionFetch returns a fetchFn that reports a destination collision
// while path exists and overwrite is not allowed.
func collisionFetch(path string) func(context.Context, string, model.Options, bool, fetch.Events) error {
	return func(ctx context.Context, url string, opts model.Options, overwrite bool, events fetch.Events) error {
		if !overwrite && platform.FileExists(path) {
			return &fetch.DestinationExistsError{Path: path}
		}
		return nil
	}
}

// blockingFetch returns a fetchFn that parks until the per-URL release
// channel is closed or the context is cancelled.
func blockingFetch(release map[string]chan struct{}) func(context.Context, string, model.Options, bool, fetch.Events) error {
	return func(ctx context.Context, url string, opts model.Options, overwrite bool, events fetch.Events) error {
		select {
		case <-release[url]:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

type finishedEvent struct {
	jobID   string
	success bool
}

type overwritePromptEvent struct {
	jobID string
	path  string
}

// recordingSink captures every event and exposes channels for the
// asynchronous ones tests must wait on.
type recordingSink struct {
	mu       sync.Mutex
	titles   map[string][]string
	progress map[string][]float64
	statuses map[string][]string
	errs     map[string][]string
	finished map[string][]bool

	finishedCh  chan finishedEvent
	overwriteCh chan overwritePromptEvent
	sessionCh   chan string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		titles:      make(map[string][]string),
		progress:    make(map[string][]float64),
		statuses:    make(map[string][]string),
		errs:        make(map[string][]string),
		finished:    make(map[string][]bool),
		finishedCh:  make(chan finishedEvent, 64),
		overwriteCh: make(chan overwritePromptEvent, 16),
		sessionCh:   make(chan string, 16),
	}
}

func (r *recordingSink) OnJobTitle(jobID, title string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.titles[jobID] = append(r.titles[jobID], title)
}

func (r *recordingSink) OnJobProgress(jobID string, percent float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress[jobID] = append(r.progress[jobID], percent)
}

func (r *recordingSink) OnJobStatus(jobID, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[jobID] = append(r.statuses[jobID], text)
}

func (r *recordingSink) OnJobError(jobID, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs[jobID] = append(r.errs[jobID], message)
}

func (r *recordingSink) OnJobFinished(jobID string, success bool) {
	r.mu.Lock()
	r.finished[jobID] = append(r.finished[jobID], success)
	r.mu.Unlock()
	r.finishedCh <- finishedEvent{jobID: jobID, success: success}
}

func (r *recordingSink) OnOverwritePrompt(jobID, path string) {
	r.overwriteCh <- overwritePromptEvent{jobID: jobID, path: path}
}

func (r *recordingSink) OnSessionDuplicatePrompt(url string) {
	r.sessionCh <- url
}

func (r *recordingSink) progressFor(jobID string) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]float64, len(r.progress[jobID]))
	copy(out, r.progress[jobID])
	return out
}

func (r *recordingSink) finishedFor(jobID string) []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bool, len(r.finished[jobID]))
	copy(out, r.finished[jobID])
	return out
}

func (r *recordingSink) errorsFor(jobID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.errs[jobID]))
	copy(out, r.errs[jobID])
	return out
}

func (r *recordingSink) waitFinished(t *testing.T) finishedEvent {
	t.Helper()
	select {
	case ev := <-r.finishedCh:
		return ev
	case <-time.After(testTimeout):
		t.Fatal("Timed out waiting for a finished event")
		return finishedEvent{}
	}
}

func (r *recordingSink) waitOverwritePrompt(t *testing.T) overwritePromptEvent {
	t.Helper()
	select {
	case ev := <-r.overwriteCh:
		return ev
	case <-time.After(testTimeout):
		t.Fatal("Timed out waiting for an overwrite prompt")
		return overwritePromptEvent{}
	}
}

func (r *recordingSink) waitSessionPrompt(t *testing.T) string {
	t.Helper()
	select {
	case url := <-r.sessionCh:
		return url
	case <-time.After(testTimeout):
		t.Fatal("Timed out waiting for a session duplicate prompt")
		return ""
	}
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

// countInState counts jobs currently in the given state.
func countInState(svc *Service, state model.JobState) int {
	n := 0
	for _, job := range svc.Jobs() {
		if job.State == state {
			n++
		}
	}
	return n
}

// jobByURL finds the job for a source URL.
func jobByURL(svc *Service, url string) (model.Job, bool) {
	for _, job := range svc.Jobs() {
		if job.SourceURL == url {
			return job, true
		}
	}
	return model.Job{}, false
}
