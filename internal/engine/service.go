package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ytget/dlqueue/internal/fetch"
	"github.com/ytget/dlqueue/internal/model"
	"github.com/ytget/dlqueue/internal/platform"
)

// Concurrency limits and retry tuning
const (
	DefaultCeiling  = 2
	MaxCeiling      = 10
	expandParallel  = 4
	maxFetchRetries = 1
	retryBackoff    = 2 * time.Second
)

var _ Engine = (*Service)(nil)

// transition applies a job state change, checking it against the legal
// edge table. The change is applied regardless, so a missed edge surfaces
// loudly in logs instead of wedging the job.
func transition(job *model.Job, next model.JobState) {
	if !job.State.CanTransition(next) {
		log.Warnf("unexpected state transition for job %s: %s -> %s", job.ID, job.State, next)
	}
	job.State = next
}

// jobEntry is the scheduler's bookkeeping for one job.
type jobEntry struct {
	job    *model.Job
	cancel context.CancelFunc // set when the worker starts
}

// Service owns the job queue, the running set and the concurrency ceiling.
// All mutation of shared scheduler state is serialized through mu; each
// running job is owned by exactly one worker goroutine.
type Service struct {
	fetcher   fetch.Fetcher
	dispatch  *dispatcher
	gate      *duplicateGate
	expand    *expander
	overwrite *rendezvous // overwrite decisions keyed by job ID
	session   *rendezvous // redownload decisions keyed by URL

	mu        sync.Mutex
	queue     []*jobEntry
	jobs      map[string]*jobEntry
	ceiling   int
	active    int // Running + AwaitingOverwriteDecision
	expanding int // submissions between SubmitURLs and admission
	closed    bool

	baseCtx   context.Context
	baseStop  context.CancelFunc
	workers   sync.WaitGroup
	expanders sync.WaitGroup
}

// NewService creates an engine backed by the given fetcher, delivering
// events to sink. A nil sink is allowed; events are then discarded.
func NewService(fetcher fetch.Fetcher, sink EventSink, ceiling int) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	dispatch := newDispatcher(sink)
	session := newRendezvous()

	return &Service{
		fetcher:   fetcher,
		dispatch:  dispatch,
		gate:      newDuplicateGate(fetcher, session, dispatch),
		expand:    &expander{fetcher: fetcher},
		overwrite: newRendezvous(),
		session:   session,
		jobs:      make(map[string]*jobEntry),
		ceiling:   clampCeiling(ceiling),
		baseCtx:   ctx,
		baseStop:  cancel,
	}
}

// SubmitURLs accepts raw URL strings with an options snapshot. Expansion
// and admission run off the calling goroutine; the call never blocks on
// the fetcher.
func (s *Service) SubmitURLs(urls []string, opts model.Options) {
	var g errgroup.Group
	g.SetLimit(expandParallel)

	for _, raw := range urls {
		url := strings.TrimSpace(raw)
		if url == "" {
			continue
		}
		s.mu.Lock()
		s.expanding++
		s.mu.Unlock()
		g.Go(func() error {
			defer func() {
				s.mu.Lock()
				s.expanding--
				s.mu.Unlock()
			}()
			s.processSubmission(url, opts)
			return nil
		})
	}

	s.expanders.Add(1)
	go func() {
		defer s.expanders.Done()
		_ = g.Wait()
	}()
}

// processSubmission carries one submitted URL through expansion and the
// duplicate gate. Failures before any job exists are reported against the
// original URL, which acts as the ID of a virtual, never-run job.
func (s *Service) processSubmission(rawURL string, opts model.Options) {
	if err := platform.ValidateURL(rawURL); err != nil {
		log.Warnf("rejecting submission: %v", err)
		s.dispatch.Error(rawURL, err.Error())
		s.dispatch.Finished(rawURL, false)
		return
	}

	// The submission walks the Expanding state; if it resolves to a single
	// item this same job continues through the pipeline, while a
	// collection fans out into fresh jobs per item.
	sub := model.NewJob(rawURL, opts, model.StateExpanding)

	exp, err := s.expand.Expand(s.baseCtx, rawURL, opts)
	if err != nil {
		log.Warnf("expansion failed for %s: %v", rawURL, err)
		s.dispatch.Error(rawURL, fmt.Sprintf("expansion failed: %v", err))
		s.dispatch.Finished(rawURL, false)
		return
	}

	single := len(exp.items) == 1 && exp.items[0].URL == rawURL

	for _, item := range exp.items {
		var job *model.Job
		if single {
			job = sub
			transition(job, model.StateCheckingDuplicate)
		} else {
			job = model.NewJob(item.URL, opts, model.StateCheckingDuplicate)
		}
		if item.Title != "" {
			job.Title = item.Title
		}
		s.admitAndEnqueue(job)
	}
}

// admitAndEnqueue runs the duplicate gate for one item job and, if it is
// accepted, appends it to the FIFO queue and triggers promotion.
func (s *Service) admitAndEnqueue(job *model.Job) {
	res := s.gate.Admit(s.baseCtx, job.SourceURL, job.Options)
	switch res.decision {
	case admitSkipSession:
		log.Infof("skipping %s: already handled this session", job.SourceURL)
		return
	case admitAccept, admitNeedsOverwrite:
		// An existing file is not resolved here: the overwrite handshake
		// runs once the job holds a worker slot, right before any bytes
		// are written.
		job.ExpectedOutputPath = res.path
	}

	transition(job, model.StateQueued)
	s.dispatch.Status(job.ID, "Queued")
	if job.Title != "" {
		s.dispatch.Title(job.ID, job.Title)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	entry := &jobEntry{job: job}
	s.jobs[job.ID] = entry
	s.queue = append(s.queue, entry)
	s.promoteLocked()
}

// promoteLocked starts queued jobs while slots are free. FIFO: first
// submitted, first started. Callers hold mu.
func (s *Service) promoteLocked() {
	for !s.closed && s.active < s.ceiling && len(s.queue) > 0 {
		entry := s.queue[0]
		s.queue = s.queue[1:]
		if entry.job.State != model.StateQueued {
			continue
		}

		transition(entry.job, model.StateRunning)
		entry.job.StartedAt = time.Now()

		var ctx context.Context
		var cancel context.CancelFunc
		if timeout := entry.job.Options.Timeout; timeout > 0 {
			ctx, cancel = context.WithTimeout(s.baseCtx, timeout)
		} else {
			ctx, cancel = context.WithCancel(s.baseCtx)
		}
		entry.cancel = cancel

		s.active++
		s.workers.Add(1)
		go s.runJob(ctx, entry)
	}
}

// runJob drives one job through the fetcher. It is the only goroutine
// that mutates the job while it runs.
func (s *Service) runJob(ctx context.Context, entry *jobEntry) {
	defer s.workers.Done()
	defer entry.cancel()

	job := entry.job
	s.dispatch.Status(job.ID, "Starting download...")

	events := fetch.Events{
		OnProgress: func(pct float64) { s.recordProgress(job, pct) },
		OnTitle:    func(title string) { s.recordTitle(job, title) },
		OnStatus:   func(text string) { s.dispatch.Status(job.ID, text) },
	}

	err := s.fetchWithRetry(ctx, job, false, events)

	var exists *fetch.DestinationExistsError
	if errors.As(err, &exists) {
		allow, decisionErr := s.awaitOverwriteDecision(ctx, job, exists.Path)
		switch {
		case decisionErr != nil:
			// Cancellation while waiting is an implicit skip.
			s.dispatch.Status(job.ID, "Cancelled")
			s.finish(entry, model.StateCancelled, "")
			return
		case !allow:
			s.dispatch.Status(job.ID, "Skipped (file exists).")
			s.finish(entry, model.StateCancelled, "")
			return
		default:
			err = s.fetchWithRetry(ctx, job, true, events)
		}
	}

	switch {
	case err == nil:
		s.recordProgress(job, 100)
		s.dispatch.Status(job.ID, "Download completed successfully.")
		s.finish(entry, model.StateCompleted, "")
	case errors.Is(err, context.Canceled) || job.CancelRequested:
		s.dispatch.Status(job.ID, "Cancelled")
		s.finish(entry, model.StateCancelled, "")
	case errors.Is(err, context.DeadlineExceeded):
		s.finish(entry, model.StateFailed, "download timed out")
	default:
		s.finish(entry, model.StateFailed, err.Error())
	}
}

// awaitOverwriteDecision parks the worker until the controller answers or
// the job is cancelled. The job keeps occupying its slot for the whole
// wait so the ceiling can never be exceeded.
func (s *Service) awaitOverwriteDecision(ctx context.Context, job *model.Job, path string) (bool, error) {
	s.mu.Lock()
	transition(job, model.StateAwaitingOverwrite)
	job.ExpectedOutputPath = path
	s.mu.Unlock()

	s.dispatch.OverwritePrompt(job.ID, path)
	allow, err := s.overwrite.Request(ctx, job.ID)

	if err == nil && allow {
		s.mu.Lock()
		transition(job, model.StateRunning)
		s.mu.Unlock()
	}
	return allow, err
}

// fetchWithRetry attempts the transfer with one retry for transient
// failures. Collisions and cancellations are never retried.
func (s *Service) fetchWithRetry(ctx context.Context, job *model.Job, overwrite bool, events fetch.Events) error {
	var lastErr error

	for attempt := 0; attempt <= maxFetchRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			log.Infof("retrying download for job %s, attempt %d", job.ID, attempt+1)
		}

		err := s.fetcher.Fetch(ctx, job.SourceURL, job.Options, overwrite, events)
		if err == nil {
			return nil
		}

		var exists *fetch.DestinationExistsError
		if errors.As(err, &exists) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = err
		log.Warnf("download attempt %d failed for job %s: %v", attempt+1, job.ID, err)
	}

	return lastErr
}

// finish applies the terminal transition, frees the slot and reports the
// result exactly once. The worker has stopped emitting by the time this
// runs, so the finished event is always the job's last.
func (s *Service) finish(entry *jobEntry, state model.JobState, errMsg string) {
	job := entry.job

	s.mu.Lock()
	if job.State.IsTerminal() {
		s.mu.Unlock()
		return
	}
	occupied := job.State.OccupiesSlot()
	transition(job, state)
	job.LastError = errMsg
	job.FinishedAt = time.Now()
	if occupied {
		s.active--
	}
	s.promoteLocked()
	s.mu.Unlock()

	if errMsg != "" {
		s.dispatch.Error(job.ID, errMsg)
	}
	s.dispatch.Finished(job.ID, state == model.StateCompleted)
}

// recordProgress updates job progress, keeping it monotone, and forwards
// it to the sink.
func (s *Service) recordProgress(job *model.Job, pct float64) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	s.mu.Lock()
	if job.State.IsTerminal() || pct <= job.ProgressPercent {
		s.mu.Unlock()
		return
	}
	job.ProgressPercent = pct
	s.mu.Unlock()

	s.dispatch.Progress(job.ID, pct)
}

// recordTitle stores the resolved title once and forwards it to the sink.
func (s *Service) recordTitle(job *model.Job, title string) {
	if title == "" {
		return
	}

	s.mu.Lock()
	if job.Title != "" || job.State.IsTerminal() {
		s.mu.Unlock()
		return
	}
	job.Title = title
	s.mu.Unlock()

	s.dispatch.Title(job.ID, title)
}

// CancelJob requests cancellation. Queued jobs never start; running jobs
// unwind cooperatively once their worker observes the cancelled context.
// Requesting cancellation twice is harmless.
func (s *Service) CancelJob(jobID string) {
	s.mu.Lock()
	entry, ok := s.jobs[jobID]
	if !ok || entry.job.State.IsTerminal() || entry.job.CancelRequested {
		s.mu.Unlock()
		return
	}
	entry.job.CancelRequested = true
	state := entry.job.State
	cancel := entry.cancel
	if state == model.StateQueued {
		s.removeQueuedLocked(entry)
	}
	s.mu.Unlock()

	switch {
	case state == model.StateQueued:
		s.dispatch.Status(jobID, "Cancelled")
		s.finish(entry, model.StateCancelled, "")
	case cancel != nil:
		// The overwrite wait, if any, aborts as an implicit skip.
		cancel()
	}
}

// removeQueuedLocked drops entry from the FIFO queue. Callers hold mu.
func (s *Service) removeQueuedLocked(target *jobEntry) {
	for i, entry := range s.queue {
		if entry == target {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

// ResolveOverwrite supplies the controller's answer to an overwrite
// prompt. Safe to call from any goroutine; a second call for an already
// resolved or cancelled request is a no-op.
func (s *Service) ResolveOverwrite(jobID string, allow bool) {
	s.overwrite.Resolve(jobID, allow)
}

// ResolveSessionDuplicate supplies the controller's answer to a session
// duplicate prompt.
func (s *Service) ResolveSessionDuplicate(url string, redownload bool) {
	s.session.Resolve(url, redownload)
}

// SetCeiling adjusts the concurrency ceiling. Lowering it never preempts
// running jobs; raising it promotes queued jobs immediately.
func (s *Service) SetCeiling(n int) {
	n = clampCeiling(n)

	s.mu.Lock()
	defer s.mu.Unlock()
	grew := n > s.ceiling
	s.ceiling = n
	if grew {
		s.promoteLocked()
	}
}

// Idle reports whether no submission is being expanded, no job is queued
// and no slot is occupied. A controller that submitted everything it has
// can stop once Idle turns true.
func (s *Service) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expanding == 0 && s.active == 0 && len(s.queue) == 0
}

// Ceiling returns the current concurrency ceiling.
func (s *Service) Ceiling() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ceiling
}

// Job returns a snapshot of one job.
func (s *Service) Job(id string) (model.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.jobs[id]
	if !ok {
		return model.Job{}, false
	}
	return *entry.job, true
}

// Jobs returns snapshots of all known jobs.
func (s *Service) Jobs() []model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Job, 0, len(s.jobs))
	for _, entry := range s.jobs {
		out = append(out, *entry.job)
	}
	return out
}

// Shutdown cancels all work and waits for every worker to unwind before
// closing the dispatcher: stop emitting, join workers, then notify no
// further.
func (s *Service) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	queued := s.queue
	s.queue = nil
	s.mu.Unlock()

	for _, entry := range queued {
		entry.job.CancelRequested = true
		s.finish(entry, model.StateCancelled, "")
	}

	s.baseStop() // unblocks fetches, expansions and handshake waits
	s.expanders.Wait()
	s.workers.Wait()
	s.dispatch.Close()
}

func clampCeiling(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxCeiling {
		return MaxCeiling
	}
	return n
}
