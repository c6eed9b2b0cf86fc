package engine

import (
	"context"

	cache "github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"

	"github.com/ytget/dlqueue/internal/fetch"
	"github.com/ytget/dlqueue/internal/model"
	"github.com/ytget/dlqueue/internal/platform"
)

// Admission decisions
type admitDecision int

const (
	admitAccept admitDecision = iota
	admitSkipSession
	admitNeedsOverwrite
)

type admitResult struct {
	decision admitDecision
	path     string // expected output path when known
}

// duplicateGate decides whether an item URL may enter the pipeline. It
// combines the session registry (URLs already admitted during this
// process) with a cheap early check for an existing output file. The
// early disk check can race with other jobs' writes, so its result only
// pre-fills the expected path; the authoritative check runs inside the
// fetch, atomically with the write.
type duplicateGate struct {
	registry *cache.Cache
	fetcher  fetch.Fetcher
	prompts  *rendezvous
	dispatch *dispatcher
}

func newDuplicateGate(fetcher fetch.Fetcher, prompts *rendezvous, dispatch *dispatcher) *duplicateGate {
	return &duplicateGate{
		registry: cache.New(cache.NoExpiration, 0),
		fetcher:  fetcher,
		prompts:  prompts,
		dispatch: dispatch,
	}
}

// Admit runs the session check and then the disk check for one item URL.
func (g *duplicateGate) Admit(ctx context.Context, url string, opts model.Options) admitResult {
	// Session check first: a URL already admitted this session needs an
	// explicit redownload confirmation before the fetcher is consulted.
	// Add is atomic, so two concurrent submissions of the same URL admit
	// exactly one without confirmation.
	if err := g.registry.Add(url, true, cache.NoExpiration); err != nil {
		g.dispatch.SessionPrompt(url)
		redownload, promptErr := g.prompts.Request(ctx, url)
		if promptErr != nil || !redownload {
			return admitResult{decision: admitSkipSession}
		}
	}

	// Disk check. A metadata failure here must not block the job; the
	// late check during the fetch decides.
	path, err := g.fetcher.ExpectedOutputPath(ctx, url, opts)
	if err != nil {
		log.Warnf("duplicate disk check failed for %s, proceeding: %v", url, err)
		return admitResult{decision: admitAccept}
	}

	if platform.FileExists(path) {
		return admitResult{decision: admitNeedsOverwrite, path: path}
	}
	return admitResult{decision: admitAccept, path: path}
}
