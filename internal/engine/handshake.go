package engine

import (
	"context"
	"fmt"
	"sync"
)

// rendezvous is a set of single-use decision slots keyed by string. One
// goroutine parks in Request until another supplies the answer through
// Resolve, or until the context is cancelled. Each slot is consumed
// exactly once; resolving an unknown or already-answered key is a no-op,
// so UI dismissal and cancellation can safely race with the user's click.
type rendezvous struct {
	mu      sync.Mutex
	pending map[string]chan bool
}

func newRendezvous() *rendezvous {
	return &rendezvous{
		pending: make(map[string]chan bool),
	}
}

// Request blocks until a decision for key arrives or ctx is cancelled.
// At most one outstanding request per key is allowed.
func (r *rendezvous) Request(ctx context.Context, key string) (bool, error) {
	r.mu.Lock()
	if _, exists := r.pending[key]; exists {
		r.mu.Unlock()
		return false, fmt.Errorf("decision already pending for %s", key)
	}
	ch := make(chan bool, 1)
	r.pending[key] = ch
	r.mu.Unlock()

	select {
	case allow := <-ch:
		return allow, nil
	case <-ctx.Done():
		r.drop(key)
		return false, ctx.Err()
	}
}

// Resolve delivers the decision for key and retires the slot.
func (r *rendezvous) Resolve(key string, allow bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.pending[key]
	if !ok {
		return
	}
	delete(r.pending, key)
	ch <- allow // buffered, never blocks
}

func (r *rendezvous) drop(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, key)
}
