package engine

import (
	"context"
	"testing"
	"time"
)

func TestRendezvousDeliversDecision(t *testing.T) {
	r := newRendezvous()

	got := make(chan bool, 1)
	go func() {
		allow, err := r.Request(context.Background(), "job-1")
		if err != nil {
			t.Errorf("Expected no error, got %v", err)
		}
		got <- allow
	}()

	// Wait until the request is parked before answering.
	deadline := time.After(testTimeout)
	for {
		r.mu.Lock()
		_, parked := r.pending["job-1"]
		r.mu.Unlock()
		if parked {
			break
		}
		select {
		case <-deadline:
			t.Fatal("Timed out waiting for request to park")
		case <-time.After(time.Millisecond):
		}
	}

	r.Resolve("job-1", true)

	select {
	case allow := <-got:
		if !allow {
			t.Error("Expected allow=true, got false")
		}
	case <-time.After(testTimeout):
		t.Fatal("Timed out waiting for decision")
	}
}

func TestRendezvousContextCancellation(t *testing.T) {
	r := newRendezvous()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := r.Request(ctx, "job-2")
		done <- err
	}()

	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(testTimeout):
		t.Fatal("Timed out waiting for cancelled request to return")
	}

	// The slot must be retired so a later Resolve is a no-op.
	r.Resolve("job-2", true)
	r.mu.Lock()
	if len(r.pending) != 0 {
		t.Errorf("Expected no pending slots, got %d", len(r.pending))
	}
	r.mu.Unlock()
}

func TestRendezvousResolveUnknownKeyIsNoop(t *testing.T) {
	r := newRendezvous()
	r.Resolve("never-requested", true)
	r.Resolve("never-requested", false)
}

func TestRendezvousRejectsDuplicateRequest(t *testing.T) {
	r := newRendezvous()

	started := make(chan struct{})
	go func() {
		close(started)
		r.Request(context.Background(), "job-3")
	}()
	<-started

	deadline := time.After(testTimeout)
	for {
		r.mu.Lock()
		_, parked := r.pending["job-3"]
		r.mu.Unlock()
		if parked {
			break
		}
		select {
		case <-deadline:
			t.Fatal("Timed out waiting for first request to park")
		case <-time.After(time.Millisecond):
		}
	}

	if _, err := r.Request(context.Background(), "job-3"); err == nil {
		t.Error("Expected an error for a second request on the same key")
	}

	r.Resolve("job-3", false)
}

func TestRendezvousIndependentKeys(t *testing.T) {
	r := newRendezvous()

	results := make(chan bool, 2)
	for _, key := range []string{"a", "b"} {
		key := key
		go func() {
			allow, _ := r.Request(context.Background(), key)
			if key == "a" {
				results <- allow
			} else {
				results <- !allow
			}
		}()
	}

	deadline := time.After(testTimeout)
	for {
		r.mu.Lock()
		parked := len(r.pending) == 2
		r.mu.Unlock()
		if parked {
			break
		}
		select {
		case <-deadline:
			t.Fatal("Timed out waiting for requests to park")
		case <-time.After(time.Millisecond):
		}
	}

	r.Resolve("a", true)
	r.Resolve("b", false)

	for i := 0; i < 2; i++ {
		select {
		case ok := <-results:
			if !ok {
				t.Error("Expected each key to receive its own decision")
			}
		case <-time.After(testTimeout):
			t.Fatal("Timed out waiting for decisions")
		}
	}
}
