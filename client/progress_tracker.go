package client

import (
	"context"
	"sync"
)

// ProgressTracker holds the monotonic device-reported progress percentage
// for one session and lets the streaming loop wait for a threshold to be
// crossed (§4.4).
type ProgressTracker struct {
	mu       sync.Mutex
	current  int
	waiters  []*progressWaiter
	rejected bool
	err      error
}

type progressWaiter struct {
	threshold int
	done      chan error
}

// NewProgressTracker returns a tracker starting at 0.
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{}
}

// Update records a new device-reported percentage. Values that do not
// advance the current percentage are ignored (§4.4 "monotonic").
func (t *ProgressTracker) Update(p int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rejected || p <= t.current {
		return
	}
	t.current = p

	remaining := t.waiters[:0]
	for _, w := range t.waiters {
		if w.threshold <= p {
			w.done <- nil
		} else {
			remaining = append(remaining, w)
		}
	}
	t.waiters = remaining
}

// WaitFor blocks until the current percentage reaches threshold, ctx is
// done, or the tracker is rejected — whichever happens first.
func (t *ProgressTracker) WaitFor(ctx context.Context, threshold int) error {
	t.mu.Lock()
	if t.rejected {
		err := t.err
		t.mu.Unlock()
		return err
	}
	if t.current >= threshold {
		t.mu.Unlock()
		return nil
	}
	w := &progressWaiter{threshold: threshold, done: make(chan error, 1)}
	t.waiters = append(t.waiters, w)
	t.mu.Unlock()

	select {
	case err := <-w.done:
		return err
	case <-ctx.Done():
		t.forget(w)
		return ctx.Err()
	}
}

// RejectAll fails every outstanding waiter with err and marks the tracker
// unusable — any later Update or WaitFor call is a no-op / returns err.
// Idempotent: a second call has no additional effect (§8 "cleanup
// idempotence").
func (t *ProgressTracker) RejectAll(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rejected {
		return
	}
	t.rejected = true
	t.err = err
	for _, w := range t.waiters {
		w.done <- err
	}
	t.waiters = nil
}

func (t *ProgressTracker) forget(target *progressWaiter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, w := range t.waiters {
		if w == target {
			t.waiters = append(t.waiters[:i], t.waiters[i+1:]...)
			return
		}
	}
}
