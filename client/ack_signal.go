package client

import (
	"context"
	"sync"
)

// ackSignal is a one-shot future resolved either by the device's start ack
// notification or by a subscription failure, whichever happens first.
type ackSignal struct {
	mu   sync.Mutex
	done bool
	err  error
	ch   chan struct{}
}

func newAckSignal() *ackSignal {
	return &ackSignal{ch: make(chan struct{})}
}

func (a *ackSignal) resolve() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.done {
		return
	}
	a.done = true
	close(a.ch)
}

func (a *ackSignal) reject(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.done {
		return
	}
	a.done = true
	a.err = err
	close(a.ch)
}

func (a *ackSignal) wait(ctx context.Context) error {
	select {
	case <-a.ch:
		a.mu.Lock()
		defer a.mu.Unlock()
		return a.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
