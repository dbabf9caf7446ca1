package client

import (
	"context"
	"sync"
)

// fakeTransport is a deterministic, in-process stand-in for a real BLE
// central (client/goble.Transport) used to exercise SessionController,
// NotificationMux, and ProgressTracker together without a radio.
type fakeTransport struct {
	mu       sync.Mutex
	resolved map[Characteristic]bool
	writes   []fakeWrite
	writeErr error
	subs     map[Characteristic]*fakeSub

	onCommandWrite func(f *fakeTransport, payload []byte)
	onDataWrite    func(f *fakeTransport, payload []byte)
}

type fakeWrite struct {
	ch      Characteristic
	payload []byte
}

type fakeSub struct {
	notify chan []byte
	errCh  chan error
	closed bool
}

func newFakeTransport() *fakeTransport {
	resolved := make(map[Characteristic]bool, len(allCharacteristics))
	for _, ch := range allCharacteristics {
		resolved[ch] = true
	}
	return &fakeTransport{
		resolved: resolved,
		subs:     make(map[Characteristic]*fakeSub),
	}
}

func (f *fakeTransport) Resolved(ch Characteristic) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolved[ch]
}

func (f *fakeTransport) Write(ctx context.Context, ch Characteristic, payload []byte) error {
	f.mu.Lock()
	writeErr := f.writeErr
	f.writes = append(f.writes, fakeWrite{ch: ch, payload: append([]byte{}, payload...)})
	onCommand := f.onCommandWrite
	onData := f.onDataWrite
	f.mu.Unlock()

	if writeErr != nil {
		return writeErr
	}

	switch ch {
	case CharCommand:
		if onCommand != nil {
			onCommand(f, payload)
		}
	case CharRecvFW:
		if onData != nil {
			onData(f, payload)
		}
	}
	return nil
}

func (f *fakeTransport) Subscribe(ctx context.Context, ch Characteristic) (<-chan []byte, <-chan error, error) {
	f.mu.Lock()
	sub := &fakeSub{notify: make(chan []byte, 64), errCh: make(chan error, 1)}
	f.subs[ch] = sub
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		defer f.mu.Unlock()
		if !sub.closed {
			sub.closed = true
			close(sub.notify)
			close(sub.errCh)
		}
	}()

	return sub.notify, sub.errCh, nil
}

// notify delivers a notification payload on ch, if a subscription is live
// and not yet torn down.
func (f *fakeTransport) notify(ch Characteristic, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub := f.subs[ch]
	if sub == nil || sub.closed {
		return
	}
	sub.notify <- payload
}

// failSubscription delivers a subscription error on ch.
func (f *fakeTransport) failSubscription(ch Characteristic, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub := f.subs[ch]
	if sub == nil || sub.closed {
		return
	}
	sub.errCh <- err
}
