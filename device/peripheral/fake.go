//go:build !tinygo

package peripheral

import "sync"

// Fake is an in-process Peripheral for host tests: Deliver feeds a write
// straight to the registered handler, and Notified records every Notify
// call for assertions.
type Fake struct {
	mu       sync.Mutex
	handlers map[Characteristic]WriteHandler
	notified []FakeNotification
	closed   bool
}

// FakeNotification is one recorded Notify call.
type FakeNotification struct {
	Char    Characteristic
	Payload []byte
}

// NewFake returns an empty Fake.
func NewFake() *Fake {
	return &Fake{handlers: make(map[Characteristic]WriteHandler)}
}

func (f *Fake) OnWrite(ch Characteristic, fn WriteHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[ch] = fn
}

func (f *Fake) Notify(ch Characteristic, payload []byte) error {
	f.mu.Lock()
	f.notified = append(f.notified, FakeNotification{Char: ch, Payload: append([]byte{}, payload...)})
	f.mu.Unlock()
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Deliver simulates an inbound write to ch, invoking the registered
// handler synchronously if one is set.
func (f *Fake) Deliver(ch Characteristic, payload []byte) {
	f.mu.Lock()
	fn := f.handlers[ch]
	f.mu.Unlock()
	if fn != nil {
		fn(ch, payload)
	}
}

// Notified returns every Notify call recorded so far.
func (f *Fake) Notified() []FakeNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeNotification, len(f.notified))
	copy(out, f.notified)
	return out
}

// Closed reports whether Close has been called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
