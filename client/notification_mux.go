package client

import (
	"context"
	"sync"
)

// EventKind discriminates the events NotificationMux routes (§4.3).
type EventKind int

const (
	EventStartAck EventKind = iota
	EventProgress
	EventWriteEcho
	EventCustomerEcho
	EventSubscriptionError
)

// Event is one routed notification. Progress is only meaningful when Kind
// is EventProgress; Err only when Kind is EventSubscriptionError.
type Event struct {
	Kind     EventKind
	Which    Characteristic
	Progress uint8
	Err      error
}

// NotificationMux subscribes to all four characteristics and fans their
// notifications into one typed event stream (§4.3). The recv-fw
// subscription exists only to catch subscription errors on that
// characteristic; the spec leaves open whether the peer ever notifies on
// it, so no data is interpreted from it either way (§9 open questions).
type NotificationMux struct {
	transport Transport
	events    chan Event
	cancel    context.CancelFunc
}

// NewNotificationMux builds a mux over transport. Call Start to begin
// routing, and drain Events() until it closes.
func NewNotificationMux(transport Transport) *NotificationMux {
	return &NotificationMux{
		transport: transport,
		events:    make(chan Event, 16),
	}
}

// Events returns the routed event stream. It closes once every
// subscription has ended (normally only after Stop).
func (m *NotificationMux) Events() <-chan Event {
	return m.events
}

var muxSubscriptions = [...]struct {
	ch   Characteristic
	kind EventKind
}{
	{CharRecvFW, EventWriteEcho},
	{CharProgress, EventProgress},
	{CharCommand, EventStartAck},
	{CharCustomer, EventCustomerEcho},
}

// Start subscribes to recv-fw, progress, command, and customer and begins
// routing their notifications. It returns once all four subscriptions are
// established or the first one fails.
func (m *NotificationMux) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	var wg sync.WaitGroup
	for _, s := range muxSubscriptions {
		notifCh, errCh, err := m.transport.Subscribe(ctx, s.ch)
		if err != nil {
			cancel()
			return err
		}
		wg.Add(1)
		go m.pump(&wg, s.ch, s.kind, notifCh, errCh)
	}

	go func() {
		wg.Wait()
		close(m.events)
	}()

	return nil
}

func (m *NotificationMux) pump(wg *sync.WaitGroup, which Characteristic, kind EventKind, notifCh <-chan []byte, errCh <-chan error) {
	defer wg.Done()
	for {
		// errCh is checked first, non-blocking, on every iteration: a
		// transport whose Subscribe call fails immediately closes notifCh
		// and queues exactly one error on errCh in the same instant
		// (client/goble.Transport.Subscribe does this), and a plain select
		// between the two would pick its pseudo-randomly-ready case —
		// sometimes the closed notifCh — and silently drop the error.
		select {
		case err, ok := <-errCh:
			if ok {
				m.emit(Event{Kind: EventSubscriptionError, Which: which, Err: err})
			}
			return
		default:
		}

		select {
		case payload, ok := <-notifCh:
			if !ok {
				if err, ok := <-errCh; ok {
					m.emit(Event{Kind: EventSubscriptionError, Which: which, Err: err})
				}
				return
			}
			ev := Event{Kind: kind, Which: which}
			if kind == EventProgress && len(payload) > 0 {
				ev.Progress = payload[0]
			}
			m.emit(ev)
		case err, ok := <-errCh:
			if !ok {
				continue
			}
			m.emit(Event{Kind: EventSubscriptionError, Which: which, Err: err})
			return
		}
	}
}

func (m *NotificationMux) emit(ev Event) {
	select {
	case m.events <- ev:
	default:
		// A stalled consumer must not block the subscription goroutines.
		// When the buffer is full the event is dropped, whatever its kind:
		// a start ack, a subscription error or a progress value (including
		// the last one) can be lost this way.
	}
}

// Stop tears down every subscription. Safe to call more than once and
// safe to call before Start returns.
func (m *NotificationMux) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
}
