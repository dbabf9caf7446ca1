package client

import "context"

// Characteristic identifies one of the four GATT characteristics the
// protocol uses (§6). The engine never looks at their UUIDs directly; a
// Transport implementation owns resolving short UUID 0x8020-0x8023 under
// service 0x8018 to concrete handles.
type Characteristic int

const (
	CharRecvFW Characteristic = iota
	CharProgress
	CharCommand
	CharCustomer
)

func (c Characteristic) String() string {
	switch c {
	case CharRecvFW:
		return "recv-fw"
	case CharProgress:
		return "progress"
	case CharCommand:
		return "command"
	case CharCustomer:
		return "customer"
	default:
		return "unknown"
	}
}

// Transport is the host-provided connected-link primitive the engine
// drives (§6 "environment / collaborator interfaces"). The engine assumes
// write-with-response and subscribe-for-notifications primitives exist; it
// never touches pairing, MTU negotiation, or discovery. See client/goble
// for a concrete implementation over a real BLE GATT central.
type Transport interface {
	// Resolved reports whether ch's characteristic handle was discovered.
	// SessionController checks this for all four characteristics before
	// starting a session (§4.2 preconditions).
	Resolved(ch Characteristic) bool

	// Write performs a write-with-response of payload to ch.
	Write(ctx context.Context, ch Characteristic, payload []byte) error

	// Subscribe registers for notifications on ch. The returned channel
	// carries notification payloads in delivery order; it is closed when
	// ctx is cancelled. The error channel carries at most one value — a
	// subscription failure — and is then closed.
	Subscribe(ctx context.Context, ch Characteristic) (notifications <-chan []byte, subErr <-chan error, err error)
}
