// Package peripheral is the device-side GATT-server abstraction §6 assumes
// exists: four characteristics under one service, each writable and/or
// notifiable. It is deliberately minimal — an attribute table with four
// entries, not a general GATT library.
package peripheral

import "fmt"

// Characteristic identifies one of the four OTA attributes (§6).
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
		return fmt.Sprintf("characteristic(%d)", int(c))
	}
}

// handle is this attribute table's on-wire identifier for a characteristic,
// analogous to a GATT attribute handle but scoped to just these four slots.
type handle uint8

var handles = map[Characteristic]handle{
	CharRecvFW:   0x20,
	CharProgress: 0x21,
	CharCommand:  0x22,
	CharCustomer: 0x23,
}

var characteristics = map[handle]Characteristic{
	0x20: CharRecvFW,
	0x21: CharProgress,
	0x22: CharCommand,
	0x23: CharCustomer,
}

// WriteHandler is invoked, off the transport's read loop, for every
// incoming write to ch.
type WriteHandler func(ch Characteristic, payload []byte)

// Peripheral notifies connected centrals and dispatches inbound writes to
// registered handlers (§4.5, §6). Implementations own exactly one
// connection at a time — this protocol has no multi-client story (§9
// Non-goals).
type Peripheral interface {
	// OnWrite registers fn as the handler for writes to ch, replacing any
	// previous registration.
	OnWrite(ch Characteristic, fn WriteHandler)
	// Notify sends payload as a notification on ch.
	Notify(ch Characteristic, payload []byte) error
	// Close tears down the underlying transport.
	Close() error
}
