// Package partition implements the device-side A/B partition table (§3):
// two app slots, a persisted per-slot image state, and the verbs
// device.FlashWriter and device.BootCommit need to write a standby image
// and switch boot allegiance without ever leaving the device unbootable.
package partition

import "time"

// Slot identifies one of the two OTA app partitions, OTA_0 / OTA_1 (§3).
type Slot int

const (
	SlotA Slot = iota
	SlotB
)

func (s Slot) String() string {
	if s == SlotA {
		return "A"
	}
	return "B"
}

// ImageState is a partition's lifecycle state (§3). Every app slot carries
// exactly one at all times.
type ImageState int

const (
	StateNew ImageState = iota
	StatePendingVerify
	StateValid
	StateInvalid
	StateAborted
)

func (s ImageState) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StatePendingVerify:
		return "PENDING_VERIFY"
	case StateValid:
		return "VALID"
	case StateInvalid:
		return "INVALID"
	case StateAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// UnknownSize requests an open-ended OTA write from Begin, matching the
// library's own ota_begin(target, UNKNOWN_SIZE) call (§4.6 step 4).
const UnknownSize = 0

// MaxImageSize is the largest firmware image Begin/Write may accept: one
// app partition's flash region minus the trailing sector reserved for its
// persisted ImageState footer (§3). device.FlashWriter rejects any
// fw_length above this before it ever calls Begin.
const MaxImageSize = 0x1F0000 - 4096

// Handle identifies one in-progress OTA write, returned by Begin and
// threaded through Write/End.
type Handle interface{}

// API is the device host's OTA partition primitive (§6 "device host
// provides"): get_running_partition, partition lookup, ota_begin/write/end,
// set_boot_partition, mark_app_valid_cancel_rollback, get_state_partition.
type API interface {
	// Current returns the partition the device booted from.
	Current() (Slot, error)
	// Standby returns the partition not currently running — the only
	// valid OTA write target (§3).
	Standby() (Slot, error)

	// State reads a partition's persisted image state.
	State(s Slot) (ImageState, error)
	// SetState persists a partition's image state.
	SetState(s Slot, state ImageState) error

	// Begin opens target for writing and returns a handle for subsequent
	// Write/End calls.
	Begin(target Slot, size uint32) (Handle, error)
	// Write appends data to the handle's target partition.
	Write(h Handle, data []byte) error
	// End finalizes the write. The target is not eligible to boot unless
	// End succeeds and SetBootPartition is called afterward (§3).
	End(h Handle) error

	// SetBootPartition selects s as the next-boot partition. Must only be
	// called after a successful End (§3, §4.6 step 6).
	SetBootPartition(s Slot) error

	// Reboot restarts the device after delay. Does not return on success.
	Reboot(delay time.Duration)
}
