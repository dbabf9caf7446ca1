//go:build !tinygo

// Host backend: an in-memory partition table so device.FlashWriter and
// device.BootCommit are exercised by go test without a tinygo toolchain,
// the same role the donor firmware's bindicator_stub.go plays for its
// LED/MQTT half on non-tinygo builds.
package partition

import (
	"errors"
	"sync"
	"time"
)

var ErrNotAppType = errors.New("partition: slot is not app-type")

type memHandle struct {
	target Slot
	buf    []byte
}

// Memory is an in-process partition.API backed by byte buffers. Reboot is
// recorded rather than performed; tests observe it via Rebooted/OnReboot.
type Memory struct {
	mu      sync.Mutex
	current Slot
	states  map[Slot]ImageState
	data    map[Slot][]byte

	rebooted   bool
	rebootedAt time.Time
	bootTarget Slot

	// OnReboot, if set, is invoked synchronously from Reboot after the
	// recorded delay would have elapsed — tests use it to observe the
	// reboot without actually sleeping out the full device timeout.
	OnReboot func(target Slot)
}

// NewMemory returns a Memory backend booted from running with the given
// initial image state.
func NewMemory(running Slot, runningState ImageState) *Memory {
	return &Memory{
		current: running,
		states: map[Slot]ImageState{
			running:       runningState,
			other(running): StateNew,
		},
		data:       map[Slot][]byte{},
		bootTarget: running,
	}
}

func other(s Slot) Slot {
	if s == SlotA {
		return SlotB
	}
	return SlotA
}

func (m *Memory) Current() (Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, nil
}

func (m *Memory) Standby() (Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return other(m.current), nil
}

func (m *Memory) State(s Slot) (ImageState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[s], nil
}

func (m *Memory) SetState(s Slot, state ImageState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[s] = state
	return nil
}

func (m *Memory) Begin(target Slot, size uint32) (Handle, error) {
	return &memHandle{target: target}, nil
}

func (m *Memory) Write(h Handle, data []byte) error {
	hh := h.(*memHandle)
	hh.buf = append(hh.buf, data...)
	return nil
}

func (m *Memory) End(h Handle) error {
	hh := h.(*memHandle)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[hh.target] = hh.buf
	return nil
}

func (m *Memory) SetBootPartition(s Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bootTarget = s
	return nil
}

func (m *Memory) Reboot(delay time.Duration) {
	m.mu.Lock()
	m.rebooted = true
	m.rebootedAt = time.Now()
	target := m.bootTarget
	m.current = target
	cb := m.OnReboot
	m.mu.Unlock()

	if cb != nil {
		cb(target)
	}
}

// Written returns the bytes committed to s via End, for test assertions.
func (m *Memory) Written(s Slot) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[s]
}

// Rebooted reports whether Reboot has been called.
func (m *Memory) Rebooted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rebooted
}
