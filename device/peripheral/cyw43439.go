//go:build tinygo

package peripheral

import (
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/soypat/cyw43439"
)

// frame opcodes for the minimal attribute protocol carried over the
// cyw43439's HCI byte stream (§6's "write-with-response" / "subscribe for
// notifications" primitives, given a concrete wire shape here since this
// pack carries no GATT/ATT/L2CAP library — only the radio's raw HCI
// transport, adapted from other_examples' cyw43439 bluetooth.go).
const (
	opWrite  = 0x01
	opNotify = 0x02
)

var errUnknownHandle = errors.New("peripheral: unknown attribute handle")

// Radio is a Peripheral backed by a cyw43439 device's HCI transport. Each
// frame is {opcode byte}{handle byte}{len uint16 LE}{payload}.
type Radio struct {
	rw     io.ReadWriter
	logger *slog.Logger

	mu       sync.Mutex
	handlers map[Characteristic]WriteHandler

	closeOnce sync.Once
	done      chan struct{}
}

// NewRadio starts a read pump over dev's HCI transport.
func NewRadio(dev *cyw43439.Device, logger *slog.Logger) (*Radio, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rw, err := dev.HCIReaderWriter()
	if err != nil {
		return nil, err
	}
	r := &Radio{
		rw:       rw,
		logger:   logger,
		handlers: make(map[Characteristic]WriteHandler),
		done:     make(chan struct{}),
	}
	go r.readLoop()
	return r, nil
}

func (r *Radio) OnWrite(ch Characteristic, fn WriteHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[ch] = fn
}

func (r *Radio) Notify(ch Characteristic, payload []byte) error {
	h, ok := handles[ch]
	if !ok {
		return errUnknownHandle
	}
	frame := make([]byte, 4+len(payload))
	frame[0] = opNotify
	frame[1] = byte(h)
	binary.LittleEndian.PutUint16(frame[2:4], uint16(len(payload)))
	copy(frame[4:], payload)
	_, err := r.rw.Write(frame)
	return err
}

func (r *Radio) Close() error {
	r.closeOnce.Do(func() { close(r.done) })
	return nil
}

func (r *Radio) readLoop() {
	header := make([]byte, 4)
	for {
		select {
		case <-r.done:
			return
		default:
		}

		if _, err := io.ReadFull(r.rw, header); err != nil {
			r.logger.Error("peripheral:hci-read-error", slog.String("err", err.Error()))
			return
		}
		if header[0] != opWrite {
			continue
		}
		h := handle(header[1])
		n := binary.LittleEndian.Uint16(header[2:4])
		payload := make([]byte, n)
		if n > 0 {
			if _, err := io.ReadFull(r.rw, payload); err != nil {
				r.logger.Error("peripheral:hci-read-error", slog.String("err", err.Error()))
				return
			}
		}

		ch, ok := characteristics[h]
		if !ok {
			r.logger.Warn("peripheral:unknown-handle", slog.Int("handle", int(h)))
			continue
		}

		r.mu.Lock()
		fn := r.handlers[ch]
		r.mu.Unlock()
		if fn != nil {
			fn(ch, payload)
		}
	}
}
