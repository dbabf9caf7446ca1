package device

import (
	"log/slog"
	"sync"

	"openenterprise/bleota/wire"
)

// IngressPump is the GATT write callback registered for the recv-fw
// characteristic (§4.5). It never blocks the BLE stack: spawning the
// flash writer task happens once, via sync.Once, and every push into the
// ring is non-blocking. Each write is the wire form of one data packet
// (§4.1) — IngressPump strips the 3-byte header (and, on a sector's final
// sequence, the 2-byte CRC trailer) before anything reaches the ring, so
// only raw sector bytes are ever written to flash.
type IngressPump struct {
	ring   *Ring
	logger *slog.Logger
	spawn  sync.Once

	// onFirstWrite spawns the flash writer task (priority/stack sizing is
	// the caller's concern on tinygo; on the host it's just `go`).
	onFirstWrite func()

	// sector CRC tracking; OnWrite is only ever called from the
	// peripheral's single read loop, so no lock is needed here beyond
	// what Ring itself already provides.
	sectorSet bool
	sector    uint16
	sectorBuf []byte
}

// NewIngressPump builds a pump over ring. onFirstWrite is invoked exactly
// once, on the first OnWrite call, before the payload is pushed.
func NewIngressPump(ring *Ring, onFirstWrite func(), logger *slog.Logger) *IngressPump {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngressPump{ring: ring, onFirstWrite: onFirstWrite, logger: logger}
}

// OnWrite handles one GATT write to the recv-fw characteristic: decode the
// data packet, verify the finished sector's CRC-16 (§1 "validates
// integrity only with the per-sector CRC-16"), and push the bare payload
// bytes — never the wire framing — into the ring.
func (p *IngressPump) OnWrite(payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("device:ingress-panic-recovered")
		}
	}()

	p.spawn.Do(func() {
		if p.onFirstWrite != nil {
			p.onFirstWrite()
		}
	})

	pkt, ok := wire.DecodePacket(payload)
	if !ok {
		p.logger.Warn("device:packet-decode-failed", slog.Int("bytes", len(payload)))
		return
	}

	if !p.sectorSet || pkt.Sector != p.sector {
		p.sector = pkt.Sector
		p.sectorBuf = p.sectorBuf[:0]
		p.sectorSet = true
	}
	p.sectorBuf = append(p.sectorBuf, pkt.Payload...)

	if pkt.Final {
		if got := wire.CRC16(p.sectorBuf); got != pkt.CRC {
			p.logger.Warn("device:sector-crc-mismatch",
				slog.Int("sector", int(pkt.Sector)),
				slog.Uint64("got", uint64(got)),
				slog.Uint64("want", uint64(pkt.CRC)),
			)
		}
	}

	if !p.ring.Push(pkt.Payload) {
		p.logger.Warn("device:ring-full-drop", slog.Int("bytes", len(pkt.Payload)))
	}
}
