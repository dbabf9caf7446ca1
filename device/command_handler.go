package device

import (
	"encoding/binary"
	"sync"

	"openenterprise/bleota/wire"
)

// DecodeStartCommand validates and extracts the firmware length from a
// start command payload (§4.1). ok is false if the payload is the wrong
// size or its CRC trailer doesn't match.
func DecodeStartCommand(payload []byte) (length uint32, ok bool) {
	if len(payload) != wire.StartCommandLen {
		return 0, false
	}
	crc := binary.LittleEndian.Uint16(payload[18:20])
	if wire.CRC16(payload[0:18]) != crc {
		return 0, false
	}
	return binary.LittleEndian.Uint32(payload[2:6]), true
}

// FirmwareLengthStash holds the length stashed from the start command,
// the single piece of state shared between the command-characteristic
// handler and FlashWriter (§4.6 step 3: "this value is stashed by the BLE
// OTA library from the start command").
type FirmwareLengthStash struct {
	mu     sync.Mutex
	length uint32
	set    bool
}

// Set records length, overwriting whatever was stashed for a previous
// session.
func (s *FirmwareLengthStash) Set(length uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.length = length
	s.set = true
}

// Get returns the stashed length and whether one has ever been set.
func (s *FirmwareLengthStash) Get() (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.length, s.set
}
