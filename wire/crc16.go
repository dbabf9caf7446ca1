// Package wire implements the binary framing shared by the client and
// device halves of the OTA protocol: the start command, data packets, and
// the CRC-16 that guards each sector.
package wire

// CRC16 computes the sector/start-command checksum: polynomial 0x1021,
// initial value 0x0000, MSB-first, no reflection, no final XOR. It is
// deterministic and independent of how the input is chunked — CRC16(a) ==
// CRC16(append(append([]byte{}, a[:k]...), a[k:]...)) for any k.
func CRC16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
