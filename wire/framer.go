package wire

import "encoding/binary"

// SectorSize is the fixed size of a firmware sector; the final sector of an
// image may be shorter.
const SectorSize = 4096

// FinalSeq is the sequence byte marking the last packet of a sector. It is
// a sentinel value, not a numeric index — numeric sequences run 0..254.
const FinalSeq = 0xFF

// startCommandOpcode identifies the start-of-transfer command on the wire.
const startCommandOpcode = 0x0001

// StartCommandLen is the fixed size of the start command (§4.1): u16
// opcode, u32 length, 14 reserved bytes, u16 CRC.
const StartCommandLen = 20

// NumSectors returns ceil(length / SectorSize) for a firmware image of the
// given byte length.
func NumSectors(length uint32) int {
	if length == 0 {
		return 0
	}
	return int((length + SectorSize - 1) / SectorSize)
}

// SectorBounds returns the half-open byte range [start, end) of sector s
// within an image of the given length.
func SectorBounds(length uint32, sector int) (start, end uint32) {
	start = uint32(sector) * SectorSize
	end = start + SectorSize
	if end > length {
		end = length
	}
	return start, end
}

// MakeStartCommand builds the 20-byte start command for a firmware image of
// the given length (§4.1, tested exactly by §8 "Start command exactness").
func MakeStartCommand(length uint32) []byte {
	buf := make([]byte, StartCommandLen)
	binary.LittleEndian.PutUint16(buf[0:2], startCommandOpcode)
	binary.LittleEndian.PutUint32(buf[2:6], length)
	// buf[6:18] stays zero (reserved).
	crc := CRC16(buf[0:18])
	binary.LittleEndian.PutUint16(buf[18:20], crc)
	return buf
}

// Packet is one on-wire data packet: a sector index, a sequence byte, a
// payload slice, and — only for the final sequence of a sector — the
// sector's CRC-16 trailer.
type Packet struct {
	Sector  uint16
	Seq     uint8
	Payload []byte
	Final   bool
	CRC     uint16 // valid only when Final
}

// Encode serializes a Packet to its on-wire form: u16 LE sector | u8 seq |
// payload | [u16 LE crc if final].
func (p Packet) Encode() []byte {
	headerLen := 3
	trailerLen := 0
	if p.Final {
		trailerLen = 2
	}
	buf := make([]byte, headerLen+len(p.Payload)+trailerLen)
	binary.LittleEndian.PutUint16(buf[0:2], p.Sector)
	buf[2] = p.Seq
	copy(buf[3:], p.Payload)
	if p.Final {
		binary.LittleEndian.PutUint16(buf[3+len(p.Payload):], p.CRC)
	}
	return buf
}

// DecodePacket parses the wire form of a data packet — the counterpart to
// Packet.Encode the device side needs to strip the 3-byte header (and, on
// the final sequence of a sector, the 2-byte CRC trailer) before the
// payload reaches flash. ok is false if buf is too short to hold even the
// header, or too short to hold the trailer its seq byte claims.
func DecodePacket(buf []byte) (Packet, bool) {
	if len(buf) < 3 {
		return Packet{}, false
	}
	p := Packet{
		Sector: binary.LittleEndian.Uint16(buf[0:2]),
		Seq:    buf[2],
	}
	rest := buf[3:]
	if p.Seq != FinalSeq {
		p.Payload = rest
		return p, true
	}
	if len(rest) < 2 {
		return Packet{}, false
	}
	p.Final = true
	p.Payload = rest[:len(rest)-2]
	p.CRC = binary.LittleEndian.Uint16(rest[len(rest)-2:])
	return p, true
}

// MinChunkSize is the smallest chunk size that keeps a full sector's
// non-final sequence count within the single-byte seq field: 0xFF is
// reserved as FinalSeq, leaving 0..254 (255 values) for the rest, so a
// full SectorSize-byte sector must split into at most 256 packets total.
const MinChunkSize = (SectorSize + 255) / 256

// SectorPackets splits one sector's bytes into chunkSize-sized payloads,
// tagging the last one as Final and attaching its CRC-16. chunkSize is
// clamped up to MinChunkSize: anything smaller would need more than 255
// non-final sequence numbers for a full sector and wrap the uint8 seq
// byte, colliding sequences instead of just running slower.
func SectorPackets(sectorIndex int, sectorBytes []byte, chunkSize int) []Packet {
	if chunkSize < MinChunkSize {
		chunkSize = MinChunkSize
	}
	n := len(sectorBytes)
	numSeqs := (n + chunkSize - 1) / chunkSize
	if numSeqs == 0 {
		numSeqs = 1 // an empty sector still emits one final, empty packet
	}
	crc := CRC16(sectorBytes)
	packets := make([]Packet, 0, numSeqs)
	for i := 0; i < numSeqs; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		last := i == numSeqs-1
		p := Packet{
			Sector:  uint16(sectorIndex),
			Payload: sectorBytes[start:end],
		}
		if last {
			p.Seq = FinalSeq
			p.Final = true
			p.CRC = crc
		} else {
			p.Seq = uint8(i)
		}
		packets = append(packets, p)
	}
	return packets
}

// FrameImage splits an entire firmware image into its full packet
// sequence, sector by sector, in wire order. It is pure and deterministic:
// concatenating every packet's Payload reproduces the original image
// byte-for-byte (§8 "Framing round-trip").
func FrameImage(image []byte, chunkSize int) []Packet {
	length := uint32(len(image))
	numSectors := NumSectors(length)
	var packets []Packet
	for s := 0; s < numSectors; s++ {
		start, end := SectorBounds(length, s)
		packets = append(packets, SectorPackets(s, image[start:end], chunkSize)...)
	}
	return packets
}
