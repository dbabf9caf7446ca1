package wire

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestCRC16Deterministic(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"single byte", []byte{0x42}},
		{"ascii", []byte("hello world")},
		{"all zero 4096", make([]byte, 4096)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got1 := CRC16(tc.data)
			got2 := CRC16(append([]byte{}, tc.data...))
			if got1 != got2 {
				t.Fatalf("CRC16 not deterministic: %x vs %x", got1, got2)
			}
		})
	}
}

func TestCRC16IndependentOfChunking(t *testing.T) {
	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte(i * 7)
	}

	whole := CRC16(data)

	// Compute piecewise via concatenation (the algorithm is stateless per
	// call, so chunking the *input slice construction* must not matter).
	var rebuilt []byte
	for _, k := range []int{0, 1, 500, 4095, 4096} {
		rebuilt = append(append([]byte{}, data[:k]...), data[k:]...)
		if CRC16(rebuilt) != whole {
			t.Fatalf("chunk point %d: CRC16 differs", k)
		}
	}
}

func TestMakeStartCommandExactness(t *testing.T) {
	tests := []struct {
		name   string
		length uint32
	}{
		{"zero length", 0},
		{"single sector", 100},
		{"boundary aligned", 8192},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			buf := MakeStartCommand(tc.length)
			if len(buf) != StartCommandLen {
				t.Fatalf("length = %d, want %d", len(buf), StartCommandLen)
			}
			if buf[0] != 0x01 || buf[1] != 0x00 {
				t.Errorf("opcode bytes = %02x %02x, want 01 00", buf[0], buf[1])
			}
			gotLen := binary.LittleEndian.Uint32(buf[2:6])
			if gotLen != tc.length {
				t.Errorf("encoded length = %d, want %d", gotLen, tc.length)
			}
			for i := 6; i < 18; i++ {
				if buf[i] != 0 {
					t.Errorf("reserved byte %d = %02x, want 00", i, buf[i])
				}
			}
			wantCRC := CRC16(buf[0:18])
			gotCRC := binary.LittleEndian.Uint16(buf[18:20])
			if gotCRC != wantCRC {
				t.Errorf("trailer CRC = %04x, want %04x", gotCRC, wantCRC)
			}
		})
	}
}

func TestMakeStartCommandSingleSectorBytes(t *testing.T) {
	// Literal scenario from §8 #2: L=100, bytes 2..5 = 64 00 00 00.
	buf := MakeStartCommand(100)
	want := []byte{0x64, 0x00, 0x00, 0x00}
	if !bytes.Equal(buf[2:6], want) {
		t.Errorf("bytes 2..5 = % x, want % x", buf[2:6], want)
	}
}

func TestFrameImageRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		length    int
		chunkSize int
	}{
		{"single sector", 100, 492},
		{"boundary aligned", 8192, 492},
		{"odd chunking", 5000, 492},
		{"smaller than chunk", 10, 492},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			image := make([]byte, tc.length)
			for i := range image {
				image[i] = byte(i * 31)
			}

			packets := FrameImage(image, tc.chunkSize)

			var rebuilt []byte
			for _, p := range packets {
				rebuilt = append(rebuilt, p.Payload...)
			}
			if !bytes.Equal(rebuilt, image) {
				t.Fatalf("round trip mismatch: got %d bytes, want %d", len(rebuilt), len(image))
			}
		})
	}
}

func TestSectorCRCLaw(t *testing.T) {
	length := uint32(8192)
	image := make([]byte, length)
	for i := range image {
		image[i] = byte(i)
	}

	packets := FrameImage(image, 492)

	sectorFinal := map[uint16]Packet{}
	for _, p := range packets {
		if p.Final {
			sectorFinal[p.Sector] = p
		}
	}

	numSectors := NumSectors(length)
	if len(sectorFinal) != numSectors {
		t.Fatalf("got %d final packets, want %d", len(sectorFinal), numSectors)
	}

	for s := 0; s < numSectors; s++ {
		start, end := SectorBounds(length, s)
		want := CRC16(image[start:end])
		got := sectorFinal[uint16(s)].CRC
		if got != want {
			t.Errorf("sector %d: CRC = %04x, want %04x", s, got, want)
		}
	}
}

func TestOddChunkingSequenceCounts(t *testing.T) {
	// §8 scenario 4: L=5000, chunkSize=492.
	// Sector 0: 4096 bytes -> ceil(4096/492) = 9 sequences (0..7, then 0xFF with 160B).
	// Sector 1: 904 bytes -> ceil(904/492) = 2 sequences (0, then 0xFF with 412B).
	image := make([]byte, 5000)
	packets := FrameImage(image, 492)

	var sector0, sector1 []Packet
	for _, p := range packets {
		switch p.Sector {
		case 0:
			sector0 = append(sector0, p)
		case 1:
			sector1 = append(sector1, p)
		}
	}

	if len(sector0) != 9 {
		t.Errorf("sector 0 sequences = %d, want 9", len(sector0))
	}
	if len(sector0[8].Payload) != 160 {
		t.Errorf("sector 0 final payload = %d bytes, want 160", len(sector0[8].Payload))
	}

	if len(sector1) != 2 {
		t.Errorf("sector 1 sequences = %d, want 2", len(sector1))
	}
	if len(sector1[1].Payload) != 412 {
		t.Errorf("sector 1 final payload = %d bytes, want 412", len(sector1[1].Payload))
	}
}

func TestPacketEncodeLayout(t *testing.T) {
	p := Packet{Sector: 3, Seq: 5, Payload: []byte{0xAA, 0xBB}}
	buf := p.Encode()
	if len(buf) != 5 {
		t.Fatalf("length = %d, want 5", len(buf))
	}
	if binary.LittleEndian.Uint16(buf[0:2]) != 3 {
		t.Errorf("sector field wrong")
	}
	if buf[2] != 5 {
		t.Errorf("seq field wrong")
	}
	if !bytes.Equal(buf[3:], []byte{0xAA, 0xBB}) {
		t.Errorf("payload wrong")
	}

	final := Packet{Sector: 1, Seq: FinalSeq, Payload: []byte{0x01}, Final: true, CRC: 0x1234}
	fbuf := final.Encode()
	if len(fbuf) != 3+1+2 {
		t.Fatalf("final length = %d, want %d", len(fbuf), 3+1+2)
	}
	if binary.LittleEndian.Uint16(fbuf[4:6]) != 0x1234 {
		t.Errorf("trailer CRC wrong")
	}
}

func TestDecodePacketRoundTrip(t *testing.T) {
	nonFinal := Packet{Sector: 3, Seq: 5, Payload: []byte{0xAA, 0xBB}}
	got, ok := DecodePacket(nonFinal.Encode())
	if !ok {
		t.Fatal("DecodePacket returned ok=false for a valid non-final packet")
	}
	if got.Sector != nonFinal.Sector || got.Seq != nonFinal.Seq || got.Final {
		t.Fatalf("decoded = %+v, want sector/seq preserved and Final=false", got)
	}
	if !bytes.Equal(got.Payload, nonFinal.Payload) {
		t.Fatalf("decoded payload = %v, want %v", got.Payload, nonFinal.Payload)
	}

	final := Packet{Sector: 1, Seq: FinalSeq, Payload: []byte{0x01, 0x02, 0x03}, Final: true, CRC: 0x1234}
	got, ok = DecodePacket(final.Encode())
	if !ok {
		t.Fatal("DecodePacket returned ok=false for a valid final packet")
	}
	if !got.Final || got.CRC != final.CRC {
		t.Fatalf("decoded = %+v, want Final=true CRC=%04x", got, final.CRC)
	}
	if !bytes.Equal(got.Payload, final.Payload) {
		t.Fatalf("decoded payload = %v, want %v (trailer must not leak into payload)", got.Payload, final.Payload)
	}
}

func TestDecodePacketRejectsShortBuffers(t *testing.T) {
	if _, ok := DecodePacket([]byte{0x01, 0x02}); ok {
		t.Fatal("expected ok=false for a buffer shorter than the header")
	}
	// Final seq but no room for the 2-byte CRC trailer.
	if _, ok := DecodePacket([]byte{0x00, 0x00, FinalSeq}); ok {
		t.Fatal("expected ok=false for a final packet missing its CRC trailer")
	}
}

func TestSectorPacketsClampsTinyChunkSize(t *testing.T) {
	sector := make([]byte, SectorSize)
	packets := SectorPackets(0, sector, 1)

	seen := map[uint8]bool{}
	nonFinal := 0
	for _, p := range packets {
		if p.Final {
			continue
		}
		nonFinal++
		if seen[p.Seq] {
			t.Fatalf("sequence %d reused — chunkSize=1 was not clamped", p.Seq)
		}
		if p.Seq == FinalSeq {
			t.Fatalf("non-final packet used the reserved FinalSeq value")
		}
		seen[p.Seq] = true
	}
	if nonFinal > 255 {
		t.Fatalf("got %d non-final sequences, want at most 255", nonFinal)
	}

	var rebuilt []byte
	for _, p := range packets {
		rebuilt = append(rebuilt, p.Payload...)
	}
	if !bytes.Equal(rebuilt, sector) {
		t.Fatal("clamped packets lost data: payloads no longer reconstruct the sector")
	}
}

func TestNumSectors(t *testing.T) {
	tests := []struct {
		length uint32
		want   int
	}{
		{0, 0},
		{1, 1},
		{4096, 1},
		{4097, 2},
		{8192, 2},
		{5000, 2},
	}
	for _, tc := range tests {
		if got := NumSectors(tc.length); got != tc.want {
			t.Errorf("NumSectors(%d) = %d, want %d", tc.length, got, tc.want)
		}
	}
}
