package sheap

import (
	"encoding/binary"

	"github.com/ag00se/sheaperd-library/internal/crc"
)

// header is the compact (8-byte) or extended (12-byte) block metadata
// structure that spec.md §3 places at both ends of every block (header
// and boundary are the identical structure).
type header struct {
	allocated   bool
	size        uint32 // payload length in bytes, a multiple of 4, < 2^31
	id          uint32 // only meaningful when the heap uses the extended layout
	alignOffset uint16
	crc         uint16
}

// compactHeaderSize and extendedHeaderSize are the two legal header
// encodings spec.md §3 allows; which one a Heap uses is fixed by New
// from Config.ExtendedHeader.
const (
	compactHeaderSize  = 8
	extendedHeaderSize = 12
)

func headerSize(extended bool) uint32 {
	if extended {
		return extendedHeaderSize
	}

	return compactHeaderSize
}

// encode serialises h into buf (which must be exactly headerSize(extended)
// bytes), computing and embedding the CRC over every other field.
func (h header) encode(buf []byte, extended bool) {
	h.crc = h.crcOf(extended)

	word := h.size & 0x7FFFFFFF
	if h.allocated {
		word |= 0x80000000
	}

	binary.LittleEndian.PutUint32(buf[0:4], word)

	offset := 4
	if extended {
		binary.LittleEndian.PutUint32(buf[4:8], h.id)
		offset = 8
	}

	binary.LittleEndian.PutUint16(buf[offset:offset+2], h.alignOffset)
	binary.LittleEndian.PutUint16(buf[offset+2:offset+4], h.crc)
}

// decodeHeader parses buf (exactly headerSize(extended) bytes) into a header.
func decodeHeader(buf []byte, extended bool) header {
	word := binary.LittleEndian.Uint32(buf[0:4])

	h := header{
		allocated: word&0x80000000 != 0,
		size:      word & 0x7FFFFFFF,
	}

	offset := 4
	if extended {
		h.id = binary.LittleEndian.Uint32(buf[4:8])
		offset = 8
	}

	h.alignOffset = binary.LittleEndian.Uint16(buf[offset : offset+2])
	h.crc = binary.LittleEndian.Uint16(buf[offset+2 : offset+4])

	return h
}

// crcOf computes the CRC-16 over every header field except crc itself,
// matching the invariant that header.crc == boundary.crc ==
// CRC16(header fields excluding crc).
func (h header) crcOf(extended bool) uint16 {
	var buf [10]byte

	word := h.size & 0x7FFFFFFF
	if h.allocated {
		word |= 0x80000000
	}

	binary.LittleEndian.PutUint32(buf[0:4], word)

	n := 4
	if extended {
		binary.LittleEndian.PutUint32(buf[4:8], h.id)
		n = 8
	}

	binary.LittleEndian.PutUint16(buf[n:n+2], h.alignOffset)

	return crc.CRC16(buf[:n+2])
}

// validCRC reports whether h's stored CRC matches a fresh computation.
func (h header) validCRC(extended bool) bool {
	return h.crc == h.crcOf(extended)
}
