package codec

import "encoding/binary"

// U16 reads a big-endian uint16.
func U16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }

// U32 reads a big-endian uint32.
func U32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }

// I16 reads a big-endian signed 16-bit integer.
func I16(b []byte) int16 { return int16(U16(b)) }

// I32 reads a big-endian signed 32-bit integer.
func I32(b []byte) int32 { return int32(U32(b)) }

// BitSet reports whether bit n (0-indexed, LSB first) is set in v.
func BitSet(v uint32, n uint) bool {
	return v&(1<<n) != 0
}

// SignedMagnitude16 interprets a 16-bit value whose sign lives in bit 15
// and magnitude in the remaining 15 bits (used by temperature and tilt fields).
func SignedMagnitude16(v uint16) int {
	magnitude := int(v &^ 0x8000)
	if v&0x8000 != 0 {
		return -magnitude
	}
	return magnitude
}
