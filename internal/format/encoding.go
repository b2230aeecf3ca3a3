package format

import "encoding/binary"

// Little-endian fixed-width accessors for header words.

// ReadI64 reads a signed 64-bit little-endian value at off.
func ReadI64(data []byte, off uintptr) int64 {
	return int64(binary.LittleEndian.Uint64(data[off:]))
}

// PutI64 writes a signed 64-bit little-endian value at off.
func PutI64(data []byte, off uintptr, v int64) {
	binary.LittleEndian.PutUint64(data[off:], uint64(v))
}

// ReadU64 reads an unsigned 64-bit little-endian value at off.
func ReadU64(data []byte, off uintptr) uint64 {
	return binary.LittleEndian.Uint64(data[off:])
}

// PutU64 writes an unsigned 64-bit little-endian value at off.
func PutU64(data []byte, off uintptr, v uint64) {
	binary.LittleEndian.PutUint64(data[off:], v)
}
