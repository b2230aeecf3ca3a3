package format

// headerSeed salts the check word so stray user data is unlikely to pass
// validation by accident. Not a cryptographic defense.
const headerSeed uint64 = 0x9E3779B97F4A7C15

// mix64 is the splitmix64 finalizer.
func mix64(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xBF58476D1CE4E5B9
	x ^= x >> 27
	x *= 0x94D049BB133111EB
	x ^= x >> 31
	return x
}

// checksum48 computes the 48-bit integrity checksum bound to a chunk's
// offset, size, origin, and state.
func checksum48(off, size uintptr, origin, state uint8) uint64 {
	h := mix64(headerSeed ^ uint64(off) ^ uint64(size)<<1 ^ uint64(origin)<<48 ^ uint64(state)<<56)
	return h & 0x0000FFFFFFFFFFFF
}

// PackCheckWord builds the header check word for a chunk at off with the
// given total size, origin tag, and allocation state.
//
// Layout: bits 63..56 origin, bits 55..48 state, bits 47..0 checksum.
func PackCheckWord(off, size uintptr, origin, state uint8) uint64 {
	return uint64(origin)<<56 | uint64(state)<<48 | checksum48(off, size, origin, state)
}

// UnpackCheckWord validates w against the chunk's offset and size and
// returns the recorded origin and state. valid is false when the checksum
// does not reproduce, meaning the header was overwritten or w belongs to a
// different chunk.
func UnpackCheckWord(w uint64, off, size uintptr) (origin, state uint8, valid bool) {
	origin = uint8(w >> 56)
	state = uint8(w >> 48)
	valid = w&0x0000FFFFFFFFFFFF == checksum48(off, size, origin, state)
	return origin, state, valid
}
