package format

// Chunk layout constants.
//
// Every chunk is laid out as a 16-byte header immediately followed by the
// payload. Header layout (little-endian):
//
//	Offset  Size  Description
//	0x00    8     Signed size word. Negative => allocated, positive => free.
//	              The absolute value is the total chunk size including the
//	              header, always a multiple of MinAlignment.
//	0x08    8     Check word. Packs the origin, the allocation state, and a
//	              48-bit checksum over (offset, size, origin, state). A chunk
//	              whose check word does not reproduce from its size word and
//	              offset is corrupted.
const (
	// HeaderSize is the chunk header size in bytes.
	HeaderSize = 16

	// MinAlignment is the minimum payload alignment every allocation
	// honors, matching the strictest fundamental alignment on 64-bit
	// targets.
	MinAlignment = 16

	// MinChunkSize is the smallest legal chunk (header plus one payload
	// slot). Splits never produce a remainder below this.
	MinChunkSize = HeaderSize + MinAlignment
)

// Allocation states recorded in the check word. The state must agree with
// the sign of the size word; disagreement is a corruption signal.
const (
	StateAllocated = 0xA5
	StateFree      = 0x5A
)
