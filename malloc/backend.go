package malloc

// Origin tags how an allocation entered the API: through the plain malloc
// family, which only promises minimum alignment, or through the memalign
// family with a caller-supplied alignment. Backends may apply different
// bookkeeping per origin, so every entry point threads it through —
// including Realloc's internal free path, which deallocates as
// OriginMalloc.
type Origin uint8

const (
	OriginMalloc Origin = iota
	OriginMemalign
)

// String returns the origin name used in diagnostics.
func (o Origin) String() string {
	switch o {
	case OriginMalloc:
		return "malloc"
	case OriginMemalign:
		return "memalign"
	default:
		return "unknown"
	}
}

// StatCounters is an atomic snapshot of backend usage, in bytes.
type StatCounters struct {
	// Allocated is the byte count of live (in-use) chunks.
	Allocated uint64
	// Free is the byte count sitting on free lists.
	Free uint64
	// Mapped is the byte count currently obtained from the OS.
	Mapped uint64
}

// IterateFunc receives one live chunk per call: the address of its payload,
// the usable payload size, and the caller's opaque argument.
type IterateFunc func(base, size uintptr, arg any)

// Backend is the allocation engine the API surface dispatches to. It owns
// all chunk lifetime; the surface owns only transient request and response
// values.
//
// Backends detect and report hard faults themselves (double free, foreign
// pointer, corrupted chunk) — those never come back as errors.
type Backend interface {
	// Allocate returns a block of at least size bytes whose address is a
	// multiple of alignment, zeroed when zeroFill is set. alignment must
	// be a power of two >= the platform minimum.
	Allocate(size uintptr, origin Origin, alignment uintptr, zeroFill bool) ([]byte, error)

	// Deallocate returns block to the backend. block must be a live
	// allocation previously produced by this backend.
	Deallocate(block []byte, origin Origin)

	// Reallocate resizes block in place or moves it, preserving the first
	// min(old, new) bytes. On error the original block is untouched and
	// remains valid.
	Reallocate(block []byte, size, alignment uintptr) ([]byte, error)

	// UsableSize returns the actual capacity of a live block, which may
	// exceed the requested size due to size-class rounding.
	UsableSize(block []byte) uintptr

	// Stats returns the usage counters as of the call.
	Stats() StatCounters

	// IterateOverChunks invokes fn for every live chunk whose payload
	// starts within [base, base+size). Only well-defined while the
	// backend is disabled.
	IterateOverChunks(base, size uintptr, fn IterateFunc, arg any)

	// Disable pauses all allocation activity until Enable. Not reentrant.
	Disable()

	// Enable resumes allocation activity after Disable.
	Enable()

	// ReleaseToOS proactively returns unused pages to the operating
	// system. Best effort; safe concurrently with allocation.
	ReleaseToOS()

	// CanReturnNull reports the process-wide null-return policy: whether
	// recoverable failures may surface as nil-plus-errno instead of a
	// fatal report. Owned by backend configuration; read-only here.
	CanReturnNull() bool
}
