package malloc

import (
	"fmt"
	"os"
)

// FaultKind classifies a fatal contract violation.
type FaultKind uint8

const (
	// FaultCallocOverflow: nmemb*size is not representable.
	FaultCallocOverflow FaultKind = iota
	// FaultPvallocOverflow: rounding size up to a page multiple wraps.
	FaultPvallocOverflow
	// FaultInvalidAlignment: alignment violates the function's contract.
	FaultInvalidAlignment
	// FaultMisalignedSize: aligned_alloc size is not a multiple of alignment.
	FaultMisalignedSize
	// FaultOutOfMemory: the backend could not satisfy the request.
	FaultOutOfMemory
	// FaultInvalidPointer: a pointer not owned by the backend was freed
	// or queried.
	FaultInvalidPointer
	// FaultDoubleFree: a chunk was freed twice.
	FaultDoubleFree
	// FaultCorruptedHeader: a chunk header failed its integrity check.
	FaultCorruptedHeader
	// FaultOriginMismatch: a chunk was freed through the wrong API family.
	FaultOriginMismatch
)

var faultKindNames = [...]string{
	FaultCallocOverflow:   "calloc overflow",
	FaultPvallocOverflow:  "pvalloc overflow",
	FaultInvalidAlignment: "invalid alignment",
	FaultMisalignedSize:   "misaligned size",
	FaultOutOfMemory:      "out of memory",
	FaultInvalidPointer:   "invalid pointer",
	FaultDoubleFree:       "double free",
	FaultCorruptedHeader:  "corrupted chunk header",
	FaultOriginMismatch:   "allocation origin mismatch",
}

// String returns the fault class name.
func (k FaultKind) String() string {
	if int(k) < len(faultKindNames) && faultKindNames[k] != "" {
		return faultKindNames[k]
	}
	return "unknown fault"
}

// FaultReport describes a fatal, non-resumable contract violation: which
// entry point detected it, what class it is, and the offending arguments.
// Reports are panicked from a single termination point; a process that does
// not recover them aborts with the diagnostic, and continuing past one is
// never safe (the heap may already be corrupted).
type FaultReport struct {
	Kind   FaultKind
	Call   string // entry point, e.g. "calloc"
	Detail string // human-readable description with the offending arguments
}

// Error formats the report the way it appears in an abort message.
func (r *FaultReport) Error() string {
	return fmt.Sprintf("memkit fatal: %s: %s: %s", r.Call, r.Kind, r.Detail)
}

// FaultHandler observes a fatal report before termination. Handlers must
// not assume the heap is in a usable state.
type FaultHandler func(*FaultReport)

// Fatal is the single termination point for fatal faults. It notifies the
// handler (if any), writes the diagnostic to stderr, and panics with the
// report. It never returns.
func Fatal(h FaultHandler, r *FaultReport) {
	if h != nil {
		h(r)
	}
	fmt.Fprintln(os.Stderr, r.Error())
	panic(r)
}
