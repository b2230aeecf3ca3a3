package malloc

import (
	"fmt"
	"io"
)

// Mallinfo mirrors the legacy C mallinfo structure. Only the fields listed
// below are populated; the mapping from backend counters is fixed:
//
//	Hblkhd   = bytes currently mapped from the OS
//	Usmblks  = same value as Hblkhd (historical conflation)
//	Fsmblks  = bytes counted as free by the backend
//	Uordblks = bytes counted as allocated (in use)
//	Fordblks = same value as Fsmblks
type Mallinfo struct {
	Arena    uint64
	Ordblks  uint64
	Smblks   uint64
	Hblks    uint64
	Hblkhd   uint64
	Usmblks  uint64
	Fsmblks  uint64
	Uordblks uint64
	Fordblks uint64
	Keepcost uint64
}

// Mallinfo returns the legacy usage summary populated from an atomic
// snapshot of the backend counters.
func (a *Allocator) Mallinfo() Mallinfo {
	s := a.backend.Stats()
	return Mallinfo{
		Hblkhd:   s.Mapped,
		Usmblks:  s.Mapped,
		Fsmblks:  s.Free,
		Uordblks: s.Allocated,
		Fordblks: s.Free,
	}
}

// mallocInfoVersion is the version attribute of the MallocInfo document.
const mallocInfoVersion = "memkit-1"

// MallocInfo writes a minimal well-formed XML document describing the heap
// to w. options is accepted for interface compatibility and currently
// ignored.
func (a *Allocator) MallocInfo(options int, w io.Writer) error {
	_ = options
	_, err := fmt.Fprintf(w, "<malloc version=\"%s\"></malloc>\n", mallocInfoVersion)
	return err
}

// Mallopt parameters, with the numeric identities callers pass through the
// C-compatible surface.
const (
	// MalloptDecayTime selects the page-release decay time. Recognized
	// and accepted, currently without behavioral effect.
	MalloptDecayTime = -100

	// MalloptPurge triggers an immediate best-effort release of unused
	// pages back to the OS.
	MalloptPurge = -101
)

// Mallopt adjusts an allocator parameter. It returns true for recognized
// parameters and false otherwise; unrecognized parameters are ignored, not
// errors.
func (a *Allocator) Mallopt(param, value int) bool {
	switch param {
	case MalloptDecayTime:
		// Accepted for compatibility; no decay scheduling yet.
		_ = value
		return true
	case MalloptPurge:
		a.backend.ReleaseToOS()
		return true
	default:
		return false
	}
}
