package malloc

import "os"

// AlignmentPolicy selects how Memalign treats a non-power-of-two alignment.
// The choice is fixed at configuration time so each entry point keeps a
// single-valued contract per build; platforms with legacy binaries coerce,
// everything else rejects.
type AlignmentPolicy uint8

const (
	// RejectAlignment fails a non-power-of-two Memalign alignment with
	// EINVAL (or a fatal report, per the null-return policy).
	RejectAlignment AlignmentPolicy = iota

	// CoerceAlignment rounds a non-power-of-two Memalign alignment up to
	// the next power of two and continues.
	CoerceAlignment
)

// Config carries the surface-level policy knobs. The null-return policy is
// deliberately absent: it is owned by the backend (see
// Backend.CanReturnNull).
type Config struct {
	// Memalign selects the non-power-of-two alignment strategy.
	// Default: RejectAlignment.
	Memalign AlignmentPolicy

	// PageSize overrides the page size used by Valloc and Pvalloc. It must
	// be a power of two; other values are rounded up to one. Zero means
	// os.Getpagesize().
	PageSize uintptr

	// OnFault, when set, observes every fatal FaultReport before the
	// call path is torn down. Intended for tests and crash reporters;
	// the fault is still non-resumable after it returns.
	OnFault FaultHandler
}

func (c *Config) pageSize() uintptr {
	if c != nil && c.PageSize != 0 {
		// The pvalloc overflow check and page round-up both require a
		// power of two.
		if p, ok := roundUpToPowerOfTwo(c.PageSize); ok {
			return p
		}
	}
	return uintptr(os.Getpagesize())
}
