package malloc

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/memkit/memkit/internal/format"
)

// MinAlignment is the minimum alignment every plain allocation honors.
const MinAlignment = format.MinAlignment

// Allocator is the allocation-API decision layer. It validates inputs,
// computes the effective size and alignment each function's contract
// demands, enforces the error policy, and dispatches to the Backend.
//
// All methods are safe for concurrent use; the Allocator itself holds no
// locks and introduces no serialization beyond the backend's own.
type Allocator struct {
	backend  Backend
	policy   AlignmentPolicy
	pageSize uintptr
	onFault  FaultHandler
}

// New builds an Allocator over backend with the given policy configuration.
func New(backend Backend, cfg Config) *Allocator {
	return &Allocator{
		backend:  backend,
		policy:   cfg.Memalign,
		pageSize: cfg.pageSize(),
		onFault:  cfg.OnFault,
	}
}

// fail resolves a recoverable validation or allocation failure. The
// null-return policy is consulted first: when nulls are permitted the
// errno value is returned for the caller to surface; when they are not,
// the fatal report is produced and the call never returns.
func (a *Allocator) fail(call string, errno unix.Errno, kind FaultKind, detail string, args ...any) error {
	if a.backend.CanReturnNull() {
		return errno
	}
	Fatal(a.onFault, &FaultReport{
		Kind:   kind,
		Call:   call,
		Detail: fmt.Sprintf(detail, args...),
	})
	return nil // unreachable: Fatal panics
}

// Malloc returns an uninitialized block of at least size bytes aligned to
// MinAlignment, or nil with unix.ENOMEM when the backend cannot satisfy
// the request and the policy permits null returns. size 0 yields a valid
// zero-length block that must still be freed exactly once.
func (a *Allocator) Malloc(size uintptr) ([]byte, error) {
	block, err := a.backend.Allocate(size, OriginMalloc, MinAlignment, false)
	if err != nil {
		return nil, a.fail("malloc", unix.ENOMEM, FaultOutOfMemory,
			"allocation of %d bytes failed: %v", size, err)
	}
	return block, nil
}

// Calloc returns a zero-filled block of nmemb*size bytes. A product that
// overflows never touches the backend: it is rejected up front with
// unix.ENOMEM or a fatal report, per policy.
func (a *Allocator) Calloc(nmemb, size uintptr) ([]byte, error) {
	total, overflow := checkForCallocOverflow(nmemb, size)
	if overflow {
		return nil, a.fail("calloc", unix.ENOMEM, FaultCallocOverflow,
			"%d * %d overflows", nmemb, size)
	}
	block, err := a.backend.Allocate(total, OriginMalloc, MinAlignment, true)
	if err != nil {
		return nil, a.fail("calloc", unix.ENOMEM, FaultOutOfMemory,
			"allocation of %d bytes failed: %v", total, err)
	}
	return block, nil
}

// Realloc resizes block, preserving the first min(old, new) bytes.
//
//	Realloc(nil, n)      behaves exactly as Malloc(n).
//	Realloc(block, 0)    frees block and returns nil, nil.
//	otherwise            the block is resized in place or moved.
//
// On failure the result is nil with unix.ENOMEM and the original block
// remains valid and unmodified.
func (a *Allocator) Realloc(block []byte, size uintptr) ([]byte, error) {
	if block == nil {
		return a.Malloc(size)
	}
	if size == 0 {
		a.backend.Deallocate(block, OriginMalloc)
		return nil, nil
	}
	next, err := a.backend.Reallocate(block, size, MinAlignment)
	if err != nil {
		return nil, a.fail("realloc", unix.ENOMEM, FaultOutOfMemory,
			"reallocation to %d bytes failed: %v", size, err)
	}
	return next, nil
}

// Free returns block to the backend. A nil block is a no-op. Freeing a
// foreign or already-freed block is a hard fault detected and reported by
// the backend regardless of the null-return policy.
func (a *Allocator) Free(block []byte) {
	if block == nil {
		return
	}
	a.backend.Deallocate(block, OriginMalloc)
}

// Memalign returns a block of size bytes aligned to alignment. Under the
// CoerceAlignment policy a non-power-of-two alignment is rounded up and
// the call continues; under RejectAlignment it fails with unix.EINVAL or a
// fatal report.
func (a *Allocator) Memalign(alignment, size uintptr) ([]byte, error) {
	if !isPowerOfTwo(alignment) {
		coerced, ok := roundUpToPowerOfTwo(alignment)
		if a.policy != CoerceAlignment || !ok {
			return nil, a.fail("memalign", unix.EINVAL, FaultInvalidAlignment,
				"alignment %d is not a power of two", alignment)
		}
		alignment = coerced
	}
	return a.allocateAligned("memalign", alignment, size)
}

// AlignedAlloc returns a block of size bytes aligned to alignment.
// alignment must be a power of two and size a multiple of alignment.
func (a *Allocator) AlignedAlloc(alignment, size uintptr) ([]byte, error) {
	if invalidAlignedAllocAlignmentAndSize(alignment, size) {
		return nil, a.fail("aligned_alloc", unix.EINVAL, FaultMisalignedSize,
			"alignment %d, size %d violate the aligned_alloc contract", alignment, size)
	}
	return a.allocateAligned("aligned_alloc", alignment, size)
}

// PosixMemalign stores a block of size bytes aligned to alignment through
// memptr and returns nil. An alignment that is zero, not a power of two,
// or not a multiple of the pointer width yields unix.EINVAL; allocation
// failure yields unix.ENOMEM. *memptr is untouched on any failure.
func (a *Allocator) PosixMemalign(memptr *[]byte, alignment, size uintptr) error {
	if invalidPosixMemalignAlignment(alignment) {
		return a.fail("posix_memalign", unix.EINVAL, FaultInvalidAlignment,
			"alignment %d violates the POSIX contract", alignment)
	}
	block, err := a.allocateAligned("posix_memalign", alignment, size)
	if err != nil {
		return err
	}
	*memptr = block
	return nil
}

// Valloc returns a block of size bytes aligned to the page size.
func (a *Allocator) Valloc(size uintptr) ([]byte, error) {
	return a.allocateAligned("valloc", a.pageSize, size)
}

// Pvalloc behaves like Valloc with size rounded up to the next page
// multiple; size 0 yields exactly one page. A size whose round-up wraps is
// rejected up front.
func (a *Allocator) Pvalloc(size uintptr) ([]byte, error) {
	if checkForPvallocOverflow(size, a.pageSize) {
		return nil, a.fail("pvalloc", unix.ENOMEM, FaultPvallocOverflow,
			"rounding %d up to a multiple of %d overflows", size, a.pageSize)
	}
	rounded := a.pageSize
	if size != 0 {
		rounded = format.AlignUp(size, a.pageSize)
	}
	return a.allocateAligned("pvalloc", a.pageSize, rounded)
}

// allocateAligned is the shared backend dispatch for the memalign family.
// alignment is already validated (or coerced) to a power of two; values
// below the platform minimum are raised to it.
func (a *Allocator) allocateAligned(call string, alignment, size uintptr) ([]byte, error) {
	if alignment < MinAlignment {
		alignment = MinAlignment
	}
	block, err := a.backend.Allocate(size, OriginMemalign, alignment, false)
	if err != nil {
		return nil, a.fail(call, unix.ENOMEM, FaultOutOfMemory,
			"allocation of %d bytes aligned to %d failed: %v", size, alignment, err)
	}
	return block, nil
}

// UsableSize returns the actual capacity of block, or 0 for nil.
func (a *Allocator) UsableSize(block []byte) uintptr {
	if block == nil {
		return 0
	}
	return a.backend.UsableSize(block)
}

// Iterate invokes fn once per live chunk whose payload starts within
// [base, base+size), passing the chunk base, its usable size, and arg.
// Iteration order is unspecified. Only well-defined while the heap is
// disabled; the return value is always 0 (errors are not surfaced here).
func (a *Allocator) Iterate(base, size uintptr, fn IterateFunc, arg any) int {
	a.backend.IterateOverChunks(base, size, fn, arg)
	return 0
}

// Disable pauses all allocation activity so a consistent view of the heap
// can be iterated or the process forked. Must be paired with Enable; not
// reentrant.
func (a *Allocator) Disable() {
	a.backend.Disable()
}

// Enable resumes allocation activity after Disable.
func (a *Allocator) Enable() {
	a.backend.Enable()
}
