package malloc

import (
	"math/bits"
	"unsafe"
)

// Pure argument validators. None has side effects; each returns a derived
// value or a boolean the caller feeds into the error policy.

// checkForCallocOverflow returns nmemb*size and whether the product
// overflows the pointer-width unsigned range.
func checkForCallocOverflow(nmemb, size uintptr) (product uintptr, overflow bool) {
	hi, lo := bits.Mul(uint(nmemb), uint(size))
	return uintptr(lo), hi != 0
}

// checkForPvallocOverflow reports whether rounding size up to the next
// multiple of pageSize wraps. pageSize must be a power of two.
func checkForPvallocOverflow(size, pageSize uintptr) bool {
	return size > ^uintptr(0)-(pageSize-1)
}

// isPowerOfTwo reports whether x is a power of two. Zero is not.
func isPowerOfTwo(x uintptr) bool {
	return x != 0 && x&(x-1) == 0
}

// roundUpToPowerOfTwo returns the smallest power of two >= x, and false
// when no such value is representable. Used only under the CoerceAlignment
// policy.
func roundUpToPowerOfTwo(x uintptr) (uintptr, bool) {
	if x <= 1 {
		return 1, true
	}
	n := bits.Len(uint(x - 1))
	if n >= bits.UintSize {
		return 0, false
	}
	return uintptr(1) << n, true
}

// invalidPosixMemalignAlignment mirrors the POSIX predicate: the alignment
// is invalid iff it is zero, not a power of two, or not a multiple of the
// pointer width.
func invalidPosixMemalignAlignment(alignment uintptr) bool {
	const ptrSize = unsafe.Sizeof(uintptr(0))
	return alignment == 0 || !isPowerOfTwo(alignment) || alignment%ptrSize != 0
}

// invalidAlignedAllocAlignmentAndSize mirrors the aligned_alloc contract:
// the pair is invalid iff alignment is not a power of two or size is not an
// integer multiple of alignment. The multiple check also catches any
// combination that would overflow when rounded.
func invalidAlignedAllocAlignmentAndSize(alignment, size uintptr) bool {
	return !isPowerOfTwo(alignment) || size%alignment != 0
}
