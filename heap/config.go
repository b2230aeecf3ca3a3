package heap

import (
	"os"

	"github.com/memkit/memkit/malloc"
)

const (
	// DefaultMaxSize is the default region reservation.
	DefaultMaxSize = 256 << 20

	// DefaultSlabSize is the default carving granularity. Slabs are the
	// unit by which the heap claims region bytes for chunk storage.
	DefaultSlabSize = 1 << 20

	// MaxAlignment bounds caller-supplied alignments. Requests above it
	// fail with ErrAlignTooBig.
	MaxAlignment = 1 << 24
)

// Config configures a Heap.
type Config struct {
	// MaxSize caps the region reservation. Zero means DefaultMaxSize.
	// Must be a multiple of SlabSize.
	MaxSize uintptr

	// SlabSize is the carving granularity. Zero means DefaultSlabSize.
	// Must be a multiple of the page size.
	SlabSize uintptr

	// CanReturnNull is the process-wide null-return policy read by the
	// API surface: recoverable failures surface as errors when set, and
	// as fatal reports when clear.
	CanReturnNull bool

	// StrictOrigin faults deallocations whose origin tag does not match
	// the allocation's. Off by default: freeing memalign memory through
	// free() is accepted, as classic libc does.
	StrictOrigin bool

	// SizeClasses selects the free-list segregation strategy.
	// Nil means DefaultConfig.
	SizeClasses *SizeClassConfig

	// PageSize overrides the page size used by ReleaseToOS. Zero means
	// os.Getpagesize().
	PageSize uintptr

	// OnFault observes fatal fault reports before termination.
	OnFault malloc.FaultHandler
}

func (c Config) withDefaults() Config {
	if c.MaxSize == 0 {
		c.MaxSize = DefaultMaxSize
	}
	if c.SlabSize == 0 {
		c.SlabSize = DefaultSlabSize
	}
	if c.SizeClasses == nil {
		c.SizeClasses = &DefaultConfig
	}
	if c.PageSize == 0 {
		c.PageSize = uintptr(os.Getpagesize())
	}
	return c
}
