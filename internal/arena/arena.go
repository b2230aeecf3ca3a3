// Package arena provides the contiguous anonymous memory region the heap
// carves chunks from. On unix targets the region is a private anonymous
// mapping so untouched pages cost nothing and freed spans can be returned
// to the OS; elsewhere a plain slice stands in.
package arena

import "unsafe"

// Arena is a fixed-size contiguous byte region. The heap treats it as raw
// storage: all chunk bookkeeping lives in the bytes themselves.
type Arena struct {
	data   []byte
	mapped bool
}

// Bytes returns the full region. The slice aliases the mapping; it must not
// be used after Close.
func (a *Arena) Bytes() []byte {
	return a.data
}

// Size returns the region size in bytes.
func (a *Arena) Size() uintptr {
	return uintptr(len(a.data))
}

// Base returns the address of the first byte of the region. mmap-backed
// regions are page-aligned.
func (a *Arena) Base() uintptr {
	if len(a.data) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(unsafe.SliceData(a.data)))
}

// Contains reports whether addr falls inside the region.
func (a *Arena) Contains(addr uintptr) bool {
	base := a.Base()
	return addr >= base && addr < base+a.Size()
}
