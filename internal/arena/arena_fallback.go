//go:build !unix

package arena

import "fmt"

// Map allocates size bytes on the Go heap. Fallback for targets without an
// anonymous-mapping path; pages are committed eagerly.
func Map(size uintptr) (*Arena, error) {
	if size == 0 || size > uintptr(^uint(0)>>1) {
		return nil, fmt.Errorf("arena: invalid reservation size %d", size)
	}
	return &Arena{data: make([]byte, size)}, nil
}

// Release zeroes the span so the arena keeps the mmap contract of released
// spans reading back as zero. Memory is not returned to the OS here.
func (a *Arena) Release(off, n uintptr) error {
	if n == 0 {
		return nil
	}
	if off+n > a.Size() {
		return fmt.Errorf("arena: release [%d, %d) outside region of %d bytes", off, off+n, a.Size())
	}
	clear(a.data[off : off+n])
	return nil
}

// Close drops the region reference.
func (a *Arena) Close() error {
	a.data = nil
	return nil
}
