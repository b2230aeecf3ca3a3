//go:build unix

package arena

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Map reserves size bytes of private anonymous memory and returns the
// arena backed by it. Pages are committed lazily by the kernel, so a large
// reservation is cheap until written.
func Map(size uintptr) (*Arena, error) {
	if size == 0 || size > uintptr(^uint(0)>>1) {
		return nil, fmt.Errorf("arena: invalid reservation size %d", size)
	}
	data, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("arena: mmap %d bytes: %w", size, err)
	}
	return &Arena{data: data, mapped: true}, nil
}

// Release hands the page-aligned span [off, off+n) back to the OS. The
// span reads as zero afterwards. Callers must not release bytes that still
// hold live data.
func (a *Arena) Release(off, n uintptr) error {
	if n == 0 {
		return nil
	}
	if off+n > a.Size() {
		return fmt.Errorf("arena: release [%d, %d) outside region of %d bytes", off, off+n, a.Size())
	}
	return unix.Madvise(a.data[off:off+n], unix.MADV_DONTNEED)
}

// Close unmaps the region. The arena's bytes must not be touched afterwards.
func (a *Arena) Close() error {
	if !a.mapped || a.data == nil {
		return nil
	}
	data := a.data
	a.data = nil
	err := unix.Munmap(data)
	if errors.Is(err, unix.EINVAL) {
		// Treat double-unmap as no-op for callers.
		return nil
	}
	return err
}
