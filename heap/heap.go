package heap

import (
	stdheap "container/heap"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/memkit/memkit/internal/arena"
	"github.com/memkit/memkit/internal/format"
	"github.com/memkit/memkit/malloc"
)

// Runtime debug flag for allocation logging - controlled by MEMKIT_LOG_ALLOC.
var logAlloc = os.Getenv("MEMKIT_LOG_ALLOC") != ""

// heapStats holds internal operation counters (for tests and debugging).
type heapStats struct {
	AllocCalls       int // Total Allocate() calls
	FreeCalls        int // Total Deallocate() calls
	GrowCalls        int // Slabs carved from the region
	SplitCount       int // Chunk splits
	CoalesceForward  int // Forward coalesce operations
	CoalesceBackward int // Backward coalesce operations
}

// Heap is the reference Backend implementation. See the package
// documentation for the chunk and free-list design.
type Heap struct {
	cfg Config

	// mu guards the free lists, indexes, and region carving. Disable
	// acquires it and holds it until Enable.
	mu     sync.Mutex
	closed bool

	region *arena.Arena
	base   uintptr // address of region byte 0
	brk    uintptr // region bytes carved into chunks so far

	sizeTable *sizeClassTable
	freeLists []freeList
	largeFree *freeChunk // chunks >= MediumMax, simple linked list

	// byOff: chunk offset -> free chunk, O(1) lookup for coalescing.
	// endIdx: chunk end offset -> start offset, for backward coalescing.
	byOff  map[uintptr]*freeChunk
	endIdx map[uintptr]uintptr

	statAllocated atomic.Uint64
	statFree      atomic.Uint64
	statMapped    atomic.Uint64

	stats heapStats
}

// Heap implements malloc.Backend.
var _ malloc.Backend = (*Heap)(nil)

// New reserves the region and returns an empty heap.
func New(cfg Config) (*Heap, error) {
	cfg = cfg.withDefaults()
	if !format.IsAligned(cfg.SlabSize, cfg.PageSize) {
		return nil, fmt.Errorf("heap: slab size %d is not a multiple of the page size %d", cfg.SlabSize, cfg.PageSize)
	}
	if !format.IsAligned(cfg.MaxSize, cfg.SlabSize) {
		return nil, fmt.Errorf("heap: max size %d is not a multiple of the slab size %d", cfg.MaxSize, cfg.SlabSize)
	}

	region, err := arena.Map(cfg.MaxSize)
	if err != nil {
		return nil, err
	}

	table := newSizeClassTable(*cfg.SizeClasses)
	return &Heap{
		cfg:       cfg,
		region:    region,
		base:      region.Base(),
		sizeTable: table,
		freeLists: make([]freeList, table.NumClasses()),
		byOff:     make(map[uintptr]*freeChunk, 256),
		endIdx:    make(map[uintptr]uintptr, 256),
	}, nil
}

// Close unmaps the region. All outstanding blocks become invalid.
func (h *Heap) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.region.Close()
}

// CanReturnNull reports the configured null-return policy.
func (h *Heap) CanReturnNull() bool {
	return h.cfg.CanReturnNull
}

// fatal reports a contract violation and never returns.
func (h *Heap) fatal(kind malloc.FaultKind, call, detail string, args ...any) {
	malloc.Fatal(h.cfg.OnFault, &malloc.FaultReport{
		Kind:   kind,
		Call:   call,
		Detail: fmt.Sprintf(detail, args...),
	})
}

// Allocate returns a block of at least size bytes whose address is a
// multiple of alignment, zeroed when zeroFill is set.
func (h *Heap) Allocate(size uintptr, origin malloc.Origin, alignment uintptr, zeroFill bool) ([]byte, error) {
	if alignment < format.MinAlignment {
		alignment = format.MinAlignment
	}
	if alignment > MaxAlignment {
		return nil, fmt.Errorf("%w: %d > %d", ErrAlignTooBig, alignment, MaxAlignment)
	}
	if size > h.cfg.MaxSize {
		return nil, fmt.Errorf("%w: request of %d bytes", ErrNoSpace, size)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}

	payload, err := h.allocateLocked(size, origin, alignment)
	if err != nil {
		return nil, err
	}
	if zeroFill {
		clear(payload)
	}
	return payload, nil
}

// allocateLocked carves an allocated chunk and returns its payload slice.
// The slice has len == size and cap == the chunk's usable size.
func (h *Heap) allocateLocked(size uintptr, origin malloc.Origin, alignment uintptr) ([]byte, error) {
	h.stats.AllocCalls++

	need := format.AlignUp(format.HeaderSize+size, format.MinAlignment)
	if need < format.MinChunkSize {
		need = format.MinChunkSize
	}

	// Over-allocate for caller alignments so the payload can be placed on
	// the boundary with the front gap returned to the free lists.
	search := need
	if alignment > format.MinAlignment {
		search = need + 2*alignment
	}

	c := h.takeChunk(search)
	if c == nil {
		if err := h.growLocked(search); err != nil {
			return nil, err
		}
		c = h.takeChunk(search)
		if c == nil {
			return nil, ErrNoSpace
		}
	}
	off, csize := c.off, c.size

	if alignment > format.MinAlignment {
		payloadAddr := format.AlignUp(h.base+off+format.HeaderSize, alignment)
		gap := payloadAddr - format.HeaderSize - (h.base + off)
		if gap > 0 && gap < format.MinChunkSize {
			// The gap must itself be a legal chunk; move up one boundary.
			gap += alignment
		}
		if gap > 0 {
			h.insertFreeChunk(off, gap)
			off += gap
			csize -= gap
		}
	}

	// Split: keep the head, return the tail when it is a viable chunk.
	if rem := csize - need; rem >= format.MinChunkSize {
		h.stats.SplitCount++
		h.insertFreeChunk(off+need, rem)
		csize = need
	}

	h.writeAllocated(off, csize, origin)
	h.statAllocated.Add(uint64(csize))

	data := h.region.Bytes()
	payload := off + format.HeaderSize
	usable := csize - format.HeaderSize
	return data[payload : payload+size : payload+usable], nil
}

// Deallocate returns block to the free lists, coalescing with free
// neighbors. Foreign pointers, double frees, and corrupted headers are
// fatal faults.
func (h *Heap) Deallocate(block []byte, origin malloc.Origin) {
	addr := blockAddr(block)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.stats.FreeCalls++

	off, size, recorded := h.resolveChunkLocked(addr, "free")
	if h.cfg.StrictOrigin && recorded != origin {
		h.fatal(malloc.FaultOriginMismatch, "free",
			"chunk at %#x allocated via %s, deallocated via %s", addr, recorded, origin)
	}
	h.freeLocked(off, size)
}

// Reallocate resizes block in place when possible (shrinking, or growing
// into a free right neighbor) and moves it otherwise. On error the
// original block is untouched.
func (h *Heap) Reallocate(block []byte, size, alignment uintptr) ([]byte, error) {
	if alignment < format.MinAlignment {
		alignment = format.MinAlignment
	}
	if size > h.cfg.MaxSize {
		return nil, fmt.Errorf("%w: request of %d bytes", ErrNoSpace, size)
	}
	addr := blockAddr(block)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}

	off, csize, recorded := h.resolveChunkLocked(addr, "realloc")
	data := h.region.Bytes()
	payload := off + format.HeaderSize

	need := format.AlignUp(format.HeaderSize+size, format.MinAlignment)
	if need < format.MinChunkSize {
		need = format.MinChunkSize
	}

	// Shrink or exact fit: stay in place, split off a viable tail.
	if need <= csize {
		if rem := csize - need; rem >= format.MinChunkSize {
			h.stats.SplitCount++
			h.writeAllocated(off, need, recorded)
			h.statAllocated.Add(^uint64(rem - 1))
			h.coalesceAndInsert(off+need, rem)
			csize = need
		}
		return data[payload : payload+size : payload+csize-format.HeaderSize], nil
	}

	// Grow in place when a free right neighbor covers the difference.
	if n, ok := h.byOff[off+csize]; ok && csize+n.size >= need {
		h.removeFreeChunk(n)
		grown := csize + n.size
		if rem := grown - need; rem >= format.MinChunkSize {
			h.stats.SplitCount++
			h.insertFreeChunk(off+need, rem)
			grown = need
		}
		h.writeAllocated(off, grown, recorded)
		h.statAllocated.Add(uint64(grown - csize))
		return data[payload : payload+size : payload+grown-format.HeaderSize], nil
	}

	// Move. The new chunk is allocated before the old one is freed so a
	// failure leaves the original allocation valid and unmodified.
	next, err := h.allocateLocked(size, malloc.OriginMalloc, alignment)
	if err != nil {
		return nil, err
	}
	preserved := min(csize-format.HeaderSize, size)
	copy(next[:preserved], data[payload:payload+preserved])
	h.freeLocked(off, csize)
	return next, nil
}

// UsableSize returns the chunk's payload capacity, or 0 after Close.
// Foreign pointers and corrupted headers are fatal faults.
func (h *Heap) UsableSize(block []byte) uintptr {
	addr := blockAddr(block)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0
	}

	_, size, _ := h.resolveChunkLocked(addr, "malloc_usable_size")
	return size - format.HeaderSize
}

// Stats returns the usage counters as of the call.
func (h *Heap) Stats() malloc.StatCounters {
	return malloc.StatCounters{
		Allocated: h.statAllocated.Load(),
		Free:      h.statFree.Load(),
		Mapped:    h.statMapped.Load(),
	}
}

// DebugStats returns internal operation counters. Callers must not race
// it against concurrent allocation; it is meant for tests.
func (h *Heap) DebugStats() (grows, splits, coalesces int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats.GrowCalls, h.stats.SplitCount,
		h.stats.CoalesceForward + h.stats.CoalesceBackward
}

// Disable pauses the heap: the lock is held until Enable, so every
// mutating operation blocks and the chunk layout is a static snapshot.
// Not reentrant; must be paired with Enable.
func (h *Heap) Disable() {
	h.mu.Lock()
}

// Enable resumes the heap after Disable.
func (h *Heap) Enable() {
	h.mu.Unlock()
}

// IterateOverChunks walks the carved region and invokes fn for every live
// chunk whose payload starts within [base, base+size). Only well-defined
// while the heap is disabled; the walk stops at the first inconsistent
// header rather than running off the carved region.
func (h *Heap) IterateOverChunks(base, size uintptr, fn malloc.IterateFunc, arg any) {
	data := h.region.Bytes()
	limit := base + size
	if limit < base {
		limit = ^uintptr(0)
	}

	for off := uintptr(0); off < h.brk; {
		raw := format.ReadI64(data, off)
		csize := uintptr(raw)
		allocated := raw < 0
		if allocated {
			csize = uintptr(-raw)
		}
		if csize < format.MinChunkSize || csize > h.brk-off || !format.IsAligned(csize, format.MinAlignment) {
			break
		}
		if allocated {
			payload := h.base + off + format.HeaderSize
			if payload >= base && payload < limit {
				fn(payload, csize-format.HeaderSize, arg)
			}
		}
		off += csize
	}
}

// ReleaseToOS hands the page-aligned interior of every free chunk back to
// the operating system. Chunk headers stay resident so the layout survives.
// Best effort: spans that fail to release are skipped.
func (h *Heap) ReleaseToOS() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}

	page := h.cfg.PageSize
	for _, c := range h.byOff {
		start := format.AlignUp(c.off+format.HeaderSize, page)
		stop := format.AlignDown(c.off+c.size, page)
		if stop <= start {
			continue
		}
		if err := h.region.Release(start, stop-start); err != nil && logAlloc {
			fmt.Fprintf(os.Stderr, "[HEAP] release [%d, %d): %v\n", start, stop, err)
		}
	}
}

// ============================================================================
// Internal helpers
// ============================================================================

// blockAddr returns the address identifying block: the address of its
// backing array.
func blockAddr(block []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(block)))
}

// resolveChunkLocked validates that addr is the payload address of a live
// chunk and returns its offset, total size, and recorded origin. Every
// failure mode is a fatal fault; the function only returns for valid
// chunks.
func (h *Heap) resolveChunkLocked(addr uintptr, call string) (off, size uintptr, origin malloc.Origin) {
	if addr < h.base+format.HeaderSize || addr >= h.base+h.brk ||
		!format.IsAligned(addr-h.base, format.MinAlignment) {
		h.fatal(malloc.FaultInvalidPointer, call, "pointer %#x is not owned by this heap", addr)
	}
	off = addr - h.base - format.HeaderSize

	data := h.region.Bytes()
	raw := format.ReadI64(data, off)
	word := format.ReadU64(data, off+8)

	if raw >= 0 {
		// Positive size word: a free chunk (double free) or garbage.
		if _, state, ok := format.UnpackCheckWord(word, off, uintptr(raw)); ok && state == format.StateFree {
			h.fatal(malloc.FaultDoubleFree, call, "chunk at %#x is already free", addr)
		}
		h.fatal(malloc.FaultCorruptedHeader, call, "chunk at %#x has no valid header", addr)
	}

	size = uintptr(-raw)
	if size < format.MinChunkSize || size > h.brk-off || !format.IsAligned(size, format.MinAlignment) {
		h.fatal(malloc.FaultCorruptedHeader, call,
			"chunk at %#x declares impossible size %d", addr, size)
	}
	rawOrigin, state, ok := format.UnpackCheckWord(word, off, size)
	if !ok || state != format.StateAllocated {
		h.fatal(malloc.FaultCorruptedHeader, call,
			"chunk at %#x fails its header integrity check", addr)
	}
	return off, size, malloc.Origin(rawOrigin)
}

// freeLocked marks the chunk free, coalesces, and indexes it.
func (h *Heap) freeLocked(off, size uintptr) {
	h.statAllocated.Add(^uint64(size - 1))
	h.coalesceAndInsert(off, size)
}

// coalesceAndInsert merges [off, off+size) with free neighbors and inserts
// the result into the free lists.
func (h *Heap) coalesceAndInsert(off, size uintptr) {
	// Mark the chunk free at its own offset first. A backward merge writes
	// the final header at the predecessor's offset, and without this the
	// chunk would keep a valid allocated header that lets a stale pointer
	// re-validate instead of tripping the double-free check.
	h.writeFree(off, size)

	// Forward: a free chunk starting exactly where this one ends.
	if n, ok := h.byOff[off+size]; ok {
		h.stats.CoalesceForward++
		h.removeFreeChunk(n)
		size += n.size
	}
	// Backward: a free chunk ending exactly where this one starts.
	if prevOff, ok := h.endIdx[off]; ok {
		if p, ok := h.byOff[prevOff]; ok {
			h.stats.CoalesceBackward++
			h.removeFreeChunk(p)
			size += p.size
			off = prevOff
		}
	}
	h.insertFreeChunk(off, size)
}

// insertFreeChunk writes the free header and adds the chunk to its size
// class heap (or the large list) and the coalescing indexes.
func (h *Heap) insertFreeChunk(off, size uintptr) {
	h.writeFree(off, size)

	c := &freeChunk{off: off, size: size, sc: -1, heapIndex: -1}
	if sc := h.sizeTable.getSizeClass(size); sc < len(h.freeLists) {
		c.sc = sc
		stdheap.Push(&h.freeLists[sc].heap, c)
		h.freeLists[sc].count++
	} else {
		c.next = h.largeFree
		h.largeFree = c
	}

	h.byOff[off] = c
	h.endIdx[off+size] = off
	h.statFree.Add(uint64(size))
}

// removeFreeChunk detaches a chunk from its free list and the indexes.
func (h *Heap) removeFreeChunk(c *freeChunk) {
	if c.sc >= 0 {
		stdheap.Remove(&h.freeLists[c.sc].heap, c.heapIndex)
		h.freeLists[c.sc].count--
	} else {
		var prev *freeChunk
		for cur := h.largeFree; cur != nil; cur = cur.next {
			if cur == c {
				if prev == nil {
					h.largeFree = cur.next
				} else {
					prev.next = cur.next
				}
				break
			}
			prev = cur
		}
	}
	delete(h.byOff, c.off)
	delete(h.endIdx, c.off+c.size)
	h.statFree.Add(^uint64(c.size - 1))
}

// takeChunk removes and returns the best-fitting free chunk of at least
// need bytes, or nil when none exists.
func (h *Heap) takeChunk(need uintptr) *freeChunk {
	for sc := h.sizeTable.getSizeClass(need); sc < len(h.freeLists); sc++ {
		if c := h.takeFromClass(sc, need); c != nil {
			return c
		}
	}
	return h.takeFromLarge(need)
}

// takeFromClass pops a fitting chunk from one size class heap.
//
// Fast path (O(log n)): heap[0] is the smallest chunk in the class; if it
// fits it is the best fit by definition.
//
// Slow path: heap[0] is too small but larger chunks in the class may fit.
// Bounded good-enough scan instead of a full best-fit pass.
func (h *Heap) takeFromClass(sc int, need uintptr) *freeChunk {
	list := &h.freeLists[sc]
	if list.heap.Len() == 0 {
		return nil
	}

	if list.heap[0].size >= need {
		c := stdheap.Pop(&list.heap).(*freeChunk) //nolint:errcheck // heap contains only *freeChunk
		list.count--
		h.unindex(c)
		return c
	}

	const (
		maxScan   = 32 // Never scan more than 32 chunks
		tolerance = 64 // Accept chunks within 64 bytes of optimal
	)
	bestIdx := -1
	bestSize := ^uintptr(0)
	maxAcceptable := need + tolerance

	limit := min(list.heap.Len(), maxScan)
	for i := 1; i < limit; i++ {
		sz := list.heap[i].size
		if sz < need {
			continue
		}
		if sz <= maxAcceptable {
			bestIdx = i
			break
		}
		if sz < bestSize {
			bestIdx, bestSize = i, sz
		}
	}
	if bestIdx == -1 {
		return nil
	}

	c := stdheap.Remove(&list.heap, bestIdx).(*freeChunk) //nolint:errcheck // heap contains only *freeChunk
	list.count--
	h.unindex(c)
	return c
}

// takeFromLarge removes the first fitting chunk from the large list.
func (h *Heap) takeFromLarge(need uintptr) *freeChunk {
	var prev *freeChunk
	for cur := h.largeFree; cur != nil; cur = cur.next {
		if cur.size >= need {
			if prev == nil {
				h.largeFree = cur.next
			} else {
				prev.next = cur.next
			}
			h.unindex(cur)
			return cur
		}
		prev = cur
	}
	return nil
}

// unindex drops a detached chunk from the coalescing indexes and counters.
func (h *Heap) unindex(c *freeChunk) {
	delete(h.byOff, c.off)
	delete(h.endIdx, c.off+c.size)
	h.statFree.Add(^uint64(c.size - 1))
}

// growLocked carves a new slab from the region and inserts it as one free
// chunk, merging with a trailing free chunk when present.
func (h *Heap) growLocked(need uintptr) error {
	slab := h.cfg.SlabSize
	if need > slab {
		slab = format.AlignUp(need, h.cfg.SlabSize)
	}
	if slab > h.cfg.MaxSize-h.brk {
		return fmt.Errorf("%w: region limit of %d bytes reached", ErrNoSpace, h.cfg.MaxSize)
	}

	h.stats.GrowCalls++
	off := h.brk
	h.brk += slab
	h.statMapped.Add(uint64(slab))

	if logAlloc {
		fmt.Fprintf(os.Stderr, "[HEAP] grow #%d: need=%d slab=%d brk=%d\n",
			h.stats.GrowCalls, need, slab, h.brk)
	}

	h.coalesceAndInsert(off, slab)
	return nil
}

// writeFree writes a free chunk header at off.
func (h *Heap) writeFree(off, size uintptr) {
	data := h.region.Bytes()
	format.PutI64(data, off, int64(size))
	format.PutU64(data, off+8, format.PackCheckWord(off, size, 0, format.StateFree))
}

// writeAllocated writes an allocated chunk header at off.
func (h *Heap) writeAllocated(off, size uintptr, origin malloc.Origin) {
	data := h.region.Bytes()
	format.PutI64(data, off, -int64(size))
	format.PutU64(data, off+8, format.PackCheckWord(off, size, uint8(origin), format.StateAllocated))
}
