package malloc_test

import (
	"bytes"
	"os"
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/memkit/memkit/heap"
	"github.com/memkit/memkit/malloc"
)

// newTestAllocator builds an allocator over a real heap with permissive
// null returns, sized for tests.
func newTestAllocator(t *testing.T, cfg heap.Config) *malloc.Allocator {
	t.Helper()
	if cfg.MaxSize == 0 {
		cfg.MaxSize = 16 << 20
	}
	cfg.CanReturnNull = true
	h, err := heap.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return malloc.New(h, malloc.Config{})
}

func blockAddr(block []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(block)))
}

func TestMalloc_UsableSizeCoversRequest(t *testing.T) {
	a := newTestAllocator(t, heap.Config{})

	for _, size := range []uintptr{1, 7, 16, 24, 100, 4096, 100000} {
		block, err := a.Malloc(size)
		require.NoError(t, err, "malloc(%d)", size)
		require.Len(t, block, int(size))
		assert.GreaterOrEqual(t, a.UsableSize(block), size)
		a.Free(block)
	}
}

func TestMalloc_ZeroSizeIsAValidAllocation(t *testing.T) {
	a := newTestAllocator(t, heap.Config{})

	block, err := a.Malloc(0)
	require.NoError(t, err)
	require.NotNil(t, block)
	assert.Empty(t, block)
	a.Free(block) // must be freeable exactly once
}

func TestCalloc_ZeroFilled(t *testing.T) {
	a := newTestAllocator(t, heap.Config{})

	// Dirty a block, free it, and calloc over the recycled chunk.
	dirty, err := a.Malloc(256)
	require.NoError(t, err)
	for i := range dirty {
		dirty[i] = 0xAA
	}
	a.Free(dirty)

	block, err := a.Calloc(16, 16)
	require.NoError(t, err)
	require.Len(t, block, 256)
	assert.Equal(t, make([]byte, 256), block, "calloc must zero recycled memory")
	a.Free(block)
}

func TestRealloc_GrowPreservesContent(t *testing.T) {
	a := newTestAllocator(t, heap.Config{})

	block, err := a.Malloc(16)
	require.NoError(t, err)
	for i := range block {
		block[i] = byte(i + 1)
	}

	grown, err := a.Realloc(block, 64)
	require.NoError(t, err)
	require.Len(t, grown, 64)
	assert.GreaterOrEqual(t, a.UsableSize(grown), uintptr(64))
	for i := 0; i < 16; i++ {
		assert.Equal(t, byte(i+1), grown[i], "byte %d", i)
	}
	a.Free(grown)
}

func TestRealloc_NilBehavesAsMalloc(t *testing.T) {
	a := newTestAllocator(t, heap.Config{})

	block, err := a.Realloc(nil, 128)
	require.NoError(t, err)
	require.Len(t, block, 128)
	assert.GreaterOrEqual(t, a.UsableSize(block), uintptr(128))
	a.Free(block)
}

func TestRealloc_ZeroSizeFrees(t *testing.T) {
	a := newTestAllocator(t, heap.Config{})

	block, err := a.Malloc(64)
	require.NoError(t, err)
	released, err := a.Realloc(block, 0)
	require.NoError(t, err)
	assert.Nil(t, released)
	// The chunk is back on the free lists: the next same-size malloc
	// reuses it.
	again, err := a.Malloc(64)
	require.NoError(t, err)
	a.Free(again)
}

func TestRealloc_FailureLeavesOriginalIntact(t *testing.T) {
	// One-slab heap: a request beyond the region must fail.
	a := newTestAllocator(t, heap.Config{MaxSize: 1 << 20, SlabSize: 1 << 20})

	block, err := a.Malloc(512)
	require.NoError(t, err)
	for i := range block {
		block[i] = byte(i)
	}
	snapshot := bytes.Clone(block)

	grown, err := a.Realloc(block, 8<<20)
	require.ErrorIs(t, err, unix.ENOMEM)
	assert.Nil(t, grown)
	assert.Equal(t, snapshot, block, "a failed realloc must not modify the original")

	// The original is still live and freeable.
	assert.GreaterOrEqual(t, a.UsableSize(block), uintptr(512))
	a.Free(block)
}

func TestPosixMemalign_AlignmentHonored(t *testing.T) {
	a := newTestAllocator(t, heap.Config{})

	for _, alignment := range []uintptr{16, 32, 64, 256, 4096, 1 << 16} {
		var block []byte
		require.NoError(t, a.PosixMemalign(&block, alignment, 100), "alignment %d", alignment)
		assert.Zerof(t, blockAddr(block)%alignment, "pointer %#x not aligned to %d", blockAddr(block), alignment)
		assert.GreaterOrEqual(t, a.UsableSize(block), uintptr(100))
		a.Free(block)
	}
}

func TestAlignedAlloc_ContractEnforced(t *testing.T) {
	a := newTestAllocator(t, heap.Config{})

	block, err := a.AlignedAlloc(64, 128)
	require.NoError(t, err)
	assert.Zero(t, blockAddr(block)%64)
	a.Free(block)

	_, err = a.AlignedAlloc(64, 100)
	assert.ErrorIs(t, err, unix.EINVAL, "size not a multiple of alignment")
}

func TestPvalloc_ZeroSizeIsOnePage(t *testing.T) {
	page := uintptr(os.Getpagesize())
	a := newTestAllocator(t, heap.Config{})

	block, err := a.Pvalloc(0)
	require.NoError(t, err)
	assert.Zero(t, blockAddr(block)%page, "pvalloc must be page aligned")
	usable := a.UsableSize(block)
	assert.GreaterOrEqual(t, usable, page)
	assert.Less(t, usable, 2*page, "pvalloc(0) is exactly one page")
	a.Free(block)
}

func TestValloc_PageAligned(t *testing.T) {
	page := uintptr(os.Getpagesize())
	a := newTestAllocator(t, heap.Config{})

	block, err := a.Valloc(10)
	require.NoError(t, err)
	assert.Zero(t, blockAddr(block)%page)
	require.Len(t, block, 10)
	a.Free(block)
}

func TestIterate_SeesAllLiveChunks(t *testing.T) {
	a := newTestAllocator(t, heap.Config{})

	want := make(map[uintptr]uintptr)
	var blocks [][]byte
	for _, size := range []uintptr{16, 64, 100, 2048} {
		block, err := a.Malloc(size)
		require.NoError(t, err)
		blocks = append(blocks, block)
		want[blockAddr(block)] = size
	}

	got := make(map[uintptr]uintptr)
	a.Disable()
	rc := a.Iterate(0, ^uintptr(0), func(base, size uintptr, arg any) {
		arg.(map[uintptr]uintptr)[base] = size
	}, got)
	a.Enable()
	assert.Zero(t, rc)

	for base, size := range want {
		gotSize, ok := got[base]
		require.Truef(t, ok, "live chunk %#x missing from iteration", base)
		assert.GreaterOrEqual(t, gotSize, size)
	}

	// Enable must restore normal allocation behavior.
	after, err := a.Malloc(32)
	require.NoError(t, err)
	a.Free(after)

	for _, block := range blocks {
		a.Free(block)
	}
}

func TestMallinfo_TracksRealHeap(t *testing.T) {
	a := newTestAllocator(t, heap.Config{})

	before := a.Mallinfo()
	assert.Zero(t, before.Uordblks)

	block, err := a.Malloc(1024)
	require.NoError(t, err)

	during := a.Mallinfo()
	assert.GreaterOrEqual(t, during.Uordblks, uint64(1024))
	assert.Positive(t, during.Hblkhd, "allocation must map region bytes")
	assert.Equal(t, during.Hblkhd, during.Usmblks)
	assert.Equal(t, during.Fsmblks, during.Fordblks)

	a.Free(block)
	after := a.Mallinfo()
	assert.Zero(t, after.Uordblks)
}

func TestConcurrent_MallocFreeChurn(t *testing.T) {
	a := newTestAllocator(t, heap.Config{MaxSize: 64 << 20})

	const (
		workers = 2
		rounds  = 10000
	)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				size := uintptr(8 + (i+w*13)%512)
				block, err := a.Malloc(size)
				if err != nil {
					t.Errorf("worker %d: malloc(%d): %v", w, size, err)
					return
				}
				block[0] = byte(w)
				block[len(block)-1] = byte(i)
				a.Free(block)
			}
		}()
	}
	wg.Wait()

	info := a.Mallinfo()
	assert.Zero(t, info.Uordblks, "all blocks were freed")
}

func TestFree_DoubleFreeIsFatal(t *testing.T) {
	var got *malloc.FaultReport
	h, err := heap.New(heap.Config{
		MaxSize:       1 << 20,
		SlabSize:      1 << 20,
		CanReturnNull: true,
		OnFault:       func(r *malloc.FaultReport) { got = r },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	a := malloc.New(h, malloc.Config{})

	block, err := a.Malloc(64)
	require.NoError(t, err)
	a.Free(block)

	require.Panics(t, func() { a.Free(block) })
	require.NotNil(t, got)
	assert.Equal(t, malloc.FaultDoubleFree, got.Kind)
}
