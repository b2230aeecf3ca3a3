package heap

// freeChunk represents one free chunk tracked by the allocator.
// Chunks in a size class live in that class's min-heap; large chunks live
// on the linked list and keep heapIndex == -1.
type freeChunk struct {
	off       uintptr // Region offset of the chunk header
	size      uintptr // Total size including header
	sc        int     // Size class, or -1 for the large list
	heapIndex int     // Position in the class heap (for heap.Remove)
	next      *freeChunk
}

// freeList is a size-class-specific free list using a min-heap.
type freeList struct {
	heap  chunkHeap
	count int
}

// chunkHeap implements heap.Interface as a min-heap keyed on chunk size.
// The smallest chunk sits at the top, giving perfect best-fit allocation.
type chunkHeap []*freeChunk

func (h *chunkHeap) Len() int { return len(*h) }

func (h *chunkHeap) Less(i, j int) bool {
	return (*h)[i].size < (*h)[j].size
}

func (h *chunkHeap) Swap(i, j int) {
	(*h)[i], (*h)[j] = (*h)[j], (*h)[i]
	(*h)[i].heapIndex = i
	(*h)[j].heapIndex = j
}

func (h *chunkHeap) Push(x any) {
	c := x.(*freeChunk) //nolint:errcheck // heap.Interface contract guarantees type
	c.heapIndex = len(*h)
	*h = append(*h, c)
}

func (h *chunkHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	c.heapIndex = -1
	*h = old[0 : n-1]
	return c
}
