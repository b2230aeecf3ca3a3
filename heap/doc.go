// Package heap is the reference allocation backend: a segregated free-list
// heap carved out of one contiguous anonymous memory region.
//
// # Overview
//
// The region is tiled with chunks, each a 16-byte header followed by its
// payload. The header carries a signed size word (negative while
// allocated, positive while free) and a check word binding the chunk's
// offset, size, origin, and state. Every pointer handed back in is
// re-validated against its header, so double frees, foreign pointers, and
// overwritten headers are detected and reported as fatal faults.
//
// # Free-list design
//
// Free chunks are segregated by size class, one min-heap per class:
//
//   - Min-heaps give O(log n) allocation/removal and perfect best-fit
//   - Tunable size classes keep the individual heaps small
//   - Offset indexes give O(1) forward and backward coalescing
//
// Chunks above the medium cutoff live on a simple linked list. When no
// free chunk fits, the heap carves a new slab from the region; when the
// region is exhausted, allocation fails with ErrNoSpace and the API
// surface applies its null-return policy.
//
// # Pausing
//
// Disable acquires the heap lock and holds it until Enable, so every
// mutating operation blocks for the duration and IterateOverChunks
// observes a static snapshot. ReleaseToOS hands the page-aligned interior
// of free chunks back to the OS with madvise.
package heap
