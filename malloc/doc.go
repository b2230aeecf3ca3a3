// Package malloc implements a hardened C-style allocation API over a
// pluggable backend.
//
// # Overview
//
// An Allocator exposes the classic libc surface — Malloc, Calloc, Realloc,
// Free, Memalign, AlignedAlloc, PosixMemalign, Valloc, Pvalloc — plus the
// conventional introspection extensions: UsableSize, Mallinfo, MallocInfo,
// Mallopt, Iterate, and Disable/Enable. Each entry point validates its
// arguments, computes the effective size and alignment demanded by the
// function's contract, and dispatches to a Backend.
//
// Allocations are []byte blocks. A block's identity is the address of its
// backing array, so blocks behave like C pointers: they must be freed
// exactly once and must not be re-sliced before being handed back.
//
// # Error policy
//
// Failures split into two classes. Recoverable errors (arithmetic
// overflow, bad alignment, allocation failure) surface through the normal
// error channel — nil plus unix.ENOMEM or unix.EINVAL — but only when the
// backend's CanReturnNull policy permits. When it does not, the failure is
// reported as a FaultReport and the call never returns. Contract
// violations detected by the backend (double free, foreign pointer,
// corrupted header) are always fatal regardless of policy.
//
// The policy check always happens before a report is produced, so a
// permissive configuration behaves exactly like classic libc.
//
// # Pausing the heap
//
// Iterate is only well-defined between Disable and Enable, which pause all
// allocation activity so a static snapshot of live chunks can be observed
// (for example around fork). Disable/Enable are not reentrant and must be
// called in matched pairs.
package malloc
