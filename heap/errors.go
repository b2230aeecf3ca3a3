package heap

import "errors"

var (
	// ErrNoSpace indicates the region is exhausted: no free chunk fits and
	// the heap cannot grow further.
	ErrNoSpace = errors.New("heap: no free chunk large enough")

	// ErrAlignTooBig indicates a requested alignment above MaxAlignment.
	ErrAlignTooBig = errors.New("heap: alignment exceeds maximum")

	// ErrClosed indicates use of a heap after Close.
	ErrClosed = errors.New("heap: closed")
)
