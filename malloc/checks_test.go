package malloc

import (
	"testing"
	"unsafe"
)

func Test_CallocOverflow(t *testing.T) {
	cases := []struct {
		name         string
		nmemb, size  uintptr
		want         uintptr
		wantOverflow bool
	}{
		{"zero", 0, 0, 0, false},
		{"zero nmemb", 0, 16, 0, false},
		{"small", 4, 8, 32, false},
		{"max representable", 1, ^uintptr(0), ^uintptr(0), false},
		{"half times two", ^uintptr(0)/2 + 1, 2, 0, true},
		{"max times max", ^uintptr(0), ^uintptr(0), 0, true},
		{"sqrt boundary", 1 << 32, 1 << 32, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, overflow := checkForCallocOverflow(tc.nmemb, tc.size)
			if overflow != tc.wantOverflow {
				t.Fatalf("overflow = %v, want %v", overflow, tc.wantOverflow)
			}
			if !overflow && got != tc.want {
				t.Fatalf("product = %d, want %d", got, tc.want)
			}
		})
	}
}

func Test_PvallocOverflow(t *testing.T) {
	const page = 4096
	if checkForPvallocOverflow(0, page) {
		t.Fatal("size 0 must not overflow")
	}
	if checkForPvallocOverflow(1<<20, page) {
		t.Fatal("small size must not overflow")
	}
	if !checkForPvallocOverflow(^uintptr(0), page) {
		t.Fatal("max size must overflow")
	}
	if !checkForPvallocOverflow(^uintptr(0)-page+2, page) {
		t.Fatal("size within page-1 of max must overflow")
	}
	if checkForPvallocOverflow(^uintptr(0)-page+1, page) {
		t.Fatal("largest page multiple must not overflow")
	}
}

func Test_PowerOfTwo(t *testing.T) {
	for _, x := range []uintptr{1, 2, 4, 16, 4096, 1 << 40} {
		if !isPowerOfTwo(x) {
			t.Fatalf("%d should be a power of two", x)
		}
	}
	for _, x := range []uintptr{0, 3, 6, 24, 4095} {
		if isPowerOfTwo(x) {
			t.Fatalf("%d should not be a power of two", x)
		}
	}
}

func Test_RoundUpToPowerOfTwo(t *testing.T) {
	cases := map[uintptr]uintptr{
		0: 1, 1: 1, 2: 2, 3: 4, 5: 8, 17: 32, 4096: 4096, 4097: 8192,
	}
	for in, want := range cases {
		got, ok := roundUpToPowerOfTwo(in)
		if !ok || got != want {
			t.Fatalf("roundUpToPowerOfTwo(%d) = %d, %v, want %d", in, got, ok, want)
		}
	}

	// Values above the top bit have no representable round-up.
	top := uintptr(1) << (unsafe.Sizeof(uintptr(0))*8 - 1)
	for _, in := range []uintptr{top + 1, ^uintptr(0)} {
		if _, ok := roundUpToPowerOfTwo(in); ok {
			t.Fatalf("roundUpToPowerOfTwo(%d) should not be representable", in)
		}
	}
	if got, ok := roundUpToPowerOfTwo(top); !ok || got != top {
		t.Fatalf("roundUpToPowerOfTwo(top bit) = %d, %v", got, ok)
	}
}

func Test_PosixMemalignPredicate(t *testing.T) {
	ptr := unsafe.Sizeof(uintptr(0))
	valid := []uintptr{ptr, 2 * ptr, 16, 64, 4096}
	for _, a := range valid {
		if invalidPosixMemalignAlignment(a) {
			t.Fatalf("alignment %d should be valid", a)
		}
	}
	invalid := []uintptr{0, 1, 2, ptr - 1, 24, 3 * ptr}
	for _, a := range invalid {
		if !invalidPosixMemalignAlignment(a) {
			t.Fatalf("alignment %d should be invalid", a)
		}
	}
}

func Test_AlignedAllocPredicate(t *testing.T) {
	if invalidAlignedAllocAlignmentAndSize(16, 64) {
		t.Fatal("16/64 should be valid")
	}
	if invalidAlignedAllocAlignmentAndSize(16, 0) {
		t.Fatal("size 0 is a multiple of any alignment")
	}
	if !invalidAlignedAllocAlignmentAndSize(24, 48) {
		t.Fatal("non-power-of-two alignment should be invalid")
	}
	if !invalidAlignedAllocAlignmentAndSize(16, 40) {
		t.Fatal("size not a multiple of alignment should be invalid")
	}
	if !invalidAlignedAllocAlignmentAndSize(0, 0) {
		t.Fatal("zero alignment should be invalid")
	}
}
