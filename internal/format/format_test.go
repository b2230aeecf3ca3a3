package format

import "testing"

func TestAlignUp(t *testing.T) {
	cases := []struct{ n, align, want uintptr }{
		{0, 16, 0},
		{1, 16, 16},
		{15, 16, 16},
		{16, 16, 16},
		{17, 16, 32},
		{4095, 4096, 4096},
		{4097, 4096, 8192},
	}
	for _, tc := range cases {
		if got := AlignUp(tc.n, tc.align); got != tc.want {
			t.Errorf("AlignUp(%d, %d) = %d, want %d", tc.n, tc.align, got, tc.want)
		}
	}
}

func TestAlignDown(t *testing.T) {
	cases := []struct{ n, align, want uintptr }{
		{0, 16, 0},
		{15, 16, 0},
		{16, 16, 16},
		{31, 16, 16},
		{4097, 4096, 4096},
	}
	for _, tc := range cases {
		if got := AlignDown(tc.n, tc.align); got != tc.want {
			t.Errorf("AlignDown(%d, %d) = %d, want %d", tc.n, tc.align, got, tc.want)
		}
	}
}

func TestIsAligned(t *testing.T) {
	if !IsAligned(32, 16) || !IsAligned(0, 16) {
		t.Fatal("multiples must report aligned")
	}
	if IsAligned(17, 16) || IsAligned(8, 16) {
		t.Fatal("non-multiples must report unaligned")
	}
}

func TestEncoding_RoundTripsAtOffsets(t *testing.T) {
	data := make([]byte, 64)

	PutI64(data, 0, -12345)
	PutI64(data, 16, 1<<40)
	PutU64(data, 8, 0xFEEDFACECAFEBEEF)

	if got := ReadI64(data, 0); got != -12345 {
		t.Fatalf("ReadI64(0) = %d", got)
	}
	if got := ReadI64(data, 16); got != 1<<40 {
		t.Fatalf("ReadI64(16) = %d", got)
	}
	if got := ReadU64(data, 8); got != 0xFEEDFACECAFEBEEF {
		t.Fatalf("ReadU64(8) = %#x", got)
	}
}

func TestCheckWord_RoundTrip(t *testing.T) {
	w := PackCheckWord(1024, 256, 1, StateAllocated)
	origin, state, valid := UnpackCheckWord(w, 1024, 256)
	if !valid {
		t.Fatal("freshly packed word must validate")
	}
	if origin != 1 {
		t.Fatalf("origin = %d, want 1", origin)
	}
	if state != StateAllocated {
		t.Fatalf("state = %#x, want %#x", state, StateAllocated)
	}
}

func TestCheckWord_RejectsTampering(t *testing.T) {
	w := PackCheckWord(1024, 256, 0, StateAllocated)

	// Wrong location or size: the checksum is bound to both.
	if _, _, valid := UnpackCheckWord(w, 1040, 256); valid {
		t.Fatal("word must not validate at a different offset")
	}
	if _, _, valid := UnpackCheckWord(w, 1024, 512); valid {
		t.Fatal("word must not validate for a different size")
	}

	// Bit flips anywhere in the word.
	for bit := 0; bit < 64; bit++ {
		if _, _, valid := UnpackCheckWord(w^(1<<bit), 1024, 256); valid {
			t.Fatalf("flipping bit %d still validates", bit)
		}
	}
}

func TestCheckWord_DistinguishesStates(t *testing.T) {
	allocated := PackCheckWord(0, 64, 0, StateAllocated)
	free := PackCheckWord(0, 64, 0, StateFree)
	if allocated == free {
		t.Fatal("allocated and free words must differ")
	}
	if _, state, valid := UnpackCheckWord(free, 0, 64); !valid || state != StateFree {
		t.Fatalf("free word: state=%#x valid=%v", state, valid)
	}
}

func TestCheckWord_ZeroIsInvalid(t *testing.T) {
	if _, _, valid := UnpackCheckWord(0, 0, MinChunkSize); valid {
		t.Fatal("an all-zero word must not validate")
	}
}
