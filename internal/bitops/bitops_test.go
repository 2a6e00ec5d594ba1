package bitops

import "testing"

func TestAndInto(t *testing.T) {
	a := []uint64{0xFF00FF00FF00FF00, 0x1}
	b := []uint64{0x0F0F0F0F0F0F0F0F, 0x1}
	dst := make([]uint64, 2)

	AndInto(dst, a, b)

	if dst[0] != 0x0F000F000F000F00 {
		t.Fatalf("got %#x, want %#x", dst[0], 0x0F000F000F000F00)
	}
	if dst[1] != 1 {
		t.Fatalf("got %#x, want 1", dst[1])
	}
}

func TestDecryptChunk(t *testing.T) {
	t.Run("all masked bits set", func(t *testing.T) {
		mask := []uint64{0b1010}
		chunk := []uint64{0b1010}

		if !DecryptChunk(chunk, mask) {
			t.Fatal("want true")
		}
	})

	t.Run("a masked bit is zero", func(t *testing.T) {
		mask := []uint64{0b1010}
		chunk := []uint64{0b1000}

		if DecryptChunk(chunk, mask) {
			t.Fatal("want false")
		}
	})

	t.Run("unmasked bits are irrelevant", func(t *testing.T) {
		mask := []uint64{0b1010}
		chunk := []uint64{0b1111}

		if !DecryptChunk(chunk, mask) {
			t.Fatal("want true")
		}
	})
}

func TestApplyTransposition(t *testing.T) {
	chunk := []uint64{0b10}
	ApplyTransposition(chunk, Transposition{ChA: 0, BitA: 1, ChB: 0, BitB: 0})

	if chunk[0] != 0b01 {
		t.Fatalf("got %#b, want %#b", chunk[0], 0b01)
	}
}

func TestApplyTranspositionsRoundTrip(t *testing.T) {
	orig := []uint64{0xDEADBEEFCAFEBABE, 0x0123456789ABCDEF}
	chunk := append([]uint64(nil), orig...)

	ts := []Transposition{
		{ChA: 0, BitA: 3, ChB: 1, BitB: 40},
		{ChA: 0, BitA: 0, ChB: 0, BitB: 63},
		{ChA: 1, BitA: 10, ChB: 0, BitB: 20},
	}

	ApplyTranspositions(chunk, ts)

	for i := len(ts) - 1; i >= 0; i-- {
		ApplyTransposition(chunk, ts[i])
	}

	for i := range orig {
		if chunk[i] != orig[i] {
			t.Fatalf("chunk[%d] = %#x, want %#x", i, chunk[i], orig[i])
		}
	}
}
