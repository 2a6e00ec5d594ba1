package certfhe

import (
	"fmt"
	"io"

	"github.com/certfhe/certfhe/certerr"
	"github.com/certfhe/certfhe/cfctx"
	"github.com/certfhe/certfhe/internal/bitops"
	"github.com/certfhe/certfhe/internal/randsrc"
)

// Permutation is a bijection on {0, ..., N-1} produced by a Fisher-Yates
// draw, carried both as the resulting array and as the ordered list of
// transpositions recorded while drawing it. Applying a Permutation to a
// default chunk means replaying its transposition list in order; the
// array form exists for composition and inversion bookkeeping.
type Permutation struct {
	ctx  cfctx.Context
	arr  []uint64
	tran []bitops.Transposition
}

// NewPermutation draws a uniformly random Permutation over ctx's N using
// a cryptographically secure source.
func NewPermutation(ctx cfctx.Context) (Permutation, error) {
	return NewPermutationFromReader(ctx, randsrc.Secure())
}

// NewPermutationFromReader draws a Permutation over ctx's N, reading
// randomness from rnd. Passing a deterministic reader (see
// internal/randsrc.Deterministic) makes the draw reproducible, which the
// fixed-seed testable-property scenarios rely on.
func NewPermutationFromReader(ctx cfctx.Context, rnd io.Reader) (Permutation, error) {
	n := ctx.N()

	arr := make([]uint64, n)
	for i := range arr {
		arr[i] = uint64(i)
	}

	tran := make([]bitops.Transposition, 0, n)

	// Matches the original Fisher-Yates draw exactly, including its loop
	// bound of length-2 (exclusive): the final two positions are never
	// chosen as the pivot, only ever as a swap target.
	if n >= 2 {
		for pos := uint64(0); pos < n-2; pos++ {
			offset, err := randsrc.Uint64n(rnd, n-pos)
			if err != nil {
				return Permutation{}, fmt.Errorf("permutation: drawing swap target: %w", err)
			}
			newpos := pos + offset

			arr[pos], arr[newpos] = arr[newpos], arr[pos]

			if newpos != pos {
				tran = append(tran, bitops.Transposition{
					ChA: pos / 64, BitA: 63 - (pos % 64),
					ChB: newpos / 64, BitB: 63 - (newpos % 64),
				})
			}
		}
	}

	return Permutation{ctx: ctx, arr: arr, tran: tran}, nil
}

// identityPermutation returns the identity permutation over ctx's N, with
// no recorded transpositions.
func identityPermutation(ctx cfctx.Context) Permutation {
	arr := make([]uint64, ctx.N())
	for i := range arr {
		arr[i] = uint64(i)
	}
	return Permutation{ctx: ctx, arr: arr}
}

// Context returns the Context this Permutation was drawn over.
func (p Permutation) Context() cfctx.Context { return p.ctx }

// Len returns the number of positions the Permutation acts on (N).
func (p Permutation) Len() int { return len(p.arr) }

// At returns the image of i under the permutation.
func (p Permutation) At(i uint64) uint64 { return p.arr[i] }

// Transpositions returns the ordered list of recorded bit-position swaps.
// The returned slice must not be mutated by the caller.
func (p Permutation) Transpositions() []bitops.Transposition { return p.tran }

// Inverse returns the inverse permutation: its array is found by linear
// scan (matching the original's getInverse), and its transposition list
// is this one reversed, since undoing a sequence of swaps means replaying
// them back to front.
func (p Permutation) Inverse() Permutation {
	inv := make([]uint64, len(p.arr))
	for i := range inv {
		for j, v := range p.arr {
			if v == uint64(i) {
				inv[i] = uint64(j)
				break
			}
		}
	}

	revTran := make([]bitops.Transposition, len(p.tran))
	for i, t := range p.tran {
		revTran[len(p.tran)-1-i] = t
	}

	return Permutation{ctx: p.ctx, arr: inv, tran: revTran}
}

// Compose returns this ∘ other: the permutation obtained by first
// applying other, then this. Its array is this.At(other.At(i)) for each
// i; its transposition list is this's list followed by other's list,
// matching the original implementation's operator+ bit for bit (the
// original's prose description of the concatenation order is reversed
// from what its code actually does — this follows the code).
func (p Permutation) Compose(other Permutation) (Permutation, error) {
	if len(p.arr) != len(other.arr) {
		return Permutation{}, fmt.Errorf("permutation: compose length mismatch (%d vs %d): %w",
			len(p.arr), len(other.arr), certerr.ErrInvalidArgument)
	}

	arr := make([]uint64, len(p.arr))
	for i := range arr {
		arr[i] = p.arr[other.arr[i]]
	}

	tran := make([]bitops.Transposition, 0, len(p.tran)+len(other.tran))
	tran = append(tran, p.tran...)
	tran = append(tran, other.tran...)

	return Permutation{ctx: p.ctx, arr: arr, tran: tran}, nil
}

// ApplyToChunk replays the transposition list against chunk in place.
func (p Permutation) ApplyToChunk(chunk []uint64) {
	bitops.ApplyTranspositions(chunk, p.tran)
}

// ApplyToChunks replays the transposition list against every chunk of l
// words within payload, in place.
func (p Permutation) ApplyToChunks(payload []uint64, l uint64) {
	for off := uint64(0); off+l <= uint64(len(payload)); off += l {
		bitops.ApplyTranspositions(payload[off:off+l], p.tran)
	}
}
