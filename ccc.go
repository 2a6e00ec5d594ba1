package certfhe

import (
	"fmt"

	"github.com/certfhe/certfhe/certerr"
	"github.com/certfhe/certfhe/cfctx"
	"github.com/certfhe/certfhe/internal/bitops"
)

// ccc is a contiguous ciphertext chunk: K default chunks of L words each,
// concatenated into one owned word array. It is the only node kind that
// holds a materialized payload; CADD and CMUL stand in for a deferred
// operation over their children.
type ccc struct {
	refCounted
	ctx     cfctx.Context
	deflen  uint64 // K
	payload []uint64

	// onDevice marks the payload as resident in device memory rather
	// than host RAM. No code path sets it true today; it exists so a
	// future GPU backend (see internal/gpu) has a field to flip, per the
	// original scheme's on_GPU flag.
	onDevice bool
}

// newCCC constructs a ccc node with deflen chunks backed by payload.
// payload's length must be exactly deflen*ctx.DefaultLen(). Fails with
// certerr.ErrCapacityExceeded if deflen exceeds the current
// configuration's MaxCCCSize.
func newCCC(ctx cfctx.Context, deflen uint64, payload []uint64) (*ccc, error) {
	if deflen > CurrentConfig().MaxCCCSize {
		return nil, fmt.Errorf("ccc: deflen %d exceeds max_ccc_size %d: %w",
			deflen, CurrentConfig().MaxCCCSize, certerr.ErrCapacityExceeded)
	}

	return &ccc{
		refCounted: newRefCounted(),
		ctx:        ctx,
		deflen:     deflen,
		payload:    payload,
	}, nil
}

// zeroCCC returns the empty ciphertext 0: a ccc with deflen 0 and a
// zero-length payload.
func zeroCCC(ctx cfctx.Context) *ccc {
	return &ccc{refCounted: newRefCounted(), ctx: ctx, deflen: 0, payload: nil}
}

func (c *ccc) context() cfctx.Context { return c.ctx }
func (c *ccc) deflenCount() uint64    { return c.deflen }
func (c *ccc) kind() nodeKind         { return kindCCC }

func (c *ccc) retain() node {
	c.incr()
	return c
}

func (c *ccc) release() {
	c.decr()
}

func (c *ccc) clone() node {
	c.incr()
	return c
}

func (c *ccc) deepClone() node {
	cp := make([]uint64, len(c.payload))
	copy(cp, c.payload)
	return &ccc{refCounted: newRefCounted(), ctx: c.ctx, deflen: c.deflen, payload: cp}
}

// cccAdd concatenates two ccc payloads: the fast path for ciphertext
// addition when both operands are already materialized and the combined
// size stays under the configured cap.
func cccAdd(a, b *ccc) (*ccc, error) {
	if !a.ctx.Equal(b.ctx) {
		return nil, fmt.Errorf("ccc: add: context mismatch: %w", certerr.ErrInvalidArgument)
	}

	deflen := a.deflen + b.deflen
	if deflen > CurrentConfig().MaxCCCSize {
		return nil, certerr.ErrCapacityExceeded
	}

	l := a.ctx.DefaultLen()
	result := make([]uint64, deflen*l)
	aLen := uint64(len(a.payload))

	total := int(deflen * l)
	parallelRange(total, CurrentConfig().AddMTThreshold*l, func(start, end int) {
		for i := start; i < end; i++ {
			if uint64(i) < aLen {
				result[i] = a.payload[i]
			} else {
				result[i] = b.payload[uint64(i)-aLen]
			}
		}
	})

	return newCCC(a.ctx, deflen, result)
}

// cccMultiply computes the outer AND: for each pair (i, j) of operand
// chunks, output chunk i*K2+j is the word-wise AND of a's chunk i and
// b's chunk j.
func cccMultiply(a, b *ccc) (*ccc, error) {
	if !a.ctx.Equal(b.ctx) {
		return nil, fmt.Errorf("ccc: multiply: context mismatch: %w", certerr.ErrInvalidArgument)
	}

	deflen := a.deflen * b.deflen
	if deflen > CurrentConfig().MaxCCCSize {
		return nil, certerr.ErrCapacityExceeded
	}

	l := a.ctx.DefaultLen()
	result := make([]uint64, deflen*l)
	k2 := b.deflen

	totalChunks := int(deflen)
	parallelRange(totalChunks, CurrentConfig().MultiplyMTThreshold, func(start, end int) {
		for outIdx := uint64(start); outIdx < uint64(end); outIdx++ {
			i := outIdx / k2
			j := outIdx % k2
			aChunk := a.payload[i*l : (i+1)*l]
			bChunk := b.payload[j*l : (j+1)*l]
			bitops.AndInto(result[outIdx*l:(outIdx+1)*l], aChunk, bChunk)
		}
	})

	return newCCC(a.ctx, deflen, result)
}

// decrypt evaluates the XOR-accumulated, per-chunk masked-AND test.
func (c *ccc) decrypt(mask []uint64, memo map[node]bool) bool {
	if v, ok := memo[c]; ok && CurrentConfig().DecryptionCache {
		return v
	}

	l := c.ctx.DefaultLen()
	var acc bool
	for i := uint64(0); i < c.deflen; i++ {
		chunk := c.payload[i*l : (i+1)*l]
		acc = acc != bitops.DecryptChunk(chunk, mask)
	}

	memo[c] = acc
	return acc
}

// permute applies perm to c's payload, in place if c is uniquely owned
// and the caller did not force a deep copy, or on a fresh copy otherwise.
func (c *ccc) permute(perm Permutation, forceDeepCopy bool) (node, error) {
	if !c.ctx.Equal(perm.Context()) {
		return nil, fmt.Errorf("ccc: permute: context mismatch: %w", certerr.ErrInvalidArgument)
	}

	l := c.ctx.DefaultLen()
	threshold := CurrentConfig().PermuteMTThreshold

	if c.refs() == 1 && !forceDeepCopy {
		parallelRange(int(c.deflen), threshold, func(start, end int) {
			for i := start; i < end; i++ {
				perm.ApplyToChunk(c.payload[uint64(i)*l : (uint64(i)+1)*l])
			}
		})
		c.incr()
		return c, nil
	}

	cp := make([]uint64, len(c.payload))
	copy(cp, c.payload)
	parallelRange(int(c.deflen), threshold, func(start, end int) {
		for i := start; i < end; i++ {
			perm.ApplyToChunk(cp[uint64(i)*l : (uint64(i)+1)*l])
		}
	})

	return &ccc{refCounted: newRefCounted(), ctx: c.ctx, deflen: c.deflen, payload: cp}, nil
}
