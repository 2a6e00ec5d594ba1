package certfhe

import (
	"fmt"
	"io"

	"github.com/certfhe/certfhe/certerr"
	"github.com/certfhe/certfhe/cfctx"
	"github.com/certfhe/certfhe/internal/randsrc"
)

// SecretKey holds D distinct secret positions in {0, ..., N-1} plus the
// L-word bitmask with bits set exactly at those positions. It derives
// ciphertexts from plaintext bits and decrypts them back.
type SecretKey struct {
	ctx  cfctx.Context
	s    []uint64 // secret positions, not necessarily sorted
	mask []uint64 // L-word bitmask, recomputed whenever s changes
}

// NewSecretKey draws a fresh SecretKey over ctx using a cryptographically
// secure randomness source.
func NewSecretKey(ctx cfctx.Context) (*SecretKey, error) {
	return NewSecretKeyFromReader(ctx, randsrc.Secure())
}

// NewSecretKeyFromReader draws a fresh SecretKey over ctx, reading
// randomness from rnd. A deterministic reader makes key generation
// reproducible for fixed-seed test scenarios.
func NewSecretKeyFromReader(ctx cfctx.Context, rnd io.Reader) (*SecretKey, error) {
	d := ctx.D()
	n := ctx.N()

	s := make([]uint64, 0, d)
	seen := make(map[uint64]bool, d)

	for uint64(len(s)) < d {
		pos, err := randsrc.Uint64n(rnd, n)
		if err != nil {
			return nil, fmt.Errorf("secretkey: drawing secret position: %w", err)
		}
		if seen[pos] {
			continue
		}
		seen[pos] = true
		s = append(s, pos)
	}

	sk := &SecretKey{ctx: ctx, s: s}
	sk.setMaskKey()
	return sk, nil
}

// setMaskKey rebuilds the L-word bitmask from the current secret
// positions. Called whenever s changes.
func (sk *SecretKey) setMaskKey() {
	l := sk.ctx.DefaultLen()
	mask := make([]uint64, l)
	for _, pos := range sk.s {
		w := pos / 64
		b := 63 - (pos % 64)
		mask[w] |= uint64(1) << b
	}
	sk.mask = mask
}

// Context returns the Context this key was drawn over.
func (sk *SecretKey) Context() cfctx.Context { return sk.ctx }

// Positions returns the secret positions. The returned slice must not be
// mutated by the caller.
func (sk *SecretKey) Positions() []uint64 { return sk.s }

// Mask returns the L-word secret bitmask. The returned slice must not be
// mutated by the caller.
func (sk *SecretKey) Mask() []uint64 { return sk.mask }

func (sk *SecretKey) isSecret(pos uint64) bool {
	for _, s := range sk.s {
		if s == pos {
			return true
		}
	}
	return false
}

// encryptRawBit produces one default chunk of N bits (one byte per bit,
// value 0 or 1) encrypting bit using rnd. This reproduces the original
// scheme's asymmetric zero-bit construction exactly: for bit 1, every
// secret position is forced to 1 and every other position is uniform
// random; for bit 0, one secret position p is chosen at random, every
// other position (secret or not) is uniform random, and p is forced to 0
// if the AND of the other secret positions' bits came out 1, or left
// random otherwise. This asymmetry must be preserved bit-for-bit to stay
// compatible with existing ciphertexts.
func (sk *SecretKey) encryptRawBit(rnd io.Reader, bit byte) ([]byte, error) {
	n := sk.ctx.N()
	d := sk.ctx.D()

	res := make([]byte, n)

	if bit == 1 {
		for i := uint64(0); i < n; i++ {
			if sk.isSecret(i) {
				res[i] = 1
				continue
			}
			b, err := randsrc.Bit(rnd)
			if err != nil {
				return nil, err
			}
			res[i] = b
		}
		return res, nil
	}

	sIdx, err := randsrc.Uint64n(rnd, d)
	if err != nil {
		return nil, err
	}
	pivot := sk.s[sIdx]

	var v byte
	vUnset := true

	for i := uint64(0); i < n; i++ {
		if i == pivot {
			continue
		}

		b, err := randsrc.Bit(rnd)
		if err != nil {
			return nil, err
		}
		res[i] = b

		if sk.isSecret(i) {
			if vUnset {
				v = b
				vUnset = false
			} else {
				v &= b
			}
		}
	}

	if v == 1 {
		res[pivot] = 0
	} else {
		b, err := randsrc.Bit(rnd)
		if err != nil {
			return nil, err
		}
		res[pivot] = b
	}

	return res, nil
}

// packChunk packs n raw 0/1 bytes into L big-endian words: bit k lives in
// word k/64, at position 63-(k%64).
func packChunk(raw []byte, l uint64) []uint64 {
	words := make([]uint64, l)
	for k, b := range raw {
		if b&1 == 0 {
			continue
		}
		w := uint64(k) / 64
		pos := 63 - (uint64(k) % 64)
		words[w] |= uint64(1) << pos
	}
	return words
}

// Encrypt produces a Ciphertext wrapping a single default chunk
// encrypting p, reading randomness from a secure source.
func (sk *SecretKey) Encrypt(p Plaintext) (*Ciphertext, error) {
	return sk.encryptFromReader(p, randsrc.Secure())
}

// encryptFromReader is Encrypt parameterized by its randomness source,
// used directly by tests that need reproducible ciphertexts.
func (sk *SecretKey) encryptFromReader(p Plaintext, rnd io.Reader) (*Ciphertext, error) {
	raw, err := sk.encryptRawBit(rnd, p.Bit())
	if err != nil {
		return nil, fmt.Errorf("secretkey: encrypt: %w", err)
	}

	words := packChunk(raw, sk.ctx.DefaultLen())
	node, err := newCCC(sk.ctx, 1, words)
	if err != nil {
		return nil, err
	}
	return newCiphertext(node), nil
}

// Decrypt walks c's DAG (memoized per call) and returns the decrypted
// plaintext bit.
func (sk *SecretKey) Decrypt(c *Ciphertext) (Plaintext, error) {
	if c == nil || c.node == nil {
		return Zero, fmt.Errorf("secretkey: decrypt: empty ciphertext: %w", certerr.ErrInvalidArgument)
	}
	if !c.node.context().Equal(sk.ctx) {
		return Zero, fmt.Errorf("secretkey: decrypt: context mismatch: %w", certerr.ErrInvalidArgument)
	}

	memo := make(map[node]bool)
	bit := c.node.decrypt(sk.mask, memo)
	return NewPlaintext(boolToByte(bit)), nil
}

func boolToByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// ApplyPermutation applies perm to a copy of sk's mask and returns a new
// SecretKey whose secret positions are recomputed from the permuted
// mask, leaving sk unmodified.
func (sk *SecretKey) ApplyPermutation(perm Permutation) *SecretKey {
	cp := &SecretKey{ctx: sk.ctx, s: append([]uint64(nil), sk.s...), mask: append([]uint64(nil), sk.mask...)}
	cp.applyPermutationInPlace(perm)
	return cp
}

// ApplyPermutationInPlace applies perm to sk's mask and recomputes its
// secret positions in place.
func (sk *SecretKey) ApplyPermutationInPlace(perm Permutation) {
	sk.applyPermutationInPlace(perm)
}

func (sk *SecretKey) applyPermutationInPlace(perm Permutation) {
	perm.ApplyToChunk(sk.mask)

	l := sk.ctx.DefaultLen()
	s := sk.s[:0]
	for w := uint64(0); w < l; w++ {
		word := sk.mask[w]
		for b := uint64(0); b < 64; b++ {
			if word&(uint64(1)<<(63-b)) != 0 {
				pos := w*64 + b
				if pos < sk.ctx.N() {
					s = append(s, pos)
				}
			}
		}
	}
	sk.s = s
}
