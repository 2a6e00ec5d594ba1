// Package cfctx holds the immutable scheme parameters shared by every
// node in one ciphertext DAG. It is named cfctx rather than context to
// avoid shadowing the standard library package.
package cfctx

import (
	"fmt"

	"github.com/certfhe/certfhe/certerr"
)

// Context is the immutable parameter set for one instance of the scheme:
// the default chunk length N in bits, the number of secret positions D,
// the derived S = N/(2D), and the default chunk length in 64-bit words
// L = ceil(N/64). Equality is structural, so two Contexts built from the
// same (N, D) compare equal and are interchangeable.
type Context struct {
	n uint64
	d uint64
}

// New constructs a Context from the dimension parameter n and the secret
// position count d. It requires n >= 2*d so that S = n/(2d) is at least
// 1; n need not be a multiple of 64, the default chunk length in words is
// padded up to the next whole word.
func New(n, d uint64) (Context, error) {
	if d == 0 {
		return Context{}, fmt.Errorf("cfctx: d must be positive: %w", certerr.ErrInvalidArgument)
	}
	if n < 2*d {
		return Context{}, fmt.Errorf("cfctx: n (%d) must be at least 2*d (%d): %w", n, 2*d, certerr.ErrInvalidArgument)
	}

	return Context{n: n, d: d}, nil
}

// N returns the default chunk length in bits.
func (c Context) N() uint64 { return c.n }

// D returns the number of secret positions.
func (c Context) D() uint64 { return c.d }

// S returns N/(2D), the derived scheme parameter.
func (c Context) S() uint64 { return c.n / (2 * c.d) }

// DefaultLen returns L, the default chunk length in 64-bit words.
func (c Context) DefaultLen() uint64 {
	return (c.n + 63) / 64
}

// Equal reports whether c and other describe the same scheme parameters.
func (c Context) Equal(other Context) bool {
	return c.n == other.n && c.d == other.d
}

func (c Context) String() string {
	return fmt.Sprintf("Context(N=%d, D=%d, S=%d, L=%d)", c.n, c.d, c.S(), c.DefaultLen())
}
