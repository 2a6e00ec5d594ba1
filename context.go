package certfhe

import "github.com/certfhe/certfhe/cfctx"

// Context is the immutable parameter set for one instance of the scheme.
// It is an alias for cfctx.Context so callers of this package never need
// to import cfctx directly.
type Context = cfctx.Context

// NewContext constructs a Context from the dimension parameter n and the
// secret position count d, requiring n >= 2*d.
func NewContext(n, d uint64) (Context, error) {
	return cfctx.New(n, d)
}
