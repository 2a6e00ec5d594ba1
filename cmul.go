package certfhe

import (
	"fmt"

	"github.com/certfhe/certfhe/certerr"
	"github.com/certfhe/certfhe/cfctx"
	"github.com/certfhe/certfhe/config"
)

// cmul is a deferred-multiplication DAG node: its value is the AND of
// its children's values, and deflenCount is their product. An empty
// child list represents the ciphertext 0 (not the multiplicative
// identity) — the moment any child's deflenCount drops to 0 the whole
// node collapses to 0 and clears its remaining children, matching the
// absorbing-element rule.
type cmul struct {
	cop
}

func newCMULFromChildren(ctx cfctx.Context, children []node) *cmul {
	n := &cmul{cop: cop{refCounted: newRefCounted(), ctx: ctx, children: children}}
	n.applyAbsorption()
	return n
}

// applyAbsorption clears n's child list and zeroes deflenCount the
// moment any child is itself 0, then otherwise recomputes the product.
func (c *cmul) applyAbsorption() {
	for _, ch := range c.children {
		if ch.deflenCount() == 0 {
			for _, dead := range c.children {
				dead.release()
			}
			c.children = nil
			c.deflen = 0
			return
		}
	}
	c.recomputeDeflenProduct()
}

// newCMUL builds a new CMUL node with a and b as children (consuming the
// single reference each caller already holds on them), runs upstream
// merging/distribution, then shortening, and returns the normalized
// result.
func newCMUL(ctx cfctx.Context, a, b node) (node, error) {
	if !a.context().Equal(ctx) || !b.context().Equal(ctx) {
		return nil, fmt.Errorf("cmul: child context mismatch: %w", certerr.ErrInvalidArgument)
	}

	if a.deflenCount() == 0 || b.deflenCount() == 0 {
		a.release()
		b.release()
		return zeroCCC(ctx), nil
	}

	cfg := CurrentConfig()
	if cfg.NoMerging {
		return shorten(newCMULFromChildren(ctx, []node{a, b})), nil
	}

	result, err := fuseMul(a, b, cfg)
	if err != nil {
		return nil, err
	}
	if result == nil {
		n := newCMULFromChildren(ctx, []node{a, b})
		return shorten(n), nil
	}

	return shorten(result), nil
}

func (c *cmul) kind() nodeKind { return kindCMUL }

func (c *cmul) retain() node {
	c.incr()
	return c
}

func (c *cmul) release() {
	if c.decr() {
		c.releaseChildren()
	}
}

func (c *cmul) clone() node {
	return newCMULFromChildren(c.ctx, c.cloneChildren())
}

func (c *cmul) deepClone() node {
	return newCMULFromChildren(c.ctx, c.deepCloneChildren())
}

func (c *cmul) decrypt(mask []uint64, memo map[node]bool) bool {
	if len(c.children) == 0 {
		return false
	}

	if v, ok := memo[c]; ok && CurrentConfig().DecryptionCache {
		return v
	}

	acc := true
	for _, ch := range c.children {
		acc = acc && ch.decrypt(mask, memo)
	}

	memo[c] = acc
	return acc
}

func (c *cmul) permute(perm Permutation, forceDeepCopy bool) (node, error) {
	if !c.ctx.Equal(perm.Context()) {
		return nil, fmt.Errorf("cmul: permute: context mismatch: %w", certerr.ErrInvalidArgument)
	}

	target := c
	if c.refs() != 1 || forceDeepCopy {
		target = &cmul{cop: cop{refCounted: newRefCounted(), ctx: c.ctx, deflen: c.deflen}}
		target.children = make([]node, len(c.children))
	} else {
		c.incr()
	}

	for i, ch := range c.children {
		permuted, err := ch.permute(perm, forceDeepCopy || target != c)
		if err != nil {
			return nil, err
		}
		if target == c {
			c.children[i] = permuted
			ch.release()
		} else {
			target.children[i] = permuted
		}
	}

	return target, nil
}

// fuseMul attempts to fuse a and b under AND per the CMUL fusion table.
// It returns (nil, nil) when no fusion rule applies and the caller
// should fall back to constructing a plain two-child CMUL; it returns a
// non-nil error only for genuine failures (context mismatch surfaced
// from distribution).
func fuseMul(a, b node, cfg config.Config) (node, error) {
	ac, aIsCCC := a.(*ccc)
	bc, bIsCCC := b.(*ccc)

	if aIsCCC && bIsCCC {
		product := ac.deflen * bc.deflen
		force := cfg.AlwaysDefaultMultiplication && (ac.deflen == 1 || bc.deflen == 1)
		if product <= cfg.MaxCCCSize || force {
			merged, err := cccMultiply(ac, bc)
			if err != nil {
				return nil, nil
			}
			a.release()
			b.release()
			return merged, nil
		}
		return nil, nil
	}

	if aAdd, ok := a.(*cadd); ok {
		return distribute(aAdd, b, cfg)
	}
	if bAdd, ok := b.(*cadd); ok {
		return distribute(bAdd, a, cfg)
	}

	if aMul, ok := a.(*cmul); ok {
		return mergeCMULTerm(aMul, b, cfg)
	}
	if bMul, ok := b.(*cmul); ok {
		return mergeCMULTerm(bMul, a, cfg)
	}

	return nil, nil
}

// mergeCMULTerm fuses a (a *cmul) with x, where x may itself be a *cmul
// (union the two child sets) or a CCC term to append as a new single
// child. Consumes both a and x when it performs a fusion.
func mergeCMULTerm(a *cmul, x node, cfg config.Config) (node, error) {
	if xc, ok := x.(*cmul); ok {
		product := a.deflen * xc.deflen
		if product > cfg.MaxCMULMergeSize {
			return nil, nil
		}

		children := make([]node, 0, len(a.children)+len(xc.children))
		for _, ch := range a.children {
			children = append(children, ch.retain())
		}
		for _, ch := range xc.children {
			children = append(children, ch.retain())
		}

		a.release()
		x.release()

		if cfg.RemoveDuplicatesOnMul {
			children = dedupeIdentity(children)
		}

		merged := newCMULFromChildren(a.ctx, children)
		if cfg.ShortenOnRecursiveCMULMerging {
			return shorten(merged), nil
		}
		return merged, nil
	}

	if _, ok := x.(*ccc); !ok {
		return nil, nil
	}

	product := a.deflen * x.deflenCount()
	if product > cfg.MaxCMULMergeSize {
		return nil, nil
	}

	var merged *cmul
	if a.refs() == 1 {
		a.children = append(a.children, x)
		a.applyAbsorption()
		merged = a
	} else {
		children := append(a.cloneChildren(), x)
		merged = newCMULFromChildren(a.ctx, children)
		a.release()
	}

	if cfg.ShortenOnRecursiveCMULMerging {
		return shorten(merged), nil
	}
	return merged, nil
}

// dedupeIdentity keeps exactly one copy of each distinct child pointer
// (a∧a=a), releasing the extra references.
func dedupeIdentity(children []node) []node {
	seen := make(map[node]bool, len(children))
	kept := children[:0]
	for _, ch := range children {
		if seen[ch] {
			ch.release()
			continue
		}
		seen[ch] = true
		kept = append(kept, ch)
	}
	return kept
}

// distribute rewrites (Σ sum_i) ∧ term as Σ (sum_i ∧ term), a fresh CADD
// of per-term CMUL nodes. Consumes sum and term.
func distribute(sum *cadd, term node, cfg config.Config) (node, error) {
	if len(sum.children) == 0 {
		sum.release()
		term.release()
		return zeroCCC(sum.ctx), nil
	}

	terms := make([]node, 0, len(sum.children))
	for _, s := range sum.children {
		product, err := newCMUL(sum.ctx, s.retain(), term.retain())
		if err != nil {
			for _, t := range terms {
				t.release()
			}
			term.release()
			sum.release()
			return nil, err
		}
		terms = append(terms, product)
	}

	sum.release()
	term.release()

	result := newCADDFromChildren(sum.ctx, terms)
	result.upstreamMerging()
	if cfg.ShortenOnRecursiveCMULMerging {
		return shorten(result), nil
	}
	return result, nil
}
