package certfhe

import (
	"fmt"

	"github.com/certfhe/certfhe/certerr"
	"github.com/certfhe/certfhe/cfctx"
	"github.com/certfhe/certfhe/config"
)

// cadd is a deferred-addition DAG node: its value is the XOR of its
// children's values, and deflenCount is their sum. An empty child list
// represents the ciphertext 0.
type cadd struct {
	cop
}

func newCADDFromChildren(ctx cfctx.Context, children []node) *cadd {
	n := &cadd{cop: cop{refCounted: newRefCounted(), ctx: ctx, children: children}}
	n.recomputeDeflenSum()
	return n
}

// newCADD builds a new CADD node with a and b as children (each
// contributing the single reference already held by the caller — callers
// that want to keep their own handle to a or b must retain first), runs
// upstream merging, then shortening, and returns the normalized result.
func newCADD(ctx cfctx.Context, a, b node) (node, error) {
	if !a.context().Equal(ctx) || !b.context().Equal(ctx) {
		return nil, fmt.Errorf("cadd: child context mismatch: %w", certerr.ErrInvalidArgument)
	}

	n := newCADDFromChildren(ctx, []node{a, b})
	n.upstreamMerging()

	if len(n.children) == 0 {
		n.release()
		return zeroCCC(ctx), nil
	}

	return shorten(n), nil
}

func (c *cadd) kind() nodeKind { return kindCADD }

func (c *cadd) retain() node {
	c.incr()
	return c
}

func (c *cadd) release() {
	if c.decr() {
		c.releaseChildren()
	}
}

func (c *cadd) clone() node {
	return newCADDFromChildren(c.ctx, c.cloneChildren())
}

func (c *cadd) deepClone() node {
	return newCADDFromChildren(c.ctx, c.deepCloneChildren())
}

func (c *cadd) decrypt(mask []uint64, memo map[node]bool) bool {
	if v, ok := memo[c]; ok && CurrentConfig().DecryptionCache {
		return v
	}

	var acc bool
	for _, ch := range c.children {
		acc = acc != ch.decrypt(mask, memo)
	}

	memo[c] = acc
	return acc
}

func (c *cadd) permute(perm Permutation, forceDeepCopy bool) (node, error) {
	if !c.ctx.Equal(perm.Context()) {
		return nil, fmt.Errorf("cadd: permute: context mismatch: %w", certerr.ErrInvalidArgument)
	}

	target := c
	if c.refs() != 1 || forceDeepCopy {
		target = &cadd{cop: cop{refCounted: newRefCounted(), ctx: c.ctx, deflen: c.deflen}}
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

// removeAt removes the element at index i from s, preserving order.
func removeAt(s []node, i int) []node {
	return append(s[:i], s[i+1:]...)
}

// upstreamMerging iterates children pairwise with two cursors, fusing
// the pair whenever the fusion table allows it, and recomputes deflen
// once no further pair fuses.
func (c *cadd) upstreamMerging() {
	cfg := CurrentConfig()
	if cfg.NoMerging {
		c.recomputeDeflenSum()
		return
	}

	if cfg.RemoveDuplicatesOnAdd {
		c.cancelDuplicates()
	}

	i := 0
	for i < len(c.children) {
		fused := false

		for j := i + 1; j < len(c.children); j++ {
			merged, ok := fuseAdd(c.children[i], c.children[j], cfg)
			if !ok {
				continue
			}

			c.children = removeAt(c.children, j)
			if mc, isZero := merged.(*ccc); isZero && mc.deflen == 0 {
				merged.release()
				c.children = removeAt(c.children, i)
			} else {
				c.children[i] = merged
			}

			fused = true
			break
		}

		if !fused {
			i++
		}
	}

	c.recomputeDeflenSum()
}

// cancelDuplicates removes children whose pointer identity repeats an
// even number of times (a⊕a=0) and thins an odd-multiplicity duplicate
// down to a single copy.
func (c *cadd) cancelDuplicates() {
	counts := make(map[node]int, len(c.children))
	for _, ch := range c.children {
		counts[ch]++
	}

	kept := c.children[:0]
	handled := make(map[node]bool, len(c.children))

	for _, ch := range c.children {
		if handled[ch] {
			continue
		}
		handled[ch] = true

		n := counts[ch]
		if n%2 == 0 {
			for i := 0; i < n; i++ {
				ch.release()
			}
			continue
		}

		for i := 0; i < n-1; i++ {
			ch.release()
		}
		kept = append(kept, ch)
	}

	c.children = kept
}

// fuseAdd attempts to fuse a and b under XOR per the CADD fusion table.
// On success it consumes both input references and returns a new node
// carrying exactly one reference. On failure it returns (nil, false) and
// leaves a and b untouched.
func fuseAdd(a, b node, cfg config.Config) (node, bool) {
	if ac, ok := a.(*ccc); ok {
		if bc, ok := b.(*ccc); ok {
			if ac.deflen+bc.deflen > cfg.MaxCCCSize {
				return nil, false
			}
			merged, err := cccAdd(ac, bc)
			if err != nil {
				return nil, false
			}
			a.release()
			b.release()
			return merged, true
		}
	}

	if ac, ok := a.(*cadd); ok {
		return mergeCADDTerm(ac, b, cfg)
	}
	if bc, ok := b.(*cadd); ok {
		return mergeCADDTerm(bc, a, cfg)
	}

	return nil, false
}

// mergeCADDTerm fuses a (a *cadd) with x, where x may itself be a *cadd
// (union the two child sets) or a CCC/CMUL term to append as a new
// single child. Consumes both a and x on success.
func mergeCADDTerm(a *cadd, x node, cfg config.Config) (node, bool) {
	if xc, ok := x.(*cadd); ok {
		if a.deflen+xc.deflen > cfg.MaxCADDMergeSize {
			return nil, false
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

		merged := newCADDFromChildren(a.ctx, children)
		if cfg.RemoveDuplicatesOnAdd {
			merged.cancelDuplicates()
		}
		merged.upstreamMerging()

		if len(merged.children) == 0 {
			merged.release()
			return zeroCCC(a.ctx), true
		}
		if cfg.ShortenOnRecursiveCADDMerging {
			return shorten(merged), true
		}
		return merged, true
	}

	ka := a.deflenCount()
	kx := x.deflenCount()
	if ka+kx > cfg.MaxCADDMergeSize {
		return nil, false
	}

	var merged *cadd
	if a.refs() == 1 {
		a.children = append(a.children, x)
		merged = a
	} else {
		children := append(a.cloneChildren(), x)
		merged = newCADDFromChildren(a.ctx, children)
		a.release()
	}

	merged.upstreamMerging()
	if cfg.ShortenOnRecursiveCADDMerging {
		return shorten(merged), true
	}
	return merged, true
}
