package certfhe

import "github.com/certfhe/certfhe/cfctx"

// cop is the shared base embedded by cadd and cmul: reference counting,
// context, logical size, and an owned slice of child nodes standing in
// for the original's dummy-head intrusive linked list. A plain slice is
// the Go-idiomatic replacement; the original's sentinel head existed to
// keep C++ pointer-stable insertion cheap, which a slice doesn't need.
//
// Methods here never return "self" as a node, since the receiver address
// of the embedded cop is not the address of the outer cadd/cmul value —
// retain, release, clone, deepClone, and kind are defined on the
// concrete types instead.
type cop struct {
	refCounted
	ctx      cfctx.Context
	deflen   uint64
	children []node
}

func (c *cop) context() cfctx.Context { return c.ctx }
func (c *cop) deflenCount() uint64    { return c.deflen }

// releaseChildren drops one reference from every child, recursively
// tearing down any child whose count reaches zero. Matches try_delete's
// recursive behavior when a COP node is itself deleted.
func (c *cop) releaseChildren() {
	for _, ch := range c.children {
		ch.release()
	}
}

// cloneChildren returns a copy of c's child slice with every child's
// reference count incremented, for use by clone (make_copy).
func (c *cop) cloneChildren() []node {
	out := make([]node, len(c.children))
	for i, ch := range c.children {
		out[i] = ch.retain()
	}
	return out
}

// deepCloneChildren returns a fully independent copy of every child.
func (c *cop) deepCloneChildren() []node {
	out := make([]node, len(c.children))
	for i, ch := range c.children {
		out[i] = ch.deepClone()
	}
	return out
}

// recomputeDeflenSum sets c.deflen to the sum of its children's counts,
// the CADD invariant (and the starting point before CMUL overrides it to
// a product).
func (c *cop) recomputeDeflenSum() {
	var sum uint64
	for _, ch := range c.children {
		sum += ch.deflenCount()
	}
	c.deflen = sum
}

// recomputeDeflenProduct sets c.deflen to the product of its children's
// counts, the CMUL invariant.
func (c *cop) recomputeDeflenProduct() {
	if len(c.children) == 0 {
		c.deflen = 0
		return
	}
	product := uint64(1)
	for _, ch := range c.children {
		product *= ch.deflenCount()
	}
	c.deflen = product
}

// shortenOnce collapses n if it is a CADD or CMUL with exactly one
// child, transferring the single reference n held on that child to the
// caller and releasing n itself. Any other node is returned unchanged.
func shortenOnce(n node) node {
	switch t := n.(type) {
	case *cadd:
		if len(t.children) == 1 {
			child := t.children[0]
			t.children = nil
			t.release()
			return child
		}
	case *cmul:
		if len(t.children) == 1 {
			child := t.children[0]
			t.children = nil
			t.release()
			return child
		}
	}
	return n
}

// shorten repeatedly applies shortenOnce until it reaches a fixed point,
// collapsing chains of single-child CADD/CMUL nodes that upstream
// merging left behind. Matches upstream_shortening.
func shorten(n node) node {
	for {
		s := shortenOnce(n)
		if s == n {
			return s
		}
		n = s
	}
}
