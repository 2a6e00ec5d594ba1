package certfhe

import (
	"sync/atomic"

	"github.com/certfhe/certfhe/cfctx"
)

// node is the tagged-sum interface implemented by every DAG node kind
// (*ccc, *cadd, *cmul), replacing the original's polymorphic CNODE base
// class and dynamic_cast-based dispatch with an explicit Go interface
// matched on kind() where the algorithms need to branch by concrete type.
type node interface {
	context() cfctx.Context
	deflenCount() uint64
	kind() nodeKind

	// retain increments the reference count and returns the receiver,
	// for the common "store this node as a new parent/handle" pattern.
	retain() node

	// release decrements the reference count. Once it would drop to
	// zero, release recursively releases any children before the node
	// becomes eligible for garbage collection; Go's allocator reclaims
	// the memory itself, so release only needs to drop the node's
	// strong references to its children, the equivalent of the
	// original's try_delete.
	release()

	// refs reports the current reference count. A count of 1 means the
	// node is uniquely owned and may be mutated in place
	// (copy-on-write).
	refs() int64

	// clone returns a shallow, reference-bumping copy of the receiver:
	// for ccc this increments the receiver's count and returns the
	// receiver itself, sharing the payload; for cadd/cmul this returns a
	// new node whose child list is copied with each child's ref count
	// incremented. Matches the original's make_copy.
	clone() node

	// deepClone returns a fully independent copy of the subgraph rooted
	// at the receiver, breaking all sharing. Matches make_deep_copy.
	deepClone() node

	// decrypt evaluates the node's plaintext bit against mask, memoizing
	// per node identity within one call via memo.
	decrypt(mask []uint64, memo map[node]bool) bool

	// permute applies perm to the receiver, either in place (if
	// uniquely owned and forceDeepCopy is false) or via a fresh copy,
	// and returns the resulting node.
	permute(perm Permutation, forceDeepCopy bool) (node, error)
}

// nodeKind tags the three concrete node types for explicit dispatch in
// the fusion tables, replacing the original's dynamic_cast chain.
type nodeKind int

const (
	kindCCC nodeKind = iota
	kindCADD
	kindCMUL
)

// refCounted is embedded by every concrete node type and implements the
// shared reference-counting bookkeeping (retain/release/refs), the Go
// equivalent of the original CNODE base's downstream_reference_count.
type refCounted struct {
	count int64
}

func newRefCounted() refCounted {
	return refCounted{count: 1}
}

func (r *refCounted) refs() int64 {
	return atomic.LoadInt64(&r.count)
}

func (r *refCounted) incr() int64 {
	return atomic.AddInt64(&r.count, 1)
}

// decr decrements the count and reports whether it reached zero.
func (r *refCounted) decr() bool {
	return atomic.AddInt64(&r.count, -1) == 0
}
