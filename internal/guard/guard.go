// Package guard implements a disjoint-set forest of mutexes used to
// serialize concurrent mutation of ciphertexts that may share DAG nodes.
//
// Two Ciphertext facades that were produced from one another by a
// reference-preserving operation (construction, a no-op Add/Multiply
// normalization) can point at the same underlying
// node. Mutating one in place while the other reads it is a race unless
// both go through the same lock. Union merges their guards into one
// set so that Lock always acquires the one mutex currently responsible
// for the whole shared region; Split gives a ciphertext its own guard
// back once a copy-on-write has actually happened and it no longer
// shares structure with its former set.
//
// This is a path-compressed, union-by-rank forest, the same shape as
// the original scheme's node-sharing guard, adapted to drop the C++
// implementation's manual node recycling: Go's allocator reclaims a
// detached Guard on its own, so Split only has to unlink pointers.
package guard

import "sync"

// setMu serializes structural changes (root lookup, union, split) across
// the whole forest. Only one goroutine may be rewiring parent/child
// pointers anywhere in the forest at a time; this mirrors the original
// scheme's single op_mutex rather than one mutex per set, since sets
// merge and split too often for finer-grained locking to pay for
// itself.
var setMu sync.Mutex

// Guard is one node in the disjoint-set forest. The zero value is not
// usable; construct with New.
type Guard struct {
	mu sync.Mutex

	// held is the root whose mu the most recent Lock on this guard
	// acquired, so Unlock releases that same mutex.
	held *Guard

	rank   int
	parent *Guard
	child  *Guard
	prev   *Guard
	next   *Guard
}

// New returns a guard that is the sole member of its own set.
func New() *Guard {
	return &Guard{}
}

// Lock locks the mutex that currently guards g's entire set. Because
// set membership can change between calls, Lock resolves the root each
// time rather than caching it. Resolution and acquisition happen under
// one setMu hold, so a concurrent Union cannot reparent the root in the
// window between "find the root" and "lock it" — if it could, two
// callers meant to serialize on the same mutex could end up locking
// different ones.
func (g *Guard) Lock() {
	setMu.Lock()
	root := g.getRoot()
	root.mu.Lock()
	g.held = root
	setMu.Unlock()
}

// Unlock unlocks the mutex that the matching Lock call on g acquired.
// It does not resolve the root again, so a Union made while the lock
// was held (which may have moved the set's root) does not change which
// mutex is released.
func (g *Guard) Unlock() {
	g.held.mu.Unlock()
}

// Same reports whether g and other currently belong to the same set,
// i.e. share a lock domain.
func Same(g, other *Guard) bool {
	setMu.Lock()
	defer setMu.Unlock()
	return g.getRoot() == other.getRoot()
}

// root resolves g's current root, taking setMu for the duration of the
// walk and any path compression it performs.
func (g *Guard) root() *Guard {
	setMu.Lock()
	defer setMu.Unlock()
	return g.getRoot()
}

// getRoot walks to the root of g's set with path compression. Callers
// must hold setMu.
func (g *Guard) getRoot() *Guard {
	if g.parent == nil {
		return g
	}

	root := g.parent.getRoot()
	if root != g.parent {
		// Path compression: unlink g from its immediate parent's
		// child list and reattach it directly under root.
		g.unlinkFromParent()
		g.parent = root
		root.attachChild(g)
	}

	return root
}

// Union merges g's set with other's set, so that future Lock calls on
// either resolve to the same mutex. It is a no-op if they already
// share a set.
func Union(g, other *Guard) {
	setMu.Lock()
	defer setMu.Unlock()

	fstRoot := g.getRoot()
	sndRoot := other.getRoot()
	if fstRoot == sndRoot {
		return
	}

	if fstRoot.rank < sndRoot.rank {
		fstRoot, sndRoot = sndRoot, fstRoot
	}

	sndRoot.unlinkFromParent()
	sndRoot.parent = fstRoot
	fstRoot.attachChild(sndRoot)

	if fstRoot.rank == sndRoot.rank {
		fstRoot.rank++
	}
}

// Split removes g from its current set and gives it a fresh set of its
// own, used once a copy-on-write means g no longer shares structure
// with its former set-mates. If g had children, the first one takes
// over g's place in the tree (inheriting g's parent and rank) and the
// rest are reattached under it, so the remaining members stay in one
// connected set rather than scattering into singletons.
func Split(g *Guard) {
	setMu.Lock()
	defer setMu.Unlock()

	oldParent := g.parent
	firstChild := g.child

	g.unlinkFromParent()

	if firstChild != nil {
		rest := firstChild.next
		firstChild.prev = nil
		firstChild.next = nil
		if rest != nil {
			rest.prev = nil
		}

		firstChild.parent = oldParent
		firstChild.rank = g.rank
		if oldParent != nil {
			oldParent.attachChild(firstChild)
		}

		for c := rest; c != nil; {
			nxt := c.next
			c.parent = firstChild
			c.prev = nil
			c.next = nil
			firstChild.attachChild(c)
			c = nxt
		}
	}

	g.parent = nil
	g.child = nil
	g.prev = nil
	g.next = nil
	g.rank = 0
}

// unlinkFromParent removes g from its parent's child list, if any.
// Callers must hold setMu.
func (g *Guard) unlinkFromParent() {
	if g.parent == nil {
		return
	}

	if g.parent.child == g {
		g.parent.child = g.next
	}
	if g.prev != nil {
		g.prev.next = g.next
	}
	if g.next != nil {
		g.next.prev = g.prev
	}
	g.prev = nil
	g.next = nil
}

// attachChild adds c as one of the root's children. Callers must hold
// setMu.
func (root *Guard) attachChild(c *Guard) {
	old := root.child
	root.child = c
	c.prev = nil
	c.next = old
	if old != nil {
		old.prev = c
	}
}
