package certfhe

import (
	"fmt"

	"github.com/certfhe/certfhe/certerr"
	"github.com/certfhe/certfhe/cfctx"
	"github.com/certfhe/certfhe/internal/guard"
)

// Ciphertext is the user-facing handle onto one DAG node, plus the
// concurrency guard that serializes mutation against any other
// Ciphertext that transitively shares a node with it.
type Ciphertext struct {
	node  node
	guard *guard.Guard
}

func newCiphertext(n node) *Ciphertext {
	return &Ciphertext{node: n, guard: guard.New()}
}

// Context returns the Context of the underlying DAG node.
func (c *Ciphertext) Context() cfctx.Context {
	return c.node.context()
}

// lockPair takes both ciphertexts' root mutexes in a stable order to
// avoid deadlock between concurrent operations that share an operand.
// It returns an unlock function and whether a and b were already in the
// same guard set before this call.
func lockPair(a, b *Ciphertext) (unlock func(), alreadyShared bool) {
	alreadyShared = guard.Same(a.guard, b.guard)

	first, second := a.guard, b.guard
	if first == second || alreadyShared {
		first.Lock()
		return func() { first.Unlock() }, alreadyShared
	}

	// Order by pointer identity (stand-in for the original's address
	// ordering) so two concurrent operations over the same pair always
	// acquire in the same order.
	if fmt.Sprintf("%p", first) > fmt.Sprintf("%p", second) {
		first, second = second, first
	}
	first.Lock()
	second.Lock()
	return func() { second.Unlock(); first.Unlock() }, alreadyShared
}

// Add returns a new Ciphertext holding self + other, without modifying
// either operand.
func (c *Ciphertext) Add(other *Ciphertext) (*Ciphertext, error) {
	if c == nil || other == nil || c.node == nil || other.node == nil {
		return nil, fmt.Errorf("ciphertext: add: nil operand: %w", certerr.ErrInvalidArgument)
	}

	unlock, wasShared := lockPair(c, other)
	defer unlock()

	result, err := newCADD(c.node.context(), c.node.retain(), other.node.retain())
	if err != nil {
		return nil, err
	}

	out := newCiphertext(result)
	unionIfSharing(out, c, other, wasShared)
	return out, nil
}

// Multiply returns a new Ciphertext holding self * other, without
// modifying either operand.
func (c *Ciphertext) Multiply(other *Ciphertext) (*Ciphertext, error) {
	if c == nil || other == nil || c.node == nil || other.node == nil {
		return nil, fmt.Errorf("ciphertext: multiply: nil operand: %w", certerr.ErrInvalidArgument)
	}

	unlock, wasShared := lockPair(c, other)
	defer unlock()

	result, err := newCMUL(c.node.context(), c.node.retain(), other.node.retain())
	if err != nil {
		return nil, err
	}

	out := newCiphertext(result)
	unionIfSharing(out, c, other, wasShared)
	return out, nil
}

// AddInPlace replaces self's node with self + other.
func (c *Ciphertext) AddInPlace(other *Ciphertext) error {
	if c == nil || other == nil || c.node == nil || other.node == nil {
		return fmt.Errorf("ciphertext: add in place: nil operand: %w", certerr.ErrInvalidArgument)
	}

	unlock, wasShared := lockPair(c, other)
	defer unlock()

	result, err := newCADD(c.node.context(), c.node.retain(), other.node.retain())
	if err != nil {
		return err
	}

	old := c.node
	c.node = result
	old.release()

	if !wasShared && nodeReachesNode(result, other.node) {
		guard.Union(c.guard, other.guard)
	}
	return nil
}

// MultiplyInPlace replaces self's node with self * other.
func (c *Ciphertext) MultiplyInPlace(other *Ciphertext) error {
	if c == nil || other == nil || c.node == nil || other.node == nil {
		return fmt.Errorf("ciphertext: multiply in place: nil operand: %w", certerr.ErrInvalidArgument)
	}

	unlock, wasShared := lockPair(c, other)
	defer unlock()

	result, err := newCMUL(c.node.context(), c.node.retain(), other.node.retain())
	if err != nil {
		return err
	}

	old := c.node
	c.node = result
	old.release()

	if !wasShared && nodeReachesNode(result, other.node) {
		guard.Union(c.guard, other.guard)
	}
	return nil
}

// ApplyPermutation returns a new Ciphertext with perm applied, without
// modifying the receiver.
func (c *Ciphertext) ApplyPermutation(perm Permutation) (*Ciphertext, error) {
	if c == nil || c.node == nil {
		return nil, fmt.Errorf("ciphertext: apply permutation: empty ciphertext: %w", certerr.ErrInvalidArgument)
	}

	c.guard.Lock()
	defer c.guard.Unlock()

	result, err := c.node.permute(perm, true)
	if err != nil {
		return nil, err
	}
	return newCiphertext(result), nil
}

// ApplyPermutationInPlace applies perm to the receiver's node, mutating
// in place when it is uniquely owned.
func (c *Ciphertext) ApplyPermutationInPlace(perm Permutation) error {
	if c == nil || c.node == nil {
		return fmt.Errorf("ciphertext: apply permutation in place: empty ciphertext: %w", certerr.ErrInvalidArgument)
	}

	c.guard.Lock()
	defer c.guard.Unlock()

	result, err := c.node.permute(perm, false)
	if err != nil {
		return err
	}

	if result != c.node {
		old := c.node
		c.node = result
		old.release()
		guard.Split(c.guard)
		c.guard = guard.New()
	} else {
		result.release()
	}
	return nil
}

// DeepCopy returns a Ciphertext over a fully independent copy of the
// receiver's subgraph, sharing no nodes with the receiver or anything
// else — safe to hand to another goroutine for concurrent mutation.
func (c *Ciphertext) DeepCopy() *Ciphertext {
	if c == nil || c.node == nil {
		return &Ciphertext{guard: guard.New()}
	}

	c.guard.Lock()
	cp := c.node.deepClone()
	c.guard.Unlock()

	return newCiphertext(cp)
}

// Decrypt decrypts the receiver under sk.
func (c *Ciphertext) Decrypt(sk *SecretKey) (Plaintext, error) {
	return sk.Decrypt(c)
}

// unionIfSharing unions out's guard with a's and b's whenever the
// result genuinely retains one of their nodes (the CADD/CMUL fusion
// path may have released one or both operand nodes entirely, in which
// case no sharing exists and no union is needed).
func unionIfSharing(out, a, b *Ciphertext, alreadyShared bool) {
	if nodeReachesNode(out.node, a.node) {
		guard.Union(a.guard, out.guard)
	}
	if !alreadyShared && nodeReachesNode(out.node, b.node) {
		guard.Union(b.guard, out.guard)
	}
}

// nodeReachesNode reports whether target is reachable from root,
// including root == target itself.
func nodeReachesNode(root, target node) bool {
	if root == target {
		return true
	}

	switch t := root.(type) {
	case *cadd:
		for _, ch := range t.children {
			if nodeReachesNode(ch, target) {
				return true
			}
		}
	case *cmul:
		for _, ch := range t.children {
			if nodeReachesNode(ch, target) {
				return true
			}
		}
	}
	return false
}
