package certfhe

import (
	"bytes"
	"testing"

	"github.com/certfhe/certfhe/cfctx"
	"github.com/certfhe/certfhe/internal/guard"
	"github.com/certfhe/certfhe/internal/randsrc"
)

func TestSerializeDeserializeRoundTripsDecryption(t *testing.T) {
	ctx, _ := cfctx.New(128, 4)
	sk, _ := NewSecretKeyFromReader(ctx, randsrc.Deterministic(0x5EED))

	c1 := encryptBit(t, sk, 1, 20)
	c2 := encryptBit(t, sk, 0, 21)

	var buf bytes.Buffer
	if err := Serialize(&buf, c1, c2); err != nil {
		t.Fatal(err)
	}

	out, ctxOut, err := Deserialize(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !ctxOut.Equal(ctx) {
		t.Fatalf("deserialized context = %v, want %v", ctxOut, ctx)
	}
	if len(out) != 2 {
		t.Fatalf("got %d ciphertexts, want 2", len(out))
	}

	p1, err := out[0].Decrypt(sk)
	if err != nil {
		t.Fatal(err)
	}
	if p1.Bit() != 1 {
		t.Fatalf("ciphertext 0 decrypted to %d, want 1", p1.Bit())
	}

	p2, err := out[1].Decrypt(sk)
	if err != nil {
		t.Fatal(err)
	}
	if p2.Bit() != 0 {
		t.Fatalf("ciphertext 1 decrypted to %d, want 0", p2.Bit())
	}
}

func TestSerializePreservesSharedSubgraph(t *testing.T) {
	ctx, _ := cfctx.New(128, 4)
	sk, _ := NewSecretKeyFromReader(ctx, randsrc.Deterministic(0x5EED))

	cfg := CurrentConfig()
	defer SetConfig(cfg)
	noMerge := cfg
	noMerge.NoMerging = true
	SetConfig(noMerge)

	shared := encryptBit(t, sk, 1, 30)
	other := encryptBit(t, sk, 0, 31)

	a, err := shared.Add(other)
	if err != nil {
		t.Fatal(err)
	}
	b, err := shared.Add(other)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := Serialize(&buf, a, b, shared); err != nil {
		t.Fatal(err)
	}

	out, _, err := Deserialize(&buf)
	if err != nil {
		t.Fatal(err)
	}

	sharedChild := func(root node, target node) bool {
		return nodeReachesNode(root, target)
	}
	if !sharedChild(out[0].node, out[2].node) || !sharedChild(out[1].node, out[2].node) {
		t.Fatal("want both deserialized sums to still reach the shared leaf node")
	}
	if out[0].node.(*cadd).children[0] != out[1].node.(*cadd).children[0] {
		t.Fatal("want the shared leaf to be the same pointer across both deserialized sums, not a duplicate copy")
	}
}

func TestSerializeRequiresSameContext(t *testing.T) {
	ctxA, _ := cfctx.New(128, 4)
	ctxB, _ := cfctx.New(256, 4)
	skA, _ := NewSecretKeyFromReader(ctxA, randsrc.Deterministic(1))
	skB, _ := NewSecretKeyFromReader(ctxB, randsrc.Deterministic(2))

	cA := encryptBit(t, skA, 1, 1)
	cB := encryptBit(t, skB, 1, 2)

	var buf bytes.Buffer
	if err := Serialize(&buf, cA, cB); err == nil {
		t.Fatal("want error serializing ciphertexts from different contexts")
	}
}

func TestSerializeRejectsDuplicateCiphertextPointer(t *testing.T) {
	ctx, _ := cfctx.New(128, 4)
	sk, _ := NewSecretKeyFromReader(ctx, randsrc.Deterministic(3))

	c := encryptBit(t, sk, 1, 3)

	var buf bytes.Buffer
	if err := Serialize(&buf, c, c); err == nil {
		t.Fatal("want error serializing the same ciphertext pointer twice")
	}
}

func TestDiscoverSharedGuardsUnionsCiphertextsOverASharedNode(t *testing.T) {
	ctx, _ := cfctx.New(128, 4)
	l := ctx.DefaultLen()
	shared, err := newCCC(ctx, 1, make([]uint64, l))
	if err != nil {
		t.Fatal(err)
	}

	a := newCiphertext(shared.retain())
	b := newCiphertext(shared.retain())

	if guard.Same(a.guard, b.guard) {
		t.Fatal("a and b should start with independent guards")
	}

	discoverSharedGuards([]*Ciphertext{a, b})

	if !guard.Same(a.guard, b.guard) {
		t.Fatal("want discovery to union guards of ciphertexts sharing a node")
	}
}
