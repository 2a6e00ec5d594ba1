package certfhe

import (
	"testing"

	"github.com/certfhe/certfhe/cfctx"
	"github.com/certfhe/certfhe/internal/guard"
	"github.com/certfhe/certfhe/internal/randsrc"
)

func encryptBit(t *testing.T, sk *SecretKey, bit byte, seed uint64) *Ciphertext {
	t.Helper()
	c, err := sk.encryptFromReader(NewPlaintext(bit), randsrc.Deterministic(seed))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestCiphertextAddDecryptsToXOR(t *testing.T) {
	ctx, _ := cfctx.New(128, 4)
	sk, err := NewSecretKeyFromReader(ctx, randsrc.Deterministic(0x5EED))
	if err != nil {
		t.Fatal(err)
	}

	for _, tc := range []struct{ a, b byte }{{0, 0}, {0, 1}, {1, 0}, {1, 1}} {
		ca := encryptBit(t, sk, tc.a, 1)
		cb := encryptBit(t, sk, tc.b, 2)

		sum, err := ca.Add(cb)
		if err != nil {
			t.Fatal(err)
		}
		p, err := sum.Decrypt(sk)
		if err != nil {
			t.Fatal(err)
		}
		want := tc.a ^ tc.b
		if p.Bit() != want {
			t.Fatalf("%d + %d decrypted to %d, want %d", tc.a, tc.b, p.Bit(), want)
		}
	}
}

func TestCiphertextMultiplyDecryptsToAND(t *testing.T) {
	ctx, _ := cfctx.New(128, 4)
	sk, err := NewSecretKeyFromReader(ctx, randsrc.Deterministic(0x5EED))
	if err != nil {
		t.Fatal(err)
	}

	for _, tc := range []struct{ a, b byte }{{0, 0}, {0, 1}, {1, 0}, {1, 1}} {
		ca := encryptBit(t, sk, tc.a, 3)
		cb := encryptBit(t, sk, tc.b, 4)

		product, err := ca.Multiply(cb)
		if err != nil {
			t.Fatal(err)
		}
		p, err := product.Decrypt(sk)
		if err != nil {
			t.Fatal(err)
		}
		want := tc.a & tc.b
		if p.Bit() != want {
			t.Fatalf("%d * %d decrypted to %d, want %d", tc.a, tc.b, p.Bit(), want)
		}
	}
}

func TestCiphertextAddInPlaceMutatesSelf(t *testing.T) {
	ctx, _ := cfctx.New(128, 4)
	sk, _ := NewSecretKeyFromReader(ctx, randsrc.Deterministic(0x5EED))

	ca := encryptBit(t, sk, 1, 5)
	cb := encryptBit(t, sk, 1, 6)

	if err := ca.AddInPlace(cb); err != nil {
		t.Fatal(err)
	}
	p, err := ca.Decrypt(sk)
	if err != nil {
		t.Fatal(err)
	}
	if p.Bit() != 0 {
		t.Fatalf("1+1 in place decrypted to %d, want 0", p.Bit())
	}
}

func TestCiphertextPermutationRoundTrip(t *testing.T) {
	ctx, _ := cfctx.New(128, 4)
	sk, _ := NewSecretKeyFromReader(ctx, randsrc.Deterministic(0x5EED))
	perm, err := NewPermutationFromReader(ctx, randsrc.Deterministic(99))
	if err != nil {
		t.Fatal(err)
	}

	c := encryptBit(t, sk, 1, 7)
	permuted, err := c.ApplyPermutation(perm)
	if err != nil {
		t.Fatal(err)
	}

	skPermuted := sk.ApplyPermutation(perm)
	p, err := permuted.Decrypt(skPermuted)
	if err != nil {
		t.Fatal(err)
	}
	if p.Bit() != 1 {
		t.Fatalf("permuted ciphertext decrypted under the correspondingly permuted key to %d, want 1", p.Bit())
	}
}

func TestCiphertextDeepCopySharesNoNodes(t *testing.T) {
	ctx, _ := cfctx.New(128, 4)
	sk, _ := NewSecretKeyFromReader(ctx, randsrc.Deterministic(0x5EED))

	c := encryptBit(t, sk, 1, 8)
	cp := c.DeepCopy()

	if cp.node == c.node {
		t.Fatal("want deep copy to hold a distinct node")
	}
	if guard.Same(c.guard, cp.guard) {
		t.Fatal("want deep copy to hold a distinct guard")
	}
}

func TestCiphertextAddNilOperand(t *testing.T) {
	ctx, _ := cfctx.New(128, 4)
	sk, _ := NewSecretKeyFromReader(ctx, randsrc.Deterministic(0x5EED))
	c := encryptBit(t, sk, 1, 9)

	if _, err := c.Add(nil); err == nil {
		t.Fatal("want error adding a nil ciphertext")
	}
}

func TestCiphertextAddUnionsGuardsWhenSharingResults(t *testing.T) {
	ctx, _ := cfctx.New(128, 4)
	sk, _ := NewSecretKeyFromReader(ctx, randsrc.Deterministic(0x5EED))

	cfg := CurrentConfig()
	defer SetConfig(cfg)
	noMerge := cfg
	noMerge.NoMerging = true
	noMerge.RemoveDuplicatesOnAdd = false
	SetConfig(noMerge)

	ca := encryptBit(t, sk, 1, 10)
	cb := encryptBit(t, sk, 0, 11)

	sum, err := ca.Add(cb)
	if err != nil {
		t.Fatal(err)
	}

	if !guard.Same(sum.guard, ca.guard) {
		t.Fatal("want the sum's guard unioned with an operand it still shares a node with")
	}
}
