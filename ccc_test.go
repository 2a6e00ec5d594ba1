package certfhe

import (
	"testing"

	"github.com/certfhe/certfhe/cfctx"
)

func TestCCCAddConcatenatesPayload(t *testing.T) {
	ctx, _ := cfctx.New(128, 4)
	l := ctx.DefaultLen()

	a, _ := newCCC(ctx, 1, make([]uint64, l))
	b, _ := newCCC(ctx, 1, make([]uint64, l))
	a.payload[0] = 0xAAAA
	b.payload[0] = 0xBBBB

	sum, err := cccAdd(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if sum.deflen != 2 {
		t.Fatalf("deflen = %d, want 2", sum.deflen)
	}
	if sum.payload[0] != 0xAAAA || sum.payload[l] != 0xBBBB {
		t.Fatal("add result is not a concatenation of the operand payloads")
	}
}

func TestCCCMultiplyComputesOuterAND(t *testing.T) {
	ctx, _ := cfctx.New(128, 4)
	l := ctx.DefaultLen()

	a, _ := newCCC(ctx, 2, make([]uint64, 2*l))
	b, _ := newCCC(ctx, 3, make([]uint64, 3*l))
	for i := range a.payload {
		a.payload[i] = 0xFFFFFFFFFFFFFFFF
	}
	for i := range b.payload {
		b.payload[i] = 0x0F0F0F0F0F0F0F0F
	}

	product, err := cccMultiply(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if product.deflen != 6 {
		t.Fatalf("deflen = %d, want 6", product.deflen)
	}
	for i := range product.payload {
		if product.payload[i] != 0x0F0F0F0F0F0F0F0F {
			t.Fatalf("payload[%d] = %#x, want 0x0f0f...", i, product.payload[i])
		}
	}
}

func TestCCCContextMismatch(t *testing.T) {
	ctxA, _ := cfctx.New(128, 4)
	ctxB, _ := cfctx.New(256, 4)

	a, _ := newCCC(ctxA, 1, make([]uint64, ctxA.DefaultLen()))
	b, _ := newCCC(ctxB, 1, make([]uint64, ctxB.DefaultLen()))

	if _, err := cccAdd(a, b); err == nil {
		t.Fatal("want error adding ccc nodes from different contexts")
	}
	if _, err := cccMultiply(a, b); err == nil {
		t.Fatal("want error multiplying ccc nodes from different contexts")
	}
}

func TestCCCCapacityExceeded(t *testing.T) {
	ctx, _ := cfctx.New(128, 4)
	l := ctx.DefaultLen()

	cfg := CurrentConfig()
	defer SetConfig(cfg)

	small := cfg
	small.MaxCCCSize = 1
	SetConfig(small)

	if _, err := newCCC(ctx, 2, make([]uint64, 2*l)); err == nil {
		t.Fatal("want capacity error exceeding max_ccc_size")
	}
}

func TestCCCPermuteInPlaceWhenUniquelyOwned(t *testing.T) {
	ctx, _ := cfctx.New(128, 4)
	l := ctx.DefaultLen()
	payload := make([]uint64, l)
	payload[0] = 0xF0F0F0F0F0F0F0F0

	c, _ := newCCC(ctx, 1, payload)
	perm := identityPermutation(ctx)

	result, err := c.permute(perm, false)
	if err != nil {
		t.Fatal(err)
	}
	if result != node(c) {
		t.Fatal("want in-place permute to return the same node when uniquely owned")
	}
}

func TestCCCPermuteCopiesWhenShared(t *testing.T) {
	ctx, _ := cfctx.New(128, 4)
	l := ctx.DefaultLen()

	c, _ := newCCC(ctx, 1, make([]uint64, l))
	c.retain()
	defer c.release()

	perm := identityPermutation(ctx)
	result, err := c.permute(perm, false)
	if err != nil {
		t.Fatal(err)
	}
	if result == node(c) {
		t.Fatal("want a fresh copy when ref count > 1")
	}
}
