package certfhe

import (
	"testing"

	"github.com/certfhe/certfhe/cfctx"
)

func leafCCC(t *testing.T, ctx cfctx.Context, fill uint64) *ccc {
	t.Helper()
	l := ctx.DefaultLen()
	payload := make([]uint64, l)
	payload[0] = fill
	c, err := newCCC(ctx, 1, payload)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestCADDMergesTwoCCCsUnderCap(t *testing.T) {
	ctx, _ := cfctx.New(128, 4)
	a := leafCCC(t, ctx, 1)
	b := leafCCC(t, ctx, 2)

	n, err := newCADD(ctx, a, b)
	if err != nil {
		t.Fatal(err)
	}
	if n.kind() != kindCCC {
		t.Fatalf("want merged CCC+CCC to materialize, got kind %d", n.kind())
	}
	if n.deflenCount() != 2 {
		t.Fatalf("deflenCount = %d, want 2", n.deflenCount())
	}
}

func TestCADDSelfAnnihilation(t *testing.T) {
	ctx, _ := cfctx.New(128, 4)
	a := leafCCC(t, ctx, 1)

	n, err := newCADD(ctx, a.retain(), a.retain())
	if err != nil {
		t.Fatal(err)
	}
	if n.deflenCount() != 0 {
		t.Fatalf("deflenCount = %d, want 0 for a+a with duplicate removal", n.deflenCount())
	}
}

func TestCADDContextMismatch(t *testing.T) {
	ctxA, _ := cfctx.New(128, 4)
	ctxB, _ := cfctx.New(256, 4)
	a := leafCCC(t, ctxA, 1)
	b := leafCCC(t, ctxB, 1)

	if _, err := newCADD(ctxA, a, b); err == nil {
		t.Fatal("want error merging children from different contexts")
	}
}

func TestCADDShortenCollapsesSingleChild(t *testing.T) {
	ctx, _ := cfctx.New(128, 4)
	a := leafCCC(t, ctx, 1)

	n := newCADDFromChildren(ctx, []node{a})
	shortened := shorten(n)
	if shortened.kind() != kindCCC {
		t.Fatalf("want single-child cadd to shorten to its child, got kind %d", shortened.kind())
	}
}

func TestCADDUnionMergesTwoCADDTrees(t *testing.T) {
	ctx, _ := cfctx.New(128, 4)

	a1, a2 := leafCCC(t, ctx, 1), leafCCC(t, ctx, 2)
	b1, b2 := leafCCC(t, ctx, 3), leafCCC(t, ctx, 4)

	left := newCADDFromChildren(ctx, []node{a1, a2})
	right := newCADDFromChildren(ctx, []node{b1, b2})

	n, err := newCADD(ctx, left, right)
	if err != nil {
		t.Fatal(err)
	}
	if n.deflenCount() != 4 {
		t.Fatalf("deflenCount = %d, want 4", n.deflenCount())
	}
}
