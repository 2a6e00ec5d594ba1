package certfhe

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/certfhe/certfhe/certerr"
	"github.com/certfhe/certfhe/cfctx"
	"github.com/certfhe/certfhe/internal/guard"
)

// Node kind tags occupy the low two bits of every temporary id assigned
// during serialization, so a reader can classify a record before fully
// parsing it.
const (
	tagCCC        = 0
	tagCADD       = 1
	tagCMUL       = 2
	tagCiphertext = 3
)

// Serialize writes a self-describing blob encoding ctxts, preserving
// shared-subgraph identity: two ciphertexts that share a DAG node before
// serialization still share it after Deserialize.
func Serialize(w io.Writer, ctxts ...*Ciphertext) error {
	if len(ctxts) == 0 {
		return fmt.Errorf("serialize: no ciphertexts given: %w", certerr.ErrInvalidArgument)
	}

	ctx := ctxts[0].node.context()
	seen := make(map[*Ciphertext]bool, len(ctxts))
	for _, c := range ctxts {
		if c == nil || c.node == nil {
			return fmt.Errorf("serialize: nil ciphertext: %w", certerr.ErrInvalidArgument)
		}
		if !c.node.context().Equal(ctx) {
			return fmt.Errorf("serialize: mixed contexts: %w", certerr.ErrInvalidArgument)
		}
		if seen[c] {
			return fmt.Errorf("serialize: duplicate ciphertext pointer in batch: %w", certerr.ErrInvalidArgument)
		}
		seen[c] = true
	}

	ids := make(map[node]uint32)
	var order []node
	var nextIdx uint32

	var walk func(n node)
	walk = func(n node) {
		if _, ok := ids[n]; ok {
			return
		}
		var tag uint32
		switch n.kind() {
		case kindCCC:
			tag = tagCCC
		case kindCADD:
			tag = tagCADD
		case kindCMUL:
			tag = tagCMUL
		}
		ids[n] = nextIdx<<2 | tag
		nextIdx++
		order = append(order, n)

		switch t := n.(type) {
		case *cadd:
			for _, ch := range t.children {
				walk(ch)
			}
		case *cmul:
			for _, ch := range t.children {
				walk(ch)
			}
		}
	}
	for _, c := range ctxts {
		walk(c.node)
	}

	guardIDs := assignGuardIDs(ctxts)

	bw := bufio.NewWriter(w)

	if err := writeU32(bw, uint32(len(ctxts))); err != nil {
		return err
	}
	if err := writeU32(bw, uint32(len(order))); err != nil {
		return err
	}
	for _, v := range []uint64{ctx.N(), ctx.D(), ctx.S(), ctx.DefaultLen()} {
		if err := writeU64(bw, v); err != nil {
			return err
		}
	}

	for i, c := range ctxts {
		ctxtID := uint32(i)<<2 | tagCiphertext
		if err := writeU32(bw, ctxtID); err != nil {
			return err
		}
		if err := writeU32(bw, ids[c.node]); err != nil {
			return err
		}
		if err := writeU32(bw, guardIDs[c.guard]); err != nil {
			return err
		}
	}

	for _, n := range order {
		if err := writeNode(bw, n, ids); err != nil {
			return err
		}
	}

	return bw.Flush()
}

func writeNode(w *bufio.Writer, n node, ids map[node]uint32) error {
	if err := writeU32(w, ids[n]); err != nil {
		return err
	}
	if err := writeU64(w, n.deflenCount()); err != nil {
		return err
	}

	switch t := n.(type) {
	case *ccc:
		for _, word := range t.payload {
			if err := writeU64(w, word); err != nil {
				return err
			}
		}
	case *cadd:
		return writeChildren(w, t.children, ids)
	case *cmul:
		return writeChildren(w, t.children, ids)
	}
	return nil
}

func writeChildren(w *bufio.Writer, children []node, ids map[node]uint32) error {
	if err := writeU64(w, uint64(len(children))); err != nil {
		return err
	}
	for _, ch := range children {
		if err := writeU32(w, ids[ch]); err != nil {
			return err
		}
	}
	return nil
}

// assignGuardIDs groups ctxts by shared guard set and assigns each
// group a 1-based id; a ciphertext whose guard shares no group with
// another provided ciphertext still gets its own nonzero id, since the
// writer always has extended concurrency support.
func assignGuardIDs(ctxts []*Ciphertext) map[*guard.Guard]uint32 {
	ids := make(map[*guard.Guard]uint32, len(ctxts))
	var next uint32 = 1

	for _, c := range ctxts {
		assigned := false
		for g, id := range ids {
			if guard.Same(g, c.guard) {
				ids[c.guard] = id
				assigned = true
				break
			}
		}
		if !assigned {
			ids[c.guard] = next
			next++
		}
	}
	return ids
}

func writeU32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeU64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func readU64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

// deserNode is a partially-built node record during pass 1: enough
// information to allocate the right concrete type and, for CADD/CMUL,
// to remember which child ids to wire up in pass 2.
type deserNode struct {
	id        uint32
	kindTag   uint32
	deflen    uint64
	payload   []uint64
	childIDs  []uint32
	allocated node
}

// Deserialize reads a blob produced by Serialize, reconstructing every
// ciphertext and its shared subgraph structure.
func Deserialize(r io.Reader) ([]*Ciphertext, cfctx.Context, error) {
	br := bufio.NewReader(r)

	ctxtCount, err := readU32(br)
	if err != nil {
		return nil, cfctx.Context{}, fmt.Errorf("deserialize: reading ctxt_count: %w", err)
	}
	totalNodes, err := readU32(br)
	if err != nil {
		return nil, cfctx.Context{}, fmt.Errorf("deserialize: reading total_nodes: %w", err)
	}

	n, err := readU64(br)
	if err != nil {
		return nil, cfctx.Context{}, err
	}
	d, err := readU64(br)
	if err != nil {
		return nil, cfctx.Context{}, err
	}
	if _, err := readU64(br); err != nil { // S, recomputed by NewContext
		return nil, cfctx.Context{}, err
	}
	if _, err := readU64(br); err != nil { // L, recomputed by NewContext
		return nil, cfctx.Context{}, err
	}

	ctx, err := cfctx.New(n, d)
	if err != nil {
		return nil, cfctx.Context{}, fmt.Errorf("deserialize: %w", err)
	}
	l := ctx.DefaultLen()

	type ctxtRecord struct {
		ctxtID, nodeID, guardID uint32
	}
	records := make([]ctxtRecord, ctxtCount)
	for i := range records {
		ctxtID, err := readU32(br)
		if err != nil {
			return nil, cfctx.Context{}, err
		}
		nodeID, err := readU32(br)
		if err != nil {
			return nil, cfctx.Context{}, err
		}
		guardID, err := readU32(br)
		if err != nil {
			return nil, cfctx.Context{}, err
		}
		records[i] = ctxtRecord{ctxtID, nodeID, guardID}
	}

	byID := make(map[uint32]*deserNode, totalNodes)
	var order []*deserNode

	for i := uint32(0); i < totalNodes; i++ {
		id, err := readU32(br)
		if err != nil {
			return nil, cfctx.Context{}, fmt.Errorf("deserialize: reading node id: %w", err)
		}
		deflen, err := readU64(br)
		if err != nil {
			return nil, cfctx.Context{}, err
		}

		rec := &deserNode{id: id, kindTag: id & 0x3, deflen: deflen}

		switch rec.kindTag {
		case tagCCC:
			rec.payload = make([]uint64, deflen*l)
			for i := range rec.payload {
				v, err := readU64(br)
				if err != nil {
					return nil, cfctx.Context{}, err
				}
				rec.payload[i] = v
			}
		case tagCADD, tagCMUL:
			childCount, err := readU64(br)
			if err != nil {
				return nil, cfctx.Context{}, err
			}
			rec.childIDs = make([]uint32, childCount)
			for i := range rec.childIDs {
				cid, err := readU32(br)
				if err != nil {
					return nil, cfctx.Context{}, err
				}
				rec.childIDs[i] = cid
			}
		default:
			return nil, cfctx.Context{}, fmt.Errorf("deserialize: unknown node kind tag %d: %w", rec.kindTag, certerr.ErrIO)
		}

		byID[id] = rec
		order = append(order, rec)
	}

	// Pass 1 allocated bare records; pass 2 resolves child node
	// pointers bottom-up via memoized recursion, then wires them.
	var resolve func(rec *deserNode) (node, error)
	resolve = func(rec *deserNode) (node, error) {
		if rec.allocated != nil {
			return rec.allocated.retain(), nil
		}

		switch rec.kindTag {
		case tagCCC:
			c, err := newCCC(ctx, rec.deflen, rec.payload)
			if err != nil {
				return nil, err
			}
			rec.allocated = c
			return c, nil

		case tagCADD, tagCMUL:
			children := make([]node, len(rec.childIDs))
			for i, cid := range rec.childIDs {
				childRec, ok := byID[cid]
				if !ok {
					return nil, fmt.Errorf("deserialize: unresolved child id %d: %w", cid, certerr.ErrIO)
				}
				ch, err := resolve(childRec)
				if err != nil {
					return nil, err
				}
				children[i] = ch
			}

			var n node
			if rec.kindTag == tagCADD {
				n = newCADDFromChildren(ctx, children)
			} else {
				n = newCMULFromChildren(ctx, children)
			}
			rec.allocated = n
			return n, nil
		}
		return nil, fmt.Errorf("deserialize: unreachable node kind: %w", certerr.ErrIO)
	}

	guards := make(map[uint32]*guard.Guard)
	result := make([]*Ciphertext, ctxtCount)

	for i, rec := range records {
		nodeRec, ok := byID[rec.nodeID]
		if !ok {
			return nil, cfctx.Context{}, fmt.Errorf("deserialize: ciphertext references unknown node %d: %w", rec.nodeID, certerr.ErrIO)
		}
		n, err := resolve(nodeRec)
		if err != nil {
			return nil, cfctx.Context{}, err
		}

		ct := newCiphertext(n)
		if rec.guardID != 0 {
			if g, ok := guards[rec.guardID]; ok {
				guard.Union(ct.guard, g)
			} else {
				guards[rec.guardID] = ct.guard
			}
		}
		result[i] = ct
	}

	// Post-pass: any ciphertext written with guard_id 0 still needs its
	// sharing discovered structurally, since no writer-side guard group
	// was recorded for it.
	needsDiscovery := false
	for _, rec := range records {
		if rec.guardID == 0 {
			needsDiscovery = true
			break
		}
	}
	if needsDiscovery {
		discoverSharedGuards(result)
	}

	return result, ctx, nil
}

// discoverSharedGuards unions the guards of any two ciphertexts whose
// node subgraphs intersect, for blobs written without guard_id hints.
func discoverSharedGuards(ctxts []*Ciphertext) {
	owners := make(map[node][]*Ciphertext)

	var mark func(c *Ciphertext, n node)
	mark = func(c *Ciphertext, n node) {
		owners[n] = append(owners[n], c)
		switch t := n.(type) {
		case *cadd:
			for _, ch := range t.children {
				mark(c, ch)
			}
		case *cmul:
			for _, ch := range t.children {
				mark(c, ch)
			}
		}
	}

	for _, c := range ctxts {
		if c.node != nil {
			mark(c, c.node)
		}
	}

	for _, owningSet := range owners {
		for i := 1; i < len(owningSet); i++ {
			guard.Union(owningSet[0].guard, owningSet[i].guard)
		}
	}
}
