// Package lpm implements the IPv4 routing trie with the RCU-style double
// buffering the control plane needs to mutate routes without a lock on
// the worker lookup path: two tables are kept, only one is "live" at a
// time, and route edits mutate the other one first.
package lpm

import (
	"encoding/binary"
	"net/netip"

	"github.com/gopakumarce/r2/internal/fwd"
)

// trieNode is one bit of an IPv4 prefix. A lookup walks at most 32
// levels, noting the deepest node with has set along the way -- that's
// the longest matching prefix.
type trieNode struct {
	children [2]*trieNode
	has      bool
	index    int
}

// Table is one generation of the IPv4 routing trie. A lookup resolves to
// a leaf index; leaves holds the forwarding target each index was
// assigned at Add time. Indices are never reused across a Del: a
// re-added prefix gets a fresh index.
type Table struct {
	root    *trieNode
	leaves  []*fwd.IPv4Leaf
	indexOf map[netip.Prefix]int
}

func NewTable() (*Table, error) {
	return &Table{root: &trieNode{}, indexOf: make(map[netip.Prefix]int)}, nil
}

func (t *Table) Close() {}

func ip4Bits(addr netip.Addr) uint32 {
	raw := addr.As4()
	return binary.BigEndian.Uint32(raw[:])
}

func bitAt(bits uint32, i int) uint32 {
	return (bits >> uint(31-i)) & 1
}

// Add installs prefix -> value. Matches the original's duplicate
// detection: adding an already-present prefix is a no-op reporting
// false.
func (t *Table) Add(prefix netip.Prefix, value *fwd.IPv4Leaf) bool {
	if _, exists := t.indexOf[prefix]; exists {
		return false
	}
	bits := ip4Bits(prefix.Addr())
	n := t.root
	for i := 0; i < prefix.Bits(); i++ {
		bit := bitAt(bits, i)
		if n.children[bit] == nil {
			n.children[bit] = &trieNode{}
		}
		n = n.children[bit]
	}
	idx := len(t.leaves)
	n.has = true
	n.index = idx
	t.leaves = append(t.leaves, value)
	t.indexOf[prefix] = idx
	return true
}

// Del removes prefix, reporting false if it wasn't present.
func (t *Table) Del(prefix netip.Prefix) bool {
	idx, exists := t.indexOf[prefix]
	if !exists {
		return false
	}
	bits := ip4Bits(prefix.Addr())
	n := t.root
	for i := 0; i < prefix.Bits(); i++ {
		bit := bitAt(bits, i)
		if n.children[bit] == nil {
			return false
		}
		n = n.children[bit]
	}
	n.has = false
	t.leaves[idx] = nil
	delete(t.indexOf, prefix)
	return true
}

// lookupIndex walks the trie bit by bit, remembering the deepest node
// with has set -- the longest matching prefix covering addr.
func (t *Table) lookupIndex(addr netip.Addr) (int, bool) {
	bits := ip4Bits(addr)
	n := t.root
	idx, found := 0, false
	if n.has {
		idx, found = n.index, true
	}
	for i := 0; i < 32; i++ {
		bit := bitAt(bits, i)
		if n.children[bit] == nil {
			break
		}
		n = n.children[bit]
		if n.has {
			idx, found = n.index, true
		}
	}
	return idx, found
}

// Lookup resolves addr to the longest matching prefix's leaf, if any.
func (t *Table) Lookup(addr netip.Addr) (*fwd.IPv4Leaf, bool) {
	idx, ok := t.lookupIndex(addr)
	if !ok {
		return nil, false
	}
	leaf := t.leaves[idx]
	return leaf, leaf != nil
}

// LookupBatch resolves every address in one call. The original batched
// this across a cgo boundary to amortize crossing overhead; this trie is
// plain Go, so the batch is just a loop, kept as one call so callers
// don't need two code paths for single vs. batched lookups.
func (t *Table) LookupBatch(addrs []netip.Addr) []*fwd.IPv4Leaf {
	out := make([]*fwd.IPv4Leaf, len(addrs))
	for i, addr := range addrs {
		if leaf, ok := t.Lookup(addr); ok {
			out[i] = leaf
		}
	}
	return out
}
