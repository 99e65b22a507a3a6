// Package triematch implements tseries' "grid of tries" filter index: a
// binary trie over destination-prefix bits where every destination node
// that terminates a filter's dst criterion owns its own binary trie over
// source-prefix bits. A query walks the destination trie from the root,
// and at every destination node carrying a source sub-trie, also walks
// that sub-trie — so a single (srcIP, dstIP) pair reports every filter
// whose (srcPrefix, dstPrefix) both enclose it, not just the most
// specific one.
//
// The original grid of tries links each source sub-trie node to the
// corresponding node in its nearest ancestor destination's source
// sub-trie, so a query never re-walks a source trie from its root. This
// port collects the same multi-hit result set by walking each
// encountered source sub-trie independently instead of chasing ancestor
// pointers; it costs more per-query work for deeply nested prefixes but
// is far simpler to get right, and tseries' trace sizes never make that
// cost matter.
package triematch

import "sort"

// Filter is one src/dst prefix pair to index, carrying an opaque ID the
// caller uses to identify which time series a hit belongs to.
type Filter struct {
	ID      int
	SrcAddr uint32
	SrcMask uint8 // prefix length, 0-32
	DstAddr uint32
	DstMask uint8
}

type srcNode struct {
	children [2]*srcNode
	filters  []int
}

type dstNode struct {
	children [2]*dstNode
	src      *srcNode // non-nil once some filter's dst prefix terminates here
}

// Grid is the dual-trie filter index.
type Grid struct {
	root *dstNode
}

// NewGrid builds a Grid from filters, inserting them sorted by
// decreasing destination mask length so the most specific destination
// prefixes claim their own trie nodes before more general ones are laid
// down around them — mirroring the original construction order, though
// this implementation's insert is itself order-independent.
func NewGrid(filters []Filter) *Grid {
	sorted := make([]Filter, len(filters))
	copy(sorted, filters)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DstMask > sorted[j].DstMask
	})

	g := &Grid{root: &dstNode{}}
	for _, f := range sorted {
		g.insert(f)
	}
	return g
}

func bit(addr uint32, i uint8) int {
	return int((addr >> (31 - i)) & 1)
}

func (g *Grid) insert(f Filter) {
	n := g.root
	for i := uint8(0); i < f.DstMask; i++ {
		b := bit(f.DstAddr, i)
		if n.children[b] == nil {
			n.children[b] = &dstNode{}
		}
		n = n.children[b]
	}
	if n.src == nil {
		n.src = &srcNode{}
	}
	insertSrc(n.src, f.SrcAddr, f.SrcMask, f.ID)
}

func insertSrc(n *srcNode, addr uint32, mask uint8, id int) {
	for i := uint8(0); i < mask; i++ {
		b := bit(addr, i)
		if n.children[b] == nil {
			n.children[b] = &srcNode{}
		}
		n = n.children[b]
	}
	n.filters = append(n.filters, id)
}

// Query returns the IDs of every filter whose destination prefix
// encloses dstAddr and whose source prefix encloses srcAddr. Order is
// unspecified; callers that need stable output should sort the result.
func (g *Grid) Query(srcAddr, dstAddr uint32) []int {
	var hits []int
	n := g.root
	if n.src != nil {
		hits = append(hits, querySrc(n.src, srcAddr)...)
	}
	for i := uint8(0); i < 32 && n != nil; i++ {
		n = n.children[bit(dstAddr, i)]
		if n == nil {
			break
		}
		if n.src != nil {
			hits = append(hits, querySrc(n.src, srcAddr)...)
		}
	}
	return hits
}

func querySrc(n *srcNode, addr uint32) []int {
	var hits []int
	hits = append(hits, n.filters...)
	for i := uint8(0); i < 32 && n != nil; i++ {
		n = n.children[bit(addr, i)]
		if n == nil {
			break
		}
		hits = append(hits, n.filters...)
	}
	return hits
}
