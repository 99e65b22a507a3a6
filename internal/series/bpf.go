package series

import (
	"fmt"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"golang.org/x/net/bpf"
)

// BPFFilterSet compiles a list of BPF filter expressions — tseries'
// sequential-filter mode, as an alternative to the grid-of-tries NETS
// mode — into pure-Go VMs so matching doesn't require a live pcap handle.
type BPFFilterSet struct {
	vms          []*bpf.VM
	breakOnFirst bool
}

// NewBPFFilterSet compiles each expression against the given link type
// and snapshot length, in order. A packet is tested against every filter
// in sequence (unlike the trie index, there is no shortcut for
// "enclosing" matches: BPF mode matches expressions literally). When
// breakOnFirst is set, Match stops scanning after the first hit instead
// of reporting every matching filter.
func NewBPFFilterSet(exprs []string, linkType layers.LinkType, snaplen int, breakOnFirst bool) (*BPFFilterSet, error) {
	set := &BPFFilterSet{vms: make([]*bpf.VM, len(exprs)), breakOnFirst: breakOnFirst}
	for i, expr := range exprs {
		raw, err := pcap.CompileBPFFilter(linkType, snaplen, expr)
		if err != nil {
			return nil, fmt.Errorf("compile filter %d (%q): %w", i, expr, err)
		}
		instrs := make([]bpf.Instruction, len(raw))
		for j, ri := range raw {
			instrs[j] = bpf.RawInstruction{
				Op: ri.Code,
				Jt: ri.Jt,
				Jf: ri.Jf,
				K:  ri.K,
			}
		}
		vm, err := bpf.NewVM(instrs)
		if err != nil {
			return nil, fmt.Errorf("build VM for filter %d (%q): %w", i, expr, err)
		}
		set.vms[i] = vm
	}
	return set, nil
}

// Match returns the indices of every filter in the set whose VM accepts
// pkt's raw captured bytes; wireLen is not consulted.
func (s *BPFFilterSet) Match(pkt []byte, wireLen int) []int {
	var hits []int
	for i, vm := range s.vms {
		n, err := vm.Run(pkt)
		if err != nil {
			continue
		}
		if n > 0 {
			hits = append(hits, i)
			if s.breakOnFirst {
				return hits
			}
		}
	}
	return hits
}

// CompileOne compiles a single standalone BPF expression, used for
// tseries' optional prefilter.
func CompileOne(expr string, linkType layers.LinkType, snaplen int) (*BPFFilterSet, error) {
	return NewBPFFilterSet([]string{expr}, linkType, snaplen, true)
}

// MatchAny reports whether the prefilter's single expression accepts pkt.
func (s *BPFFilterSet) MatchAny(pkt []byte, wireLen int) bool {
	return len(s.Match(pkt, wireLen)) > 0
}
