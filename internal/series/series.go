package series

import (
	"encoding/binary"
	"time"

	"github.com/Enchufa2/nantools/internal/dissect"
	"github.com/Enchufa2/nantools/internal/triematch"
)

// Matcher reports which filter indices a dissected packet satisfies.
type Matcher interface {
	MatchPacket(p *dissect.Packet) []int
}

// NetsMatcher adapts a triematch.Grid (the grid-of-tries "NETS" mode,
// selected by -N) to Matcher.
type NetsMatcher struct {
	Grid *triematch.Grid
}

func (m NetsMatcher) MatchPacket(p *dissect.Packet) []int {
	if !p.IsIPv4 {
		return nil
	}
	return m.Grid.Query(p.IPv4.SrcAddr, p.IPv4.DstAddr)
}

// BPFMatcher adapts a BPFFilterSet (the default, sequential-filter mode)
// to Matcher.
type BPFMatcher struct {
	Set *BPFFilterSet
}

func (m BPFMatcher) MatchPacket(p *dissect.Packet) []int {
	return m.Set.Match(p.FrameBytes, p.RealSize)
}

// Engine ties a Matcher to a Bucketizer, producing one Row per completed
// time interval as packets are fed in ascending timestamp order.
type Engine struct {
	matcher Matcher
	bucket  *Bucketizer
}

// NewEngine constructs an Engine. ref is the reference timestamp buckets
// align to (normally the first packet's timestamp); width is the bucket
// duration; nFilters is the number of distinct filter IDs the matcher
// can report.
func NewEngine(matcher Matcher, ref time.Time, width time.Duration, nFilters int, skipZero bool) *Engine {
	return &Engine{
		matcher: matcher,
		bucket:  NewBucketizer(ref, width, nFilters, skipZero),
	}
}

// Feed matches p against every filter and records a hit for each one
// that matched, sized by p's real (on-wire) length.
func (e *Engine) Feed(p *dissect.Packet, emit func(Row)) {
	for _, id := range e.matcher.MatchPacket(p) {
		e.bucket.Add(p.Time, id, int64(p.RealSize), emit)
	}
}

// Finish flushes the final open bucket.
func (e *Engine) Finish(emit func(Row)) {
	e.bucket.Finish(emit)
}

// ParseIPv4 converts a dotted-quad-as-uint32 back for display purposes,
// kept here rather than in triematch since it's purely a series output
// concern.
func ParseIPv4(addr uint32) [4]byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], addr)
	return b
}
