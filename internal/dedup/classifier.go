// Package dedup implements infodups' duplicate-packet classifier: a
// backward scan through a sliding window of recently ingested packets,
// testing each candidate against the six duplicate relations (or, in
// fast mode, a single reduced relation) and reporting the nearest match.
package dedup

import (
	"fmt"
	"net"
	"time"

	"github.com/Enchufa2/nantools/internal/dissect"
	"github.com/Enchufa2/nantools/internal/window"
)

// WindowMode selects how the backward scan's history horizon is bounded:
// by elapsed packet time, or by position distance. Only one applies; it
// is fixed at Classifier construction time.
type WindowMode int

const (
	// WindowByTime stops the scan once N.time - C.time exceeds Time.
	WindowByTime WindowMode = iota
	// WindowByPositions stops the scan once N.pos - C.pos exceeds Positions-1.
	WindowByPositions
)

// Config controls a Classifier's matching behavior.
type Config struct {
	// Fast selects the single reduced IPv4-only comparator instead of the
	// six full relations.
	Fast bool
	// Suspicious enables reporting payload-equal, relation-less pairs as
	// a RelSuspicious record when no real duplicate is found further back.
	Suspicious bool
	// MaxWindow is the live-node count at which the window reports itself
	// full (0 = never full). Nothing waits on that state, so it does not
	// limit how many nodes are retained.
	MaxWindow int

	// Mode picks the scan horizon: WindowByTime (default) or
	// WindowByPositions. Time and Positions of zero (the Config zero
	// value) disable the corresponding bound entirely, which is useful
	// in tests that don't care about horizon behavior; production
	// callers (the CLIs) always set one explicitly, defaulting to 100ms
	// per the original tool's W_time default.
	Mode      WindowMode
	Time      time.Duration
	Positions uint64

	// Disabled marks relation k (indexed 0-5) as disabled, per the
	// -0..-5 CLI flags: a disabled relation is skipped as if it never
	// matched, falling through to the next relation in the try order.
	Disabled [6]bool
}

// RelationType numbers the six duplicate relations plus the -1
// "suspicious" sentinel; defined alongside the comparators in
// comparators.go.

// DupRecord describes one reported match, carrying enough context to
// render both the compact and extended report line formats (§4.3).
type DupRecord struct {
	Type     RelationType
	CurPos   uint64
	MatchPos uint64
	DeltaT   time.Duration
	DiffTTL  int8 // older.TTL - newer.TTL

	NullPay     bool // payload comparison involved a null/absent buffer
	VLANChanged bool
	DSCPChanged bool

	Suspicious int // count of suspicious (relation-less, payload-equal) pairs seen during this packet's scan

	CurTime   time.Time
	CurTTL    uint8
	CurSrcMAC [6]byte
	CurDstMAC [6]byte
	CurSrcIP  uint32
	CurDstIP  uint32

	OldSrcMAC [6]byte
	OldDstMAC [6]byte
	OldSrcIP  uint32
	OldDstIP  uint32
}

func macString(b [6]byte) string { return net.HardwareAddr(b[:]).String() }

func ipString(addr uint32) string {
	return net.IPv4(byte(addr>>24), byte(addr>>16), byte(addr>>8), byte(addr)).String()
}

// Format renders the record in infodups' single-line report form:
// "<dupNo> <diffNo> <type> <nullPay> <vlan> <dscp> <diffTs> <diffTTL>".
// With extended set, it appends the newer packet's timestamp, TTL, MAC
// pair and IP pair, and — for any type other than Switching — the older
// packet's MAC pair (and, for types {-1,2,3,5}, its IP pair too).
func (r DupRecord) Format(extended bool) string {
	nullPay, vlan, dscp := 0, 0, 0
	if r.NullPay {
		nullPay = 1
	}
	if r.VLANChanged {
		vlan = 1
	}
	if r.DSCPChanged {
		dscp = 1
	}
	base := fmt.Sprintf("%d %d %d %d %d %d %.9f %d",
		r.CurPos, r.CurPos-r.MatchPos, int(r.Type), nullPay, vlan, dscp, r.DeltaT.Seconds(), r.DiffTTL)
	if !extended {
		return base
	}

	ext := fmt.Sprintf(" %d.%09d %d %s %s %s %s",
		r.CurTime.Unix(), r.CurTime.Nanosecond(), r.CurTTL,
		macString(r.CurSrcMAC), macString(r.CurDstMAC), ipString(r.CurSrcIP), ipString(r.CurDstIP))
	if r.Type == RelSwitching {
		return base + ext
	}
	ext += fmt.Sprintf(" %s %s", macString(r.OldSrcMAC), macString(r.OldDstMAC))
	switch r.Type {
	case RelSuspicious, RelNATRouting, RelProxying, RelNATRoutingFrag:
		ext += fmt.Sprintf(" %s %s", ipString(r.OldSrcIP), ipString(r.OldDstIP))
	}
	return base + ext
}

// Classifier holds the sliding window shared by every worker (one
// goroutine per worker in the worker pool; the window's per-worker
// markers let each walk independently without locking out the others).
// A single Classifier instance is shared by the whole pool — it is not
// one-per-worker — since the duplicate search must see every packet
// regardless of which worker ingests it.
type Classifier struct {
	cfg  Config
	buf  *window.Buffer[*dissect.Packet]
	init bool // guards InitMarkers; Append is only ever called from the single ingest goroutine
}

// NewClassifier constructs a Classifier shared by the given number of
// concurrent workers (pass 1 for single-threaded/inline use).
func NewClassifier(cfg Config, workers int) *Classifier {
	return &Classifier{
		cfg: cfg,
		buf: window.NewBuffer[*dissect.Packet](workers, cfg.MaxWindow),
	}
}

// Append inserts pkt at the tail of the shared window and returns the new
// node. It must be called only from the single ingest goroutine, in
// position order — the window's "active list ordered by pos" invariant
// depends on append order matching ingest order, which a single-threaded
// caller guarantees for free. Dispatch to a worker (handing the returned
// node to that worker's task queue) must happen only after this returns,
// per the ingest-then-dispatch ordering the worker pool relies on.
func (c *Classifier) Append(pkt *dissect.Packet) *window.Node[*dissect.Packet] {
	n := c.buf.NewNode()
	n.Replace(pkt)
	c.buf.Append(n)
	if !c.init {
		c.buf.InitMarkers(n)
		c.init = true
	}
	return n
}

// Classify runs workerID's backward duplicate search starting from n
// (already appended to the shared window by Append), advances workerID's
// marker, trims the window's now-unreferenced prefix, and returns the
// best record found. When nothing is reported, the returned record carries
// only the Suspicious count of this scan.
func (c *Classifier) Classify(workerID int, n *window.Node[*dissect.Packet]) (DupRecord, bool) {
	pkt := n.Get()
	marker := c.buf.Mark(workerID)

	var found *DupRecord
	var pending *DupRecord
	suspiciousCount := 0

	var stop *window.Node[*dissect.Packet]
	stopAtMarker := false

	cur := n.Prev()
	for cur != nil {
		cand := cur.Get()
		if c.outOfWindow(cand, pkt) {
			stop = cur
			break
		}

		if rec := c.evaluate(cand, pkt); rec != nil {
			if rec.Type == RelSuspicious {
				suspiciousCount++
				if pending == nil && c.cfg.Suspicious {
					pending = rec
				}
			} else {
				if (rec.Type == RelRoutingFrag || rec.Type == RelNATRoutingFrag) &&
					pkt.IsIPv4 && pkt.IPv4.IsFragment() && !pkt.IPv4.IsFirstFragment() {
					cur.Replace(dissect.Rebase(pkt, cand.Pos, cand.Time))
				}
				found = rec
				break
			}
		}

		if cur == marker {
			// The marker node has now been compared too; everything older
			// was already cleared by this worker's earlier scans.
			stopAtMarker = true
			break
		}

		prev := cur
		cur = cur.Prev()
		if cur == nil {
			stop = prev // exhausted the window without hitting a bound or a match
		}
	}

	if found == nil {
		if !stopAtMarker && stop != nil {
			c.buf.SetMarker(stop, workerID)
		}
		found = pending
	}
	c.buf.Trim()

	if found == nil {
		return DupRecord{Suspicious: suspiciousCount}, false
	}
	found.Suspicious = suspiciousCount
	return *found, true
}

// outOfWindow reports whether cand falls outside the scan horizon
// relative to pkt, per whichever of Config.Time/Positions is configured.
// A zero-valued bound (the default Config{}) disables that check.
func (c *Classifier) outOfWindow(cand, pkt *dissect.Packet) bool {
	switch c.cfg.Mode {
	case WindowByPositions:
		if c.cfg.Positions == 0 {
			return false
		}
		return pkt.Pos-cand.Pos > c.cfg.Positions-1
	default:
		if c.cfg.Time <= 0 {
			return false
		}
		return pkt.Time.Sub(cand.Time) > c.cfg.Time
	}
}

// evaluate tests cand (older) against pkt (newer), returning the nearest
// relation match, a suspicious sentinel, or nil if this candidate
// contributes nothing (payload mismatch with no fragment-in-data hit
// either).
func (c *Classifier) evaluate(cand, pkt *dissect.Packet) *DupRecord {
	base := func(t RelationType) *DupRecord {
		r := &DupRecord{
			Type:        t,
			CurPos:      pkt.Pos,
			MatchPos:    cand.Pos,
			DeltaT:      pkt.Time.Sub(cand.Time),
			VLANChanged: vlanChanged(cand, pkt),
			DSCPChanged: dscpChanged(cand, pkt),
			CurTime:     pkt.Time,
			CurSrcMAC:   pkt.SrcMAC,
			CurDstMAC:   pkt.DstMAC,
			OldSrcMAC:   cand.SrcMAC,
			OldDstMAC:   cand.DstMAC,
		}
		if pkt.IsIPv4 {
			r.CurTTL = pkt.IPv4.TTL
			r.CurSrcIP = pkt.IPv4.SrcAddr
			r.CurDstIP = pkt.IPv4.DstAddr
		}
		if cand.IsIPv4 {
			r.OldSrcIP = cand.IPv4.SrcAddr
			r.OldDstIP = cand.IPv4.DstAddr
			r.DiffTTL = int8(cand.IPv4.TTL) - int8(pkt.IPv4.TTL)
		}
		return r
	}

	if c.cfg.Fast {
		if comparatorFast(cand, pkt) {
			if macClass(cand, pkt) == 2 {
				return base(RelSwitching)
			}
			return base(RelRouting)
		}
		return nil
	}

	// Only a genuine byte-for-byte match (sd==1) counts as sameData=true
	// for the relation-0..3 branch below. sameData's -1 sentinel (both
	// buffers null/absent) is folded in with an outright mismatch here —
	// two header-identical packets with no captured payload at all carry
	// too little signal to call a duplicate on their own — but the
	// fragment-in-data check below still treats a null buffer as an
	// implicit match (see fragmentInData), which is where NullPay
	// actually gets set in practice.
	sd := sameData(cand.Payload, pkt.Payload)
	if sd != 1 {
		// Payloads aren't a clean match: the only remaining chance is the
		// fragmented variants' "fragment appears inside the older
		// packet's full data" check (§4.3 step e).
		if !pkt.IsIPv4 || !cand.IsIPv4 || !pkt.IPv4.IsFragment() {
			return nil
		}
		offset := int(pkt.IPv4.FragOffset)
		if !fragmentInData(cand.Payload, pkt.Payload, offset) {
			return nil
		}
		if cand.IPv4.Identification != pkt.IPv4.Identification {
			return nil
		}
		if macClass(cand, pkt) != 0 {
			// Relations 4-5 only apply when both MACs differ, exactly like
			// relations 1-3's non-fragment counterparts; a fragment pair
			// sharing MACs falls through to suspicious instead.
			return base(RelSuspicious)
		}
		nullPay := cand.Payload == nil || pkt.Payload == nil
		if !c.cfg.Disabled[RelRoutingFrag] && comparatorRoutingFrag(cand, pkt) {
			r := base(RelRoutingFrag)
			r.NullPay = nullPay
			return r
		}
		if !c.cfg.Disabled[RelNATRoutingFrag] && comparatorNATRoutingFrag(cand, pkt) {
			r := base(RelNATRoutingFrag)
			r.NullPay = nullPay
			return r
		}
		return nil
	}

	if !baseNonFragPreconditions(cand, pkt) {
		return base(RelSuspicious)
	}

	mc := macClass(cand, pkt)
	if mc == 2 {
		if c.cfg.Disabled[RelSwitching] || !comparatorSwitching(cand, pkt) {
			return base(RelSuspicious)
		}
		return base(RelSwitching)
	}
	if mc != 0 {
		// exactly one MAC matched: no relation covers this combination.
		return base(RelSuspicious)
	}

	for _, t := range [...]RelationType{RelRouting, RelNATRouting, RelProxying} {
		if c.cfg.Disabled[t] {
			continue
		}
		if comparators[t](cand, pkt) {
			return base(t)
		}
	}
	return base(RelSuspicious)
}

// WindowCount exposes the window's current live count.
func (c *Classifier) WindowCount() int { return c.buf.Count() }
