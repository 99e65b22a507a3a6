package dedup

import (
	"bytes"

	"github.com/Enchufa2/nantools/internal/dissect"
)

// RelationType numbers the six duplicate relations the classifier tests,
// plus the -1 "suspicious" sentinel for payload-equal pairs that match
// none of them.
type RelationType int

const (
	RelSwitching      RelationType = 0
	RelRouting        RelationType = 1
	RelNATRouting     RelationType = 2
	RelProxying       RelationType = 3
	RelRoutingFrag    RelationType = 4
	RelNATRoutingFrag RelationType = 5
	RelSuspicious     RelationType = -1
)

func (t RelationType) String() string {
	switch t {
	case RelSwitching:
		return "Switching"
	case RelRouting:
		return "Routing"
	case RelNATRouting:
		return "NAT Routing"
	case RelProxying:
		return "Proxying"
	case RelRoutingFrag:
		return "Routing with fragmentation"
	case RelNATRoutingFrag:
		return "NAT Routing with fragmentation"
	case RelSuspicious:
		return "Suspicious"
	default:
		return "unknown"
	}
}

// macClass classifies a MAC-address comparison between the older (cur)
// and newer (pkt) packet: 2 both equal, 0 both differ, 1 exactly one
// matches.
func macClass(cur, pkt *dissect.Packet) int {
	srcEq := cur.SrcMAC == pkt.SrcMAC
	dstEq := cur.DstMAC == pkt.DstMAC
	switch {
	case srcEq && dstEq:
		return 2
	case !srcEq && !dstEq:
		return 0
	default:
		return 1
	}
}

// sameData compares two payloads: 0 if lengths differ, -1 if either is
// absent (nil), 0 if they differ byte-for-byte, else 1.
func sameData(a, b []byte) int {
	if len(a) != len(b) {
		return 0
	}
	if a == nil || b == nil {
		return -1
	}
	if !bytes.Equal(a, b) {
		return 0
	}
	return 1
}

// fragmentInData reports whether dataFrag appears inside data at offset.
// A nil operand is treated as an implicit match once the length bound is
// satisfied — an original-source quirk preserved here unchanged.
func fragmentInData(data, dataFrag []byte, offset int) bool {
	if len(data) < offset+len(dataFrag) {
		return false
	}
	if data == nil || dataFrag == nil {
		return true
	}
	return bytes.Equal(data[offset:offset+len(dataFrag)], dataFrag)
}

func vlanChanged(cur, pkt *dissect.Packet) bool {
	return cur.VLANID != pkt.VLANID
}

// dscpChanged compares the full DSCP+ECN byte, not just the 6-bit DSCP
// field. Preserved as-is per an open question in the source design: this
// is a subtle interpretation choice, not a bug to fix.
func dscpChanged(cur, pkt *dissect.Packet) bool {
	if !cur.IsIPv4 || !pkt.IsIPv4 {
		return false
	}
	return cur.IPv4.DSCPECN != pkt.IPv4.DSCPECN
}

func tcpFieldsEqual(cur, pkt *dissect.Packet) bool {
	if cur.IPv4.TotalLength != pkt.IPv4.TotalLength {
		return false
	}
	if cur.TCP.SeqNumber != pkt.TCP.SeqNumber {
		return false
	}
	if cur.TCP.AckNumber != pkt.TCP.AckNumber {
		return false
	}
	if cur.TCP.Window != pkt.TCP.Window {
		return false
	}
	return true
}

// comparatorSwitching is relation 0. It is only reached by evaluate when
// both MACs already match and the payload is byte-equal, so a non-IPv4
// pair has nothing further to check and is trivially a match. This
// tolerates an unequal TCP checksum whenever every other field lines up —
// unusual for a true switching duplicate, which should preserve the
// checksum untouched, but preserved as-is per an open question in the
// source design rather than "fixed."
func comparatorSwitching(cur, pkt *dissect.Packet) bool {
	if !cur.IsIPv4 || !pkt.IsIPv4 {
		return true
	}
	if cur.HasPorts && pkt.HasPorts && (cur.SrcPort != pkt.SrcPort || cur.DstPort != pkt.DstPort) {
		return false
	}
	if cur.IPv4.TTL != pkt.IPv4.TTL {
		return false
	}
	if cur.IsTCP && pkt.IsTCP {
		return tcpFieldsEqual(cur, pkt)
	}
	return true
}

// comparatorRouting is relation 1.
func comparatorRouting(cur, pkt *dissect.Packet) bool {
	if cur.IPv4.SrcAddr != pkt.IPv4.SrcAddr || cur.IPv4.DstAddr != pkt.IPv4.DstAddr {
		return false
	}
	if cur.HasPorts && pkt.HasPorts {
		if cur.SrcPort != pkt.SrcPort || cur.DstPort != pkt.DstPort {
			return false
		}
	}
	if cur.IsTCP && pkt.IsTCP && !tcpFieldsEqual(cur, pkt) {
		return false
	}
	return true
}

// comparatorNATRouting is relation 2.
func comparatorNATRouting(cur, pkt *dissect.Packet) bool {
	if cur.HasPorts && pkt.HasPorts {
		sp := cur.SrcPort == pkt.SrcPort
		dp := cur.DstPort == pkt.DstPort
		if (sp && dp) || (!sp && !dp) {
			return false
		}
		srcEq := cur.IPv4.SrcAddr == pkt.IPv4.SrcAddr
		dstEq := cur.IPv4.DstAddr == pkt.IPv4.DstAddr
		if (sp && !srcEq) || (dp && !dstEq) {
			return false
		}
		if cur.IsTCP && pkt.IsTCP && !tcpFieldsEqual(cur, pkt) {
			return false
		}
		return true
	}
	srcEq := cur.IPv4.SrcAddr == pkt.IPv4.SrcAddr
	dstEq := cur.IPv4.DstAddr == pkt.IPv4.DstAddr
	return !((srcEq && dstEq) || (!srcEq && !dstEq))
}

// comparatorProxying is relation 3.
func comparatorProxying(cur, pkt *dissect.Packet) bool {
	if cur.HasPorts && pkt.HasPorts {
		if cur.SrcPort != pkt.SrcPort || cur.DstPort != pkt.DstPort {
			return false
		}
		if cur.IsTCP && pkt.IsTCP {
			if cur.IPv4.TotalLength != pkt.IPv4.TotalLength {
				return false
			}
			if cur.TCP.SeqNumber != pkt.TCP.SeqNumber && cur.TCP.AckNumber != pkt.TCP.AckNumber {
				return false
			}
			if cur.TCP.Window != pkt.TCP.Window {
				return false
			}
		}
	}
	srcEq := cur.IPv4.SrcAddr == pkt.IPv4.SrcAddr
	dstEq := cur.IPv4.DstAddr == pkt.IPv4.DstAddr
	return !((srcEq && dstEq) || (!srcEq && !dstEq))
}

// comparatorRoutingFrag is relation 4.
func comparatorRoutingFrag(cur, pkt *dissect.Packet) bool {
	if cur.IPv4.SrcAddr != pkt.IPv4.SrcAddr || cur.IPv4.DstAddr != pkt.IPv4.DstAddr {
		return false
	}
	if pkt.IPv4.IsFirstFragment() && cur.HasPorts && pkt.HasPorts {
		if cur.SrcPort != pkt.SrcPort || cur.DstPort != pkt.DstPort {
			return false
		}
		if cur.IsTCP && pkt.IsTCP && !tcpFieldsEqual(cur, pkt) {
			return false
		}
	}
	return true
}

// comparatorNATRoutingFrag is relation 5.
func comparatorNATRoutingFrag(cur, pkt *dissect.Packet) bool {
	if cur.HasPorts && pkt.HasPorts && pkt.IPv4.IsFirstFragment() {
		sp := cur.SrcPort == pkt.SrcPort
		dp := cur.DstPort == pkt.DstPort
		if (sp && dp) || (!sp && !dp) {
			return false
		}
		srcEq := cur.IPv4.SrcAddr == pkt.IPv4.SrcAddr
		dstEq := cur.IPv4.DstAddr == pkt.IPv4.DstAddr
		if (sp && !srcEq) || (dp && !dstEq) {
			return false
		}
		if cur.IsTCP && pkt.IsTCP && !tcpFieldsEqual(cur, pkt) {
			return false
		}
		return true
	}
	srcEq := cur.IPv4.SrcAddr == pkt.IPv4.SrcAddr
	dstEq := cur.IPv4.DstAddr == pkt.IPv4.DstAddr
	return !((srcEq && dstEq) || (!srcEq && !dstEq))
}

var comparators = [...]func(cur, pkt *dissect.Packet) bool{
	RelSwitching:      comparatorSwitching,
	RelRouting:        comparatorRouting,
	RelNATRouting:     comparatorNATRouting,
	RelProxying:       comparatorProxying,
	RelRoutingFrag:    comparatorRoutingFrag,
	RelNATRoutingFrag: comparatorNATRoutingFrag,
}

// baseNonFragPreconditions reports whether cand (older) and pkt (newer)
// satisfy the common preconditions every one of relations 0-3 requires in
// addition to the payload equality already established by the caller:
// both IPv4, same IP identification, same protocol, same fragment
// offset. Relations 4-5 (the fragmented variants) restate their own,
// narrower precondition (IP id equal only) instead of this one, since a
// fragment chain's whole point is packets with differing offsets.
func baseNonFragPreconditions(cand, pkt *dissect.Packet) bool {
	if !cand.IsIPv4 || !pkt.IsIPv4 {
		return false
	}
	return cand.IPv4.Identification == pkt.IPv4.Identification &&
		cand.IPv4.Protocol == pkt.IPv4.Protocol &&
		cand.IPv4.FragOffset == pkt.IPv4.FragOffset
}

// comparatorFast is the single relation used by infodups' fast mode:
// IPv4 identity fields plus the first min(20, captured) payload bytes.
func comparatorFast(cur, pkt *dissect.Packet) bool {
	if !cur.IsIPv4 || !pkt.IsIPv4 {
		return false
	}
	if cur.IPv4.Identification != pkt.IPv4.Identification {
		return false
	}
	if cur.IPv4.TotalLength != pkt.IPv4.TotalLength {
		return false
	}
	if cur.IPv4.SrcAddr != pkt.IPv4.SrcAddr || cur.IPv4.DstAddr != pkt.IPv4.DstAddr {
		return false
	}
	if cur.IPv4.Protocol != pkt.IPv4.Protocol {
		return false
	}
	if cur.IPv4.FragOffset != pkt.IPv4.FragOffset {
		return false
	}
	n := 20
	if len(cur.Payload) < n {
		n = len(cur.Payload)
	}
	if len(pkt.Payload) < n {
		n = len(pkt.Payload)
	}
	return bytes.Equal(cur.Payload[:n], pkt.Payload[:n])
}
