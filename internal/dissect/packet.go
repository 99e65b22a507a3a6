package dissect

import "time"

// DefaultFrameCap is the default number of captured frame bytes retained
// per packet record.
const DefaultFrameCap = 5000

// Packet is the flat, immutable-after-dissection view of one captured
// frame, as stored in the windowed history.
type Packet struct {
	Pos      uint64
	Time     time.Time
	CapLen   int
	RealSize int

	// FrameBytes is an owned copy of up to FrameCap captured bytes, so the
	// caller's read buffer can be reused or freed.
	FrameBytes []byte

	FrameType FrameType
	VLANTag   bool
	VLANID    uint16
	SrcMAC    [6]byte
	DstMAC    [6]byte
	HasMACs   bool
	EtherType uint16

	IsIPv4 bool
	IPv4   IPv4Header

	HasPorts bool
	SrcPort  uint16
	DstPort  uint16
	IsTCP    bool
	TCP      TCPHeader

	// Payload is the innermost available payload: TCP/UDP data if present,
	// else IP data, else Ethernet data. It aliases FrameBytes.
	Payload []byte

	Malformed bool
}

// Dissect decodes a captured frame into a Packet. frameCap bounds how many
// raw bytes are retained (0 selects DefaultFrameCap). It never fails
// outright: a frame too small to classify is retained with FrameType set
// to FrameError and Malformed set, so position accounting and statistics
// stay consistent with the distilled spec's error-handling policy.
func Dissect(raw []byte, capLen, realSize int, ts time.Time, pos uint64, frameCap int) *Packet {
	if frameCap <= 0 {
		frameCap = DefaultFrameCap
	}
	kept := raw
	if len(kept) > frameCap {
		kept = kept[:frameCap]
	}
	owned := make([]byte, len(kept))
	copy(owned, kept)

	p := &Packet{
		Pos:        pos,
		Time:       ts,
		CapLen:     capLen,
		RealSize:   realSize,
		FrameBytes: owned,
	}

	p.FrameType = classifyFrame(owned)
	if p.FrameType == FrameError {
		p.Malformed = true
		return p
	}

	if src, dst, ok := macs(p.FrameType, owned); ok {
		copy(p.SrcMAC[:], src)
		copy(p.DstMAC[:], dst)
		p.HasMACs = true
	}
	if id, ok := vlanID(p.FrameType, owned); ok {
		p.VLANTag = true
		p.VLANID = id
	}
	et, ok := ethertype(p.FrameType, owned)
	if !ok {
		p.Malformed = true
		p.Payload = payload(p.FrameType, owned)
		return p
	}
	p.EtherType = et
	p.Payload = payload(p.FrameType, owned)

	if et != layerEtherTypeIPv4 {
		return p
	}

	ipHdr, ok := parseIPv4(p.Payload)
	if !ok {
		p.Malformed = true
		return p
	}
	p.IsIPv4 = true
	p.IPv4 = ipHdr
	ipData := ipPayload(p.Payload, ipHdr)
	p.Payload = ipData

	switch ipHdr.Protocol {
	case ProtoTCP:
		tcpHdr, ok := parseTCP(ipData)
		if !ok {
			return p
		}
		p.IsTCP = true
		p.TCP = tcpHdr
		p.HasPorts = true
		p.SrcPort = tcpHdr.SrcPort
		p.DstPort = tcpHdr.DstPort
		p.Payload = tcpPayload(ipData, tcpHdr)
	case ProtoUDP:
		udpHdr, ok := parseUDP(ipData)
		if !ok {
			return p
		}
		p.HasPorts = true
		p.SrcPort = udpHdr.SrcPort
		p.DstPort = udpHdr.DstPort
		p.Payload = udpPayload(ipData)
	}

	return p
}

const layerEtherTypeIPv4 = 0x0800

// DissectFast performs the reduced, IP-layer-only dissection used by
// infodups' fast mode: it never parses TCP/UDP, since the fast comparator
// only needs IPv4 header fields and raw payload bytes.
func DissectFast(raw []byte, capLen, realSize int, ts time.Time, pos uint64, frameCap int) *Packet {
	if frameCap <= 0 {
		frameCap = DefaultFrameCap
	}
	kept := raw
	if len(kept) > frameCap {
		kept = kept[:frameCap]
	}
	owned := make([]byte, len(kept))
	copy(owned, kept)

	p := &Packet{
		Pos:        pos,
		Time:       ts,
		CapLen:     capLen,
		RealSize:   realSize,
		FrameBytes: owned,
	}
	p.FrameType = classifyFrame(owned)
	if p.FrameType == FrameError {
		p.Malformed = true
		return p
	}
	if src, dst, ok := macs(p.FrameType, owned); ok {
		copy(p.SrcMAC[:], src)
		copy(p.DstMAC[:], dst)
		p.HasMACs = true
	}
	et, ok := ethertype(p.FrameType, owned)
	if !ok {
		p.Malformed = true
		return p
	}
	p.EtherType = et
	p.Payload = payload(p.FrameType, owned)
	if et != layerEtherTypeIPv4 {
		return p
	}
	ipHdr, ok := parseIPv4(p.Payload)
	if !ok {
		p.Malformed = true
		return p
	}
	p.IsIPv4 = true
	p.IPv4 = ipHdr
	p.Payload = ipPayload(p.Payload, ipHdr)
	return p
}

// Rebase is pkt_copy's Go equivalent: it builds a fresh Packet from src's
// frame bytes, keeping pos and ts instead of src's own. Used on a
// fragmentation-relation match, where the older window node becomes a
// rolling "best representative" for chaining subsequent fragments, per
// the distilled spec's explicit direction (newer bytes replace the older
// node's). It returns a new value rather than mutating src or the old
// packet in place, so a window node can swap to it with a single pointer
// store instead of a field-by-field in-place mutation that concurrent
// readers could observe half-written.
func Rebase(src *Packet, pos uint64, ts time.Time) *Packet {
	return Dissect(src.FrameBytes, src.CapLen, src.RealSize, ts, pos, len(src.FrameBytes))
}
