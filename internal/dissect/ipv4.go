package dissect

import "encoding/binary"

const (
	ProtoTCP = 6
	ProtoUDP = 17
)

// IPv4Header is the flat view of an IPv4 header used by the duplicate
// classifier and the grid-of-tries matcher. Fields are decoded to host
// order; equality comparisons against other decoded values are unaffected
// by byte order, since both sides go through the same decode path.
type IPv4Header struct {
	HeaderLen      int // bytes (IHL*4)
	DSCPECN        uint8
	TotalLength    uint16
	Identification uint16
	FragOffset     uint16 // bytes (low 13 bits of the flags/offset field * 8)
	MF             bool
	TTL            uint8
	Protocol       uint8
	SrcAddr        uint32
	DstAddr        uint32
}

// parseIPv4 decodes an IPv4 header from b. It requires at least 20
// captured bytes and a header length that fits within b; ok is false
// otherwise.
func parseIPv4(b []byte) (hdr IPv4Header, ok bool) {
	if len(b) < 20 {
		return IPv4Header{}, false
	}
	ihl := int(b[0] & 0x0F)
	hdr.HeaderLen = ihl * 4
	if hdr.HeaderLen < 20 || hdr.HeaderLen > len(b) {
		return IPv4Header{}, false
	}
	hdr.DSCPECN = b[1]
	hdr.TotalLength = binary.BigEndian.Uint16(b[2:4])
	hdr.Identification = binary.BigEndian.Uint16(b[4:6])
	flagsOffset := binary.BigEndian.Uint16(b[6:8])
	hdr.FragOffset = (flagsOffset & 0x1FFF) * 8
	hdr.MF = flagsOffset&0x2000 != 0
	hdr.TTL = b[8]
	hdr.Protocol = b[9]
	hdr.SrcAddr = binary.BigEndian.Uint32(b[12:16])
	hdr.DstAddr = binary.BigEndian.Uint32(b[16:20])
	return hdr, true
}

// IsFragment reports whether the packet is part of a fragmented
// datagram: either MF is set or the fragment offset is nonzero.
func (h IPv4Header) IsFragment() bool {
	return h.MF || h.FragOffset != 0
}

// IsFirstFragment reports whether this is the first fragment of a
// fragmented datagram (offset zero). Note this is also true for an
// unfragmented datagram; callers gate on IsFragment first where that
// distinction matters.
func (h IPv4Header) IsFirstFragment() bool {
	return h.FragOffset == 0
}

// ipPayload returns the bytes following an IPv4 header of the given
// length, clamped to both the captured length and the IP total length.
func ipPayload(b []byte, hdr IPv4Header) []byte {
	if len(b) <= hdr.HeaderLen {
		return nil
	}
	captured := b[hdr.HeaderLen:]
	if int(hdr.TotalLength) >= hdr.HeaderLen {
		ipDataLen := int(hdr.TotalLength) - hdr.HeaderLen
		if ipDataLen < len(captured) {
			captured = captured[:ipDataLen]
		}
	}
	return captured
}
