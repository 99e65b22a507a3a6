package dissect

import "encoding/binary"

// TCPHeader is the subset of TCP header fields the classifier compares.
type TCPHeader struct {
	SrcPort    uint16
	DstPort    uint16
	SeqNumber  uint32
	AckNumber  uint32
	Window     uint16
	Checksum   uint16
	HeaderLen  int
}

// parseTCP decodes a TCP header from b. It requires at least 13 captured
// bytes to read the data-offset field, and the full header length after
// that.
func parseTCP(b []byte) (hdr TCPHeader, ok bool) {
	if len(b) < 13 {
		return TCPHeader{}, false
	}
	hdr.HeaderLen = int((b[12]>>4)&0x0F) * 4
	if hdr.HeaderLen < 20 || len(b) < hdr.HeaderLen {
		return TCPHeader{}, false
	}
	hdr.SrcPort = binary.BigEndian.Uint16(b[0:2])
	hdr.DstPort = binary.BigEndian.Uint16(b[2:4])
	hdr.SeqNumber = binary.BigEndian.Uint32(b[4:8])
	hdr.AckNumber = binary.BigEndian.Uint32(b[8:12])
	hdr.Window = binary.BigEndian.Uint16(b[14:16])
	hdr.Checksum = binary.BigEndian.Uint16(b[16:18])
	return hdr, true
}

func tcpPayload(b []byte, hdr TCPHeader) []byte {
	if len(b) <= hdr.HeaderLen {
		return nil
	}
	return b[hdr.HeaderLen:]
}

// UDPHeader is the subset of UDP header fields retained.
type UDPHeader struct {
	SrcPort  uint16
	DstPort  uint16
	Length   uint16
	Checksum uint16
}

const udpHeaderLen = 8

// parseUDP decodes a fixed 8-byte UDP header from b.
func parseUDP(b []byte) (hdr UDPHeader, ok bool) {
	if len(b) < udpHeaderLen {
		return UDPHeader{}, false
	}
	hdr.SrcPort = binary.BigEndian.Uint16(b[0:2])
	hdr.DstPort = binary.BigEndian.Uint16(b[2:4])
	hdr.Length = binary.BigEndian.Uint16(b[4:6])
	hdr.Checksum = binary.BigEndian.Uint16(b[6:8])
	return hdr, true
}

func udpPayload(b []byte) []byte {
	if len(b) <= udpHeaderLen {
		return nil
	}
	return b[udpHeaderLen:]
}
