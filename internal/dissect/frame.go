// Package dissect decodes raw captured Ethernet frames into a flat,
// addressable view without copying payload bytes.
package dissect

import "encoding/binary"

// FrameType identifies the Ethernet encapsulation of a captured frame.
type FrameType int8

const (
	FrameError     FrameType = -1
	FrameUnchecked FrameType = 0
	FrameDot1Q     FrameType = 1
	FrameDot1ad    FrameType = 2
	FrameDot1ah    FrameType = 3
	FrameDIX       FrameType = 4
	FrameDot3      FrameType = 5
)

func (t FrameType) String() string {
	switch t {
	case FrameError:
		return "error"
	case FrameDot1Q:
		return "802.1Q"
	case FrameDot1ad:
		return "802.1ad"
	case FrameDot1ah:
		return "802.1ah"
	case FrameDIX:
		return "DIX"
	case FrameDot3:
		return "802.3"
	default:
		return "unchecked"
	}
}

const (
	ethertypeDot1Q  = 0x8100
	ethertypeDot1ad = 0x88A8
	ethertypeDot1ah = 0x88E7
	ethertypeDIXmin = 0x05DC

	macLen = 6
)

var llcSNAPHeader = [6]byte{0x01, 0x01, 0x01, 0x00, 0x00, 0x00}

// classifyFrame inspects bytes 12-13 (the DIX ethertype position) to decide
// the frame's encapsulation. It requires at least 14 captured bytes.
func classifyFrame(b []byte) FrameType {
	if len(b) < 14 {
		return FrameError
	}
	switch et := binary.BigEndian.Uint16(b[12:14]); {
	case et == ethertypeDot1Q:
		return FrameDot1Q
	case et == ethertypeDot1ad:
		return FrameDot1ad
	case et == ethertypeDot1ah:
		return FrameDot1ah
	case et > ethertypeDIXmin:
		return FrameDIX
	default:
		return FrameDot3
	}
}

// headerSize returns the number of leading bytes that belong to the
// Ethernet encapsulation (MACs, tags, LLC/SNAP) for a given frame type.
func headerSize(t FrameType) int {
	switch t {
	case FrameDot1Q:
		return 18
	case FrameDot1ad:
		return 22
	case FrameDot1ah:
		return 40
	case FrameDot3:
		return 22 // 14 (MACs+len) + 6-byte LLC/SNAP check + 2-byte protocol field
	default: // DIX
		return 14
	}
}

// vlanID extracts the low 12 bits of the 2 bytes following the outermost
// tag ethertype. ok is false when the frame is untagged or truncated.
func vlanID(t FrameType, b []byte) (id uint16, ok bool) {
	var off int
	switch t {
	case FrameDot1Q:
		off = 14
	case FrameDot1ad:
		off = 14
	case FrameDot1ah:
		off = 36
	default:
		return 0, false
	}
	if len(b) < off+2 {
		return 0, false
	}
	return binary.BigEndian.Uint16(b[off:off+2]) & 0x0FFF, true
}

// macs returns the source and destination MAC addresses for the frame,
// whose offsets depend on encapsulation (802.1ah carries the customer
// MACs 18 bytes further in than the backbone MACs at offset 0/6).
func macs(t FrameType, b []byte) (src, dst []byte, ok bool) {
	switch t {
	case FrameDot1ah:
		if len(b) < 30 {
			return nil, nil, false
		}
		return b[24:30], b[18:24], true
	default: // Dot1Q, Dot1ad, DIX, Dot3 all share the plain src@6/dst@0 layout
		if len(b) < 12 {
			return nil, nil, false
		}
		return b[6:12], b[0:6], true
	}
}

// ethertype returns the innermost ethertype/length field for the frame,
// or (0, false) when it cannot be determined (802.3 without an LLC/SNAP
// header carrying a protocol ID).
func ethertype(t FrameType, b []byte) (uint16, bool) {
	switch t {
	case FrameDIX:
		if len(b) < 14 {
			return 0, false
		}
		return binary.BigEndian.Uint16(b[12:14]), true
	case FrameDot1Q:
		if len(b) < 18 {
			return 0, false
		}
		return binary.BigEndian.Uint16(b[16:18]), true
	case FrameDot1ad:
		if len(b) < 22 {
			return 0, false
		}
		return binary.BigEndian.Uint16(b[20:22]), true
	case FrameDot1ah:
		if len(b) < 40 {
			return 0, false
		}
		return binary.BigEndian.Uint16(b[38:40]), true
	case FrameDot3:
		if len(b) < 22 {
			return 0, false
		}
		var hdr [6]byte
		copy(hdr[:], b[14:20])
		if hdr != llcSNAPHeader {
			return 0, false
		}
		return binary.BigEndian.Uint16(b[20:22]), true
	}
	return 0, false
}

// payload returns the bytes following the Ethernet encapsulation.
func payload(t FrameType, b []byte) []byte {
	hs := headerSize(t)
	if len(b) <= hs {
		return nil
	}
	return b[hs:]
}
