package dissect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func ethIPv4Frame(t *testing.T, ttl byte, id uint16) []byte {
	t.Helper()
	b := make([]byte, 34)
	copy(b[0:6], []byte{0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0x01}) // dst
	copy(b[6:12], []byte{0xBB, 0xBB, 0xBB, 0xBB, 0xBB, 0x02}) // src
	b[12], b[13] = 0x08, 0x00                                 // DIX IPv4
	b[14] = 0x45                                              // version 4, IHL 5
	b[16], b[17] = 0x00, 0x1C                                 // total length 28
	b[18], b[19] = byte(id>>8), byte(id)
	b[22] = ttl
	b[23] = 6 // TCP
	copy(b[26:30], []byte{1, 2, 3, 4})
	copy(b[30:34], []byte{5, 6, 7, 8})
	return b
}

func TestClassifyFrameBoundary(t *testing.T) {
	b := make([]byte, 20)
	b[12], b[13] = 0x05, 0xDC // exactly 0x05DC -> 802.3, not DIX
	require.Equal(t, FrameDot3, classifyFrame(b))

	b[12], b[13] = 0x05, 0xDD // one above the boundary -> DIX
	require.Equal(t, FrameDIX, classifyFrame(b))
}

func TestDissectDIXIPv4(t *testing.T) {
	raw := ethIPv4Frame(t, 64, 0x1234)
	p := Dissect(raw, len(raw), len(raw), time.Unix(1000, 0), 1, 0)

	require.False(t, p.Malformed)
	require.Equal(t, FrameDIX, p.FrameType)
	require.True(t, p.IsIPv4)
	require.EqualValues(t, 64, p.IPv4.TTL)
	require.EqualValues(t, 0x1234, p.IPv4.Identification)
	require.EqualValues(t, ProtoTCP, p.IPv4.Protocol)
}

func TestDissectTruncatedFrame(t *testing.T) {
	raw := []byte{0, 1, 2}
	p := Dissect(raw, len(raw), len(raw), time.Now(), 1, 0)
	require.True(t, p.Malformed)
	require.Equal(t, FrameError, p.FrameType)
}

func TestDissectVLANTagged(t *testing.T) {
	raw := make([]byte, 38)
	copy(raw[12:14], []byte{0x81, 0x00})
	raw[14], raw[15] = 0x0F, 0xA3 // priority bits + VLAN id 0x0FA3 & 0x0FFF -> 0x0FA3 & 0xFFF
	raw[16], raw[17] = 0x08, 0x00
	raw[18] = 0x45
	p := Dissect(raw, len(raw), len(raw), time.Now(), 2, 0)
	require.Equal(t, FrameDot1Q, p.FrameType)
	require.True(t, p.VLANTag)
	require.EqualValues(t, 0x0FA3&0x0FFF, p.VLANID)
}

func TestRebasePreservesPosAndTime(t *testing.T) {
	older := Dissect(ethIPv4Frame(t, 64, 1), 34, 34, time.Unix(100, 0), 5, 0)
	newer := Dissect(ethIPv4Frame(t, 63, 1), 34, 34, time.Unix(200, 0), 9, 0)

	rebased := Rebase(newer, older.Pos, older.Time)

	require.Equal(t, older.Pos, rebased.Pos)
	require.Equal(t, older.Time, rebased.Time)
	require.EqualValues(t, 63, rebased.IPv4.TTL)
}
