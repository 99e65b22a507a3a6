package dissect

import "testing"

import "github.com/stretchr/testify/require"

func TestIPv4FragmentFlags(t *testing.T) {
	b := make([]byte, 20)
	b[0] = 0x45
	// MF=1, offset=0 -> first fragment, is a fragment
	b[6], b[7] = 0x20, 0x00
	hdr, ok := parseIPv4(b)
	require.True(t, ok)
	require.True(t, hdr.MF)
	require.True(t, hdr.IsFragment())
	require.True(t, hdr.IsFirstFragment())

	// MF=0, offset>0 -> last fragment, not first
	b[6], b[7] = 0x00, 0x05
	hdr, ok = parseIPv4(b)
	require.True(t, ok)
	require.False(t, hdr.MF)
	require.True(t, hdr.IsFragment())
	require.False(t, hdr.IsFirstFragment())
}

func TestIPv4MinMaxIHL(t *testing.T) {
	b := make([]byte, 20)
	b[0] = 0x45 // IHL=5 (minimum valid, 20 bytes)
	_, ok := parseIPv4(b)
	require.True(t, ok)

	b2 := make([]byte, 60)
	b2[0] = 0x4F // IHL=15 (maximum, 60 bytes)
	_, ok = parseIPv4(b2)
	require.True(t, ok)

	b3 := make([]byte, 59)
	b3[0] = 0x4F // claims 60 bytes but only 59 captured
	_, ok = parseIPv4(b3)
	require.False(t, ok)
}
