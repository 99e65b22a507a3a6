package dedup

import (
	"testing"
	"time"

	"github.com/Enchufa2/nantools/internal/dissect"
	"github.com/stretchr/testify/require"
)

// ipv4Frame builds an Ethernet/IPv4 frame whose IP total length (28)
// covers the 20-byte header plus the 8 zero bytes of IP data after it.
func ipv4Frame(srcMAC, dstMAC byte, ttl byte, srcIP, dstIP byte, proto byte, id uint16) []byte {
	b := make([]byte, 42)
	for i := 0; i < 6; i++ {
		b[i] = dstMAC
		b[6+i] = srcMAC
	}
	b[12], b[13] = 0x08, 0x00
	b[14] = 0x45
	b[16], b[17] = 0x00, 0x1C
	b[18], b[19] = byte(id>>8), byte(id)
	b[22] = ttl
	b[23] = proto
	b[26], b[27], b[28], b[29] = srcIP, srcIP, srcIP, srcIP
	b[30], b[31], b[32], b[33] = dstIP, dstIP, dstIP, dstIP
	return b
}

func mustDissect(t *testing.T, raw []byte, pos uint64, ts time.Time) *dissect.Packet {
	t.Helper()
	return dissect.Dissect(raw, len(raw), len(raw), ts, pos, 0)
}

// ingest is the test-only convenience mirroring what the worker pool does
// in production: append on the (single, here) ingest path, then classify.
func ingest(c *Classifier, workerID int, pkt *dissect.Packet) (DupRecord, bool) {
	n := c.Append(pkt)
	return c.Classify(workerID, n)
}

func TestSwitchingDuplicateEmitted(t *testing.T) {
	c := NewClassifier(Config{}, 1)

	p1 := mustDissect(t, ipv4Frame(1, 2, 64, 10, 20, 6, 0x1111), 1, time.Unix(0, 0))
	_, ok := ingest(c, 0, p1)
	require.False(t, ok)

	p2 := mustDissect(t, ipv4Frame(1, 2, 64, 10, 20, 6, 0x1111), 2, time.Unix(0, 50*int64(time.Millisecond)))
	rec, ok := ingest(c, 0, p2)
	require.True(t, ok)
	require.Equal(t, RelSwitching, rec.Type)
	require.Equal(t, uint64(1), rec.MatchPos)
	require.Equal(t, uint64(2), rec.CurPos)
	require.InDelta(t, 0.05, rec.DeltaT.Seconds(), 1e-9)
	require.Equal(t, "2 1 0 0 0 0 0.050000000 0", rec.Format(false))
}

func TestRoutingDuplicateDifferentMACs(t *testing.T) {
	c := NewClassifier(Config{}, 1)

	p1 := mustDissect(t, ipv4Frame(1, 2, 64, 10, 20, 6, 0x2222), 1, time.Unix(0, 0))
	ingest(c, 0, p1)

	p2 := mustDissect(t, ipv4Frame(3, 4, 63, 10, 20, 6, 0x2222), 2, time.Unix(1, 0))
	rec, ok := ingest(c, 0, p2)
	require.True(t, ok)
	require.Equal(t, RelRouting, rec.Type)
	require.EqualValues(t, 1, rec.DiffTTL)
}

func TestNonDuplicateNotReported(t *testing.T) {
	c := NewClassifier(Config{}, 1)

	p1 := mustDissect(t, ipv4Frame(1, 2, 64, 10, 20, 6, 0x3333), 1, time.Unix(0, 0))
	ingest(c, 0, p1)

	p2 := mustDissect(t, ipv4Frame(1, 2, 64, 30, 40, 17, 0x4444), 2, time.Unix(1, 0))
	_, ok := ingest(c, 0, p2)
	require.False(t, ok)
}

func TestFastModeMatchesOnIPIdentity(t *testing.T) {
	c := NewClassifier(Config{Fast: true}, 1)

	p1 := mustDissect(t, ipv4Frame(1, 2, 64, 10, 20, 6, 0x5555), 1, time.Unix(0, 0))
	ingest(c, 0, p1)

	p2 := mustDissect(t, ipv4Frame(9, 9, 1, 10, 20, 6, 0x5555), 2, time.Unix(0, 0))
	rec, ok := ingest(c, 0, p2)
	require.True(t, ok)
	// Both MACs differ, so fast mode reports the match as type 1.
	require.Equal(t, RelRouting, rec.Type)
}

func TestWindowTrimsAfterMarkerAdvances(t *testing.T) {
	c := NewClassifier(Config{Mode: WindowByTime, Time: 100 * time.Millisecond}, 1)
	for i := uint64(1); i <= 5; i++ {
		p := mustDissect(t, ipv4Frame(byte(i), byte(i+1), 64, byte(i), byte(i+10), 6, uint16(i)), i, time.Unix(int64(i), 0))
		ingest(c, 0, p)
	}
	// Packets are 1s apart, so every scan stops at its predecessor and moves
	// the marker there: only that marker node and the newest packet remain.
	require.Equal(t, 2, c.WindowCount())
}

func TestTimeWindowExcludesOlderCandidates(t *testing.T) {
	c := NewClassifier(Config{Mode: WindowByTime, Time: 100 * time.Millisecond}, 1)

	p1 := mustDissect(t, ipv4Frame(1, 2, 64, 10, 20, 6, 0x6666), 1, time.Unix(0, 0))
	ingest(c, 0, p1)

	// 200ms later: outside the 100ms horizon, so no match even though
	// every comparator field lines up.
	p2 := mustDissect(t, ipv4Frame(1, 2, 64, 10, 20, 6, 0x6666), 2, time.Unix(0, 200*int64(time.Millisecond)))
	_, ok := ingest(c, 0, p2)
	require.False(t, ok)
}

func TestPositionWindowExcludesOlderCandidates(t *testing.T) {
	c := NewClassifier(Config{Mode: WindowByPositions, Positions: 2}, 1)

	p1 := mustDissect(t, ipv4Frame(1, 2, 64, 10, 20, 6, 0x7777), 1, time.Unix(0, 0))
	ingest(c, 0, p1)
	p2 := mustDissect(t, ipv4Frame(9, 9, 64, 11, 21, 6, 0x8888), 2, time.Unix(0, 0))
	ingest(c, 0, p2)

	// pos 3 - pos 1 = 2 > Positions-1 (1): p1 falls outside the window.
	p3 := mustDissect(t, ipv4Frame(1, 2, 64, 10, 20, 6, 0x7777), 3, time.Unix(0, 0))
	_, ok := ingest(c, 0, p3)
	require.False(t, ok)
}

func TestDisabledRelationFallsThrough(t *testing.T) {
	cfg := Config{Suspicious: true}
	cfg.Disabled[RelSwitching] = true
	c := NewClassifier(cfg, 1)

	p1 := mustDissect(t, ipv4Frame(1, 2, 64, 10, 20, 6, 0x9999), 1, time.Unix(0, 0))
	ingest(c, 0, p1)

	p2 := mustDissect(t, ipv4Frame(1, 2, 64, 10, 20, 6, 0x9999), 2, time.Unix(0, 0))
	rec, ok := ingest(c, 0, p2)
	require.True(t, ok)
	require.Equal(t, RelSuspicious, rec.Type)
}

func TestFragmentInDataMatchesRoutingFrag(t *testing.T) {
	c := NewClassifier(Config{}, 1)

	// Older packet: unfragmented, full 20-byte payload.
	older := ipv4Frame(1, 2, 64, 10, 20, 6, 0xAAAA)[:34] // headers only
	older = append(older, []byte("0123456789ABCDEFGHIJ")...)
	older[16], older[17] = 0x00, byte(20+len(older)-34)
	p1 := mustDissect(t, older, 1, time.Unix(0, 0))
	ingest(c, 0, p1)

	// Newer packet: a later fragment (offset 8, MF=0) of the same
	// datagram, carrying only part of the payload, so sameData()
	// reports a plain content mismatch and the fragment-in-data path
	// must kick in.
	newer := ipv4Frame(3, 4, 64, 10, 20, 6, 0xAAAA)[:34]
	newer = append(newer, []byte("89ABCDEFGHIJ")...)
	newer[16], newer[17] = 0x00, 32      // IP total length: 20-byte header + 12-byte fragment
	newer[20], newer[21] = 0x00, 1       // IP flags/frag-offset field: offset 1*8=8 bytes, MF=0
	p2 := mustDissect(t, newer, 2, time.Unix(0, 10*int64(time.Millisecond)))
	rec, ok := ingest(c, 0, p2)
	require.True(t, ok)
	require.Equal(t, RelRoutingFrag, rec.Type)
}

func TestFragmentWithEqualMACsNotRoutingFrag(t *testing.T) {
	c := NewClassifier(Config{Suspicious: true}, 1)

	// Same setup as TestFragmentInDataMatchesRoutingFrag, but this time
	// both packets carry the same MACs: relations 4-5 require both MACs
	// to differ (mirroring relations 1-3's non-fragment precondition), so
	// this pair must fall through to suspicious instead of RelRoutingFrag.
	older := ipv4Frame(1, 2, 64, 10, 20, 6, 0xBBBB)[:34]
	older = append(older, []byte("0123456789ABCDEFGHIJ")...)
	older[16], older[17] = 0x00, byte(20+len(older)-34)
	p1 := mustDissect(t, older, 1, time.Unix(0, 0))
	ingest(c, 0, p1)

	newer := ipv4Frame(1, 2, 64, 10, 20, 6, 0xBBBB)[:34]
	newer = append(newer, []byte("89ABCDEFGHIJ")...)
	newer[16], newer[17] = 0x00, 32
	newer[20], newer[21] = 0x00, 1
	p2 := mustDissect(t, newer, 2, time.Unix(0, 10*int64(time.Millisecond)))
	rec, ok := ingest(c, 0, p2)
	require.True(t, ok)
	require.Equal(t, RelSuspicious, rec.Type)
}
