package workerpool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Enchufa2/nantools/internal/dedup"
	"github.com/Enchufa2/nantools/internal/dissect"
)

func pkt(pos uint64) *dissect.Packet {
	return dissect.Dissect(make([]byte, 14), 14, 14, time.Unix(int64(pos), 0), pos, 0)
}

func TestMultiplexPreservesGlobalOrder(t *testing.T) {
	classifier := dedup.NewClassifier(dedup.Config{}, 3)
	p := New(3, classifier, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	const n = 30
	for pos := uint64(0); pos < n; pos++ {
		p.Dispatch(pkt(pos))
	}
	p.CloseInput()

	merged := Multiplex(p.Outputs())
	var seen []uint64
	for r := range merged {
		seen = append(seen, r.Pos)
	}

	require.NoError(t, <-done)
	require.Len(t, seen, n)
	for i, pos := range seen {
		require.Equal(t, uint64(i), pos)
	}
}
