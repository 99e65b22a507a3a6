package window

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendRemoveOrdering(t *testing.T) {
	b := NewBuffer[int](1, 0)

	var nodes []*Node[int]
	for i := 0; i < 5; i++ {
		n := b.NewNode()
		n.Load = i
		b.Append(n)
		nodes = append(nodes, n)
	}

	require.Nil(t, b.First().Prev())
	require.Equal(t, 5, b.Count())

	// active list is ordered by insertion (pos) order
	cur := b.First()
	for i := 0; i < 5; i++ {
		require.Equal(t, i, cur.Load)
		cur = cur.next
	}

	b.Remove(nodes[2])
	require.Equal(t, 4, b.Count())
	require.Equal(t, 5, b.Allocated())
}

func TestNodeReuseFromFreeList(t *testing.T) {
	b := NewBuffer[int](1, 0)
	n1 := b.NewNode()
	b.Append(n1)
	b.Remove(n1)

	n2 := b.NewNode()
	require.Same(t, n1, n2)
	require.Equal(t, 1, b.Allocated())
}

func TestMarkerAdvanceClearsOldBit(t *testing.T) {
	b := NewBuffer[int](2, 0)
	n1 := b.NewNode()
	b.Append(n1)
	b.InitMarkers(n1)

	require.True(t, n1.InUse())

	n2 := b.NewNode()
	b.Append(n2)
	b.SetMarker(n2, 0)

	require.True(t, n2.InUse())
	// worker 1's bit is still set on n1; worker 0's bit cleared
	require.True(t, n1.InUse())

	b.SetMarker(n2, 1)
	require.False(t, n1.InUse())
}

func TestTrimRemovesOnlyUnreferencedPrefix(t *testing.T) {
	b := NewBuffer[int](1, 0)
	n1 := b.NewNode()
	b.Append(n1)
	b.InitMarkers(n1)

	n2 := b.NewNode()
	b.Append(n2)

	require.Equal(t, 0, b.Trim()) // n1 still referenced by the marker
	require.Equal(t, 2, b.Count())

	b.SetMarker(n2, 0)
	require.Equal(t, 1, b.Trim())
	require.Equal(t, 1, b.Count())
	require.Same(t, n2, b.First())
}

func TestIsFull(t *testing.T) {
	b := NewBuffer[int](1, 2)
	require.False(t, b.IsFull())
	n1 := b.NewNode()
	b.Append(n1)
	require.False(t, b.IsFull())
	n2 := b.NewNode()
	b.Append(n2)
	require.True(t, b.IsFull())
}
