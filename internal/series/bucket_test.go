package series

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBucketizerZeroFillsGaps(t *testing.T) {
	ref := time.Unix(0, 0)
	b := NewBucketizer(ref, time.Second, 1, false)

	var rows []Row
	emit := func(r Row) { rows = append(rows, r) }

	b.Add(ref, 0, 100, emit)
	b.Add(ref.Add(3*time.Second), 0, 50, emit)
	b.Finish(emit)

	require.Len(t, rows, 4)
	require.EqualValues(t, 100, rows[0].Bytes[0])
	require.EqualValues(t, 0, rows[1].Bytes[0])
	require.EqualValues(t, 0, rows[2].Bytes[0])
	require.EqualValues(t, 50, rows[3].Bytes[0])
}

func TestBucketizerSkipZeroOmitsEmptyBuckets(t *testing.T) {
	ref := time.Unix(0, 0)
	b := NewBucketizer(ref, time.Second, 1, true)

	var rows []Row
	emit := func(r Row) { rows = append(rows, r) }

	b.Add(ref, 0, 10, emit)
	b.Add(ref.Add(5*time.Second), 0, 20, emit)
	b.Finish(emit)

	require.Len(t, rows, 2)
	require.EqualValues(t, 10, rows[0].Bytes[0])
	require.EqualValues(t, 20, rows[1].Bytes[0])
}
