// Package series bucketizes matched packet bytes/counts into fixed-width
// time intervals for tseries' output, in either BPF filter mode or
// grid-of-tries (NETS) mode.
package series

import "time"

// Bucketizer accumulates per-filter byte and packet counts into
// fixed-width time buckets aligned to a reference timestamp. Gaps
// between observed packets are zero-filled on Flush unless SkipZero is
// set, matching the original tool's default of emitting every interval
// even when no matching traffic arrived.
type Bucketizer struct {
	width    time.Duration
	ref      time.Time
	skipZero bool

	nFilters int
	cur      int64 // current bucket index, -1 until the first packet
	bytes    []int64
	packets  []int64
}

// Row is one completed bucket: its start time and per-filter totals.
type Row struct {
	Start   time.Time
	Bytes   []int64
	Packets []int64
}

// NewBucketizer constructs a Bucketizer for nFilters concurrent series,
// with buckets of the given width starting at ref.
func NewBucketizer(ref time.Time, width time.Duration, nFilters int, skipZero bool) *Bucketizer {
	return &Bucketizer{
		width:    width,
		ref:      ref,
		skipZero: skipZero,
		nFilters: nFilters,
		cur:      -1,
		bytes:    make([]int64, nFilters),
		packets:  make([]int64, nFilters),
	}
}

func (b *Bucketizer) bucketIndex(ts time.Time) int64 {
	return int64(ts.Sub(b.ref) / b.width)
}

// Add records one matching packet of size bytes for filter id at ts. If
// ts falls into a new bucket, the previous bucket (and any empty
// intervening buckets, unless SkipZero) is emitted via emit before the
// running totals reset.
func (b *Bucketizer) Add(ts time.Time, id int, size int64, emit func(Row)) {
	idx := b.bucketIndex(ts)
	if b.cur == -1 {
		b.cur = idx
	}
	for b.cur < idx {
		b.flush(emit)
		b.cur++
		if b.skipZero && b.cur < idx {
			b.cur = idx
		}
	}
	b.bytes[id] += size
	b.packets[id]++
}

func (b *Bucketizer) flush(emit func(Row)) {
	row := Row{
		Start:   b.ref.Add(time.Duration(b.cur) * b.width),
		Bytes:   append([]int64(nil), b.bytes...),
		Packets: append([]int64(nil), b.packets...),
	}
	emit(row)
	for i := range b.bytes {
		b.bytes[i] = 0
		b.packets[i] = 0
	}
}

// Finish flushes the last open bucket, if any packets were ever added.
func (b *Bucketizer) Finish(emit func(Row)) {
	if b.cur == -1 {
		return
	}
	b.flush(emit)
}
