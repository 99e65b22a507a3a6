// Package progress provides the rate-limited "percent of file consumed"
// progress line both CLIs print to stderr during a long run, modeled on
// the original tool's utils_print_progress.
package progress

import (
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
)

// Reporter logs a progress line at most once per interval.
type Reporter struct {
	log      *zap.Logger
	total    int64
	interval time.Duration
	last     time.Time
}

// New returns a Reporter that logs through log, computing percentages
// against total bytes, no more often than interval.
func New(log *zap.Logger, total int64, interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Reporter{log: log, total: total, interval: interval}
}

// Report logs the current percentage if interval has elapsed since the
// last report. now is passed in (rather than time.Now()) so callers can
// drive it deterministically in tests.
func (r *Reporter) Report(now time.Time, consumed int64) {
	if r.total <= 0 {
		return
	}
	if !r.last.IsZero() && now.Sub(r.last) < r.interval {
		return
	}
	r.last = now
	pct := float64(consumed) / float64(r.total) * 100
	r.log.Info(fmt.Sprintf("progress: %.1f%%", pct), zap.Int64("bytesRead", consumed), zap.Int64("bytesTotal", r.total))
}

// Final writes a closing line with the total file size in bytes to w,
// regardless of the interval.
func (r *Reporter) Final(w io.Writer) {
	fmt.Fprintf(w, "done: %d bytes processed\n", r.total)
}
